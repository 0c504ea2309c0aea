package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/history"
)

// Recorder provides PostgreSQL-backed attempt history.
type Recorder struct {
	pool *Pool
}

// NewRecorder creates a recorder on an already migrated pool.
func NewRecorder(pool *Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record inserts an attempt.
func (r *Recorder) Record(ctx context.Context, a history.Attempt) error {
	query := `
		INSERT INTO detection_attempts (
			id, session_id, file_name, format, width, height,
			face_count, has_face, confidence, error, backend, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.db.ExecContext(ctx, query,
		a.ID, a.SessionID, a.FileName, a.Format, a.Width, a.Height,
		a.FaceCount, a.HasFace, a.Confidence, a.Error, a.Backend,
		a.Duration.Milliseconds(), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]history.Attempt, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}

	query := `
		SELECT id, session_id, file_name, format, width, height,
			face_count, has_face, confidence, error, backend, duration_ms, created_at
		FROM detection_attempts
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []history.Attempt
	for rows.Next() {
		var a history.Attempt
		var durationMs int64
		if err := rows.Scan(
			&a.ID, &a.SessionID, &a.FileName, &a.Format, &a.Width, &a.Height,
			&a.FaceCount, &a.HasFace, &a.Confidence, &a.Error, &a.Backend,
			&durationMs, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Duration = time.Duration(durationMs) * time.Millisecond
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// Close releases the underlying pool.
func (r *Recorder) Close() error {
	return r.pool.Close()
}
