// Package history records completed detection attempts.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/facedetect"
)

// Attempt is one finished detection request.
type Attempt struct {
	ID         uuid.UUID     `json:"id"`
	SessionID  string        `json:"session_id"`
	FileName   string        `json:"file_name"`
	Format     string        `json:"format"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	FaceCount  int           `json:"face_count"`
	HasFace    bool          `json:"has_face"`
	Confidence float64       `json:"confidence"`
	Error      string        `json:"error,omitempty"`
	Backend    string        `json:"backend"`
	Duration   time.Duration `json:"duration_ns"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewAttempt builds an attempt from a published result.
func NewAttempt(sessionID, fileName, format string, width, height int, backend string, r facedetect.Result, took time.Duration) Attempt {
	return Attempt{
		ID:         uuid.New(),
		SessionID:  sessionID,
		FileName:   fileName,
		Format:     format,
		Width:      width,
		Height:     height,
		FaceCount:  r.FaceCount,
		HasFace:    r.HasFace,
		Confidence: r.Confidence,
		Error:      r.Error,
		Backend:    backend,
		Duration:   took,
		CreatedAt:  time.Now().UTC(),
	}
}

// Recorder stores attempts and returns the most recent ones first.
type Recorder interface {
	Record(ctx context.Context, a Attempt) error
	Recent(ctx context.Context, limit int) ([]Attempt, error)
}

// MemoryRecorder keeps the last N attempts in a ring buffer.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Attempt
	next    int
	full    bool
}

// NewMemoryRecorder creates a recorder holding at most size attempts.
func NewMemoryRecorder(size int) *MemoryRecorder {
	if size <= 0 {
		size = constants.DefaultHistorySize
	}
	return &MemoryRecorder{entries: make([]Attempt, size)}
}

func (m *MemoryRecorder) Record(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = a
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.next
	if m.full {
		n = len(m.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Attempt, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		out = append(out, m.entries[idx])
	}
	return out, nil
}
