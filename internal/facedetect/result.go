package facedetect

import (
	"time"

	"github.com/kozaktomas/face-check/internal/detector"
)

// Result is the record the UI renders for the latest detection attempt.
// Values are replaced, never mutated after publication. Version is zero on an
// outcome that was never published.
type Result struct {
	HasFace    bool            `json:"has_face"`
	Confidence float64         `json:"confidence"`
	FaceCount  int             `json:"face_count"`
	Processing bool            `json:"processing"`
	Error      string          `json:"error,omitempty"`
	Faces      []detector.Face `json:"faces,omitempty"`
	Version    uint64          `json:"version"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Idle reports whether the record has never held a detection outcome.
func (r Result) Idle() bool {
	return !r.Processing && r.Error == "" && !r.HasFace && r.Confidence == 0
}

// Snapshot pairs a result with the model state at publication time.
type Snapshot struct {
	Result Result `json:"result"`
	Loaded bool   `json:"model_loaded"`
}

// newOutcome builds the wholesale replacement record for a finished detection.
func newOutcome(faces []detector.Face, confidence float64) Result {
	count := len(faces)
	hasFace := count > 0
	if !hasFace {
		confidence = 0
	}
	return Result{
		HasFace:    hasFace,
		Confidence: confidence,
		FaceCount:  count,
		Faces:      faces,
	}
}
