// Package view maps detection state to what the page shows. It holds no
// state and performs no I/O.
package view

import (
	"fmt"

	"github.com/kozaktomas/face-check/internal/facedetect"
)

// PanelKind selects which results card is shown.
type PanelKind string

const (
	PanelProcessing PanelKind = "processing"
	PanelError      PanelKind = "error"
	PanelEmpty      PanelKind = "empty"
	PanelResult     PanelKind = "result"
)

// Panel is the results card content.
type Panel struct {
	Kind       PanelKind `json:"kind"`
	Title      string    `json:"title,omitempty"`
	Message    string    `json:"message,omitempty"`
	HasFace    bool      `json:"has_face"`
	FaceCount  int       `json:"face_count"`
	Confidence string    `json:"confidence,omitempty"`
	Badge      string    `json:"badge,omitempty"`
}

// Banner is the model status card content.
type Banner struct {
	Ready       bool   `json:"ready"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CanRetry    bool   `json:"can_retry"`
}

// Render picks the results card for r. Processing wins over error, error
// wins over the empty state, and anything else shows the outcome. loaded only
// affects the empty state, which carries a waiting message until the model is
// ready. The banner comes from Status.
func Render(r facedetect.Result, loaded bool) Panel {
	switch {
	case r.Processing:
		return Panel{
			Kind:    PanelProcessing,
			Title:   "Analyzing image...",
			Message: "Running face detection",
		}
	case r.Error != "":
		return Panel{
			Kind:    PanelError,
			Title:   "Detection Failed",
			Message: r.Error,
		}
	case !r.HasFace && r.Confidence == 0:
		if !loaded {
			return Panel{Kind: PanelEmpty, Message: "Uploads are analyzed once the model is ready"}
		}
		return Panel{Kind: PanelEmpty}
	}

	p := Panel{
		Kind:       PanelResult,
		HasFace:    r.HasFace,
		FaceCount:  r.FaceCount,
		Confidence: FormatConfidence(r.Confidence),
		Title:      "No Face Detected",
		Badge:      "No faces detected",
	}
	if r.HasFace {
		p.Title = "Face Detected!"
		p.Badge = FaceBadge(r.FaceCount)
	}
	return p
}

// Status returns the model status banner.
func Status(loaded bool) Banner {
	if loaded {
		return Banner{
			Ready:       true,
			Title:       "Model Ready",
			Description: "Face detection model is loaded and ready for face detection.",
		}
	}
	return Banner{
		Title:       "Loading Model...",
		Description: "Please wait while we load the face detection model...",
		CanRetry:    true,
	}
}

// FormatConfidence renders a [0,1] confidence as a percentage with one decimal.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.1f%%", c*100)
}

// FaceBadge renders "1 face found" or "N faces found".
func FaceBadge(n int) string {
	if n == 1 {
		return "1 face found"
	}
	return fmt.Sprintf("%d faces found", n)
}
