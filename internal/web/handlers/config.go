package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-check/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Backend             string        `json:"backend"`
	MaxFaces            int           `json:"max_faces"`
	RefineLandmarks     bool          `json:"refine_landmarks"`
	FaceFoundConfidence float64       `json:"face_found_confidence"`
	Backends            []BackendInfo `json:"backends"`
	History             string        `json:"history"`
}

// BackendInfo reports whether a detector backend has what it needs to load.
type BackendInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Get returns the detector configuration. Secrets are never included.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	d := h.config.Detector
	backend := d.Backend
	if backend == "" {
		backend = "embedding"
	}

	history := "memory"
	if h.config.Database.URL != "" {
		history = "postgres"
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		Backend:             backend,
		MaxFaces:            d.MaxFaces,
		RefineLandmarks:     d.RefineLandmarks,
		FaceFoundConfidence: d.FaceFoundConfidence,
		Backends: []BackendInfo{
			{Name: "embedding", Available: true}, // falls back to the local service
			{Name: "pigo", Available: d.Pigo.CascadePath != ""},
			{Name: "gemini", Available: h.config.Gemini.APIKey != ""},
			{Name: "openai", Available: h.config.OpenAI.Token != ""},
		},
		History: history,
	})
}
