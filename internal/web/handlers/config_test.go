package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-check/internal/config"
)

func TestConfigHandler_Get(t *testing.T) {
	cfg := &config.Config{Detector: config.DefaultDetectorConfig()}
	handler := NewConfigHandler(cfg)

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var result ConfigResponse
	parseJSONResponse(t, recorder, &result)
	if result.Backend != "embedding" || result.MaxFaces != 10 || result.FaceFoundConfidence != 0.95 {
		t.Errorf("unexpected detector config %+v", result)
	}
	if result.History != "memory" {
		t.Errorf("expected memory history, got %q", result.History)
	}
	if len(result.Backends) != 4 {
		t.Errorf("expected 4 backends, got %d", len(result.Backends))
	}
}

func TestConfigHandler_Get_Availability(t *testing.T) {
	cfg := &config.Config{
		Detector: config.DefaultDetectorConfig(),
		OpenAI:   config.OpenAIConfig{Token: "sk-test-token"},
		Database: config.DatabaseConfig{URL: "postgres://localhost/faces"},
	}
	cfg.Detector.Backend = "openai"

	recorder := httptest.NewRecorder()
	NewConfigHandler(cfg).Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	var result ConfigResponse
	parseJSONResponse(t, recorder, &result)

	available := map[string]bool{}
	for _, b := range result.Backends {
		available[b.Name] = b.Available
	}
	if !available["openai"] || available["gemini"] || available["pigo"] {
		t.Errorf("unexpected availability %v", available)
	}
	if result.History != "postgres" {
		t.Errorf("expected postgres history, got %q", result.History)
	}
	if strings.Contains(recorder.Body.String(), "sk-test-token") {
		t.Error("expected token to stay out of the response")
	}
}
