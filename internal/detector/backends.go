package detector

import (
	"fmt"

	"github.com/kozaktomas/face-check/internal/config"
)

// NewBackend returns the backend named in cfg.Detector.Backend.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Detector.Backend {
	case "", "embedding":
		return NewEmbeddingBackend(cfg.Embedding.URL, nil), nil
	case "pigo":
		return NewPigoBackend(cfg.Detector.Pigo), nil
	case "gemini":
		return NewGeminiBackend(cfg.Gemini.APIKey, cfg.Detector.Models.Gemini), nil
	case "openai":
		return NewOpenAIBackend(cfg.OpenAI.Token, cfg.Detector.Models.OpenAI), nil
	default:
		return nil, fmt.Errorf("unknown detector backend: %s (use embedding, pigo, gemini or openai)", cfg.Detector.Backend)
	}
}

// NewLoaderFromConfig creates the backend named in cfg and wraps it in a Loader.
func NewLoaderFromConfig(cfg *config.Config) (*Loader, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	opts := Options{
		MaxFaces:        cfg.Detector.MaxFaces,
		RefineLandmarks: cfg.Detector.RefineLandmarks,
	}
	return NewLoader(backend, opts, cfg.Detector.LoadTimeout), nil
}
