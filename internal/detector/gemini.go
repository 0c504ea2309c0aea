package detector

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/imaging"
	"google.golang.org/genai"
)

// GeminiBackend asks a Gemini vision model for face boxes.
type GeminiBackend struct {
	apiKey string
	model  string
}

func NewGeminiBackend(apiKey, model string) *GeminiBackend {
	return &GeminiBackend{apiKey: apiKey, model: model}
}

func (b *GeminiBackend) Name() string {
	return "gemini"
}

func (b *GeminiBackend) Create(ctx context.Context, opts Options) (Model, error) {
	if b.apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  b.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiModel{client: client, model: b.model, opts: opts}, nil
}

type geminiModel struct {
	client *genai.Client
	model  string
	opts   Options
}

func (m *geminiModel) Name() string {
	return m.model
}

func (m *geminiModel) EstimateFaces(ctx context.Context, img image.Image) ([]Face, error) {
	scaled := imaging.Fit(img, constants.MaxImageSize)
	data, err := imaging.EncodeJPEG(scaled, constants.MaxImageSize)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildFaceBoxesPrompt(m.opts.MaxFaces)},
				{InlineData: &genai.Blob{Data: data, MIMEType: "image/jpeg"}},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	result, err := m.client.Models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	content := result.Text()
	if content == "" {
		return nil, errors.New("no response from Gemini")
	}

	return parseVisionFaces(content, scaleFactor(img, scaled), m.opts.MaxFaces)
}

// scaleFactor maps coordinates in scaled back to coordinates in orig.
func scaleFactor(orig, scaled image.Image) float64 {
	w := scaled.Bounds().Dx()
	if w == 0 {
		return 1
	}
	return float64(orig.Bounds().Dx()) / float64(w)
}
