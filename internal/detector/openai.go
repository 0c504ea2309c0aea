package detector

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/imaging"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIBackend asks an OpenAI vision chat model for face boxes.
type OpenAIBackend struct {
	token string
	model string
}

func NewOpenAIBackend(token, model string) *OpenAIBackend {
	return &OpenAIBackend{token: token, model: model}
}

func (b *OpenAIBackend) Name() string {
	return "openai"
}

func (b *OpenAIBackend) Create(ctx context.Context, opts Options) (Model, error) {
	if b.token == "" {
		return nil, errors.New("OPENAI_TOKEN is not set")
	}
	client := openai.NewClient(option.WithAPIKey(b.token))
	return &openAIModel{client: &client, model: b.model, opts: opts}, nil
}

type openAIModel struct {
	client *openai.Client
	model  string
	opts   Options
}

func (m *openAIModel) Name() string {
	return m.model
}

func (m *openAIModel) EstimateFaces(ctx context.Context, img image.Image) ([]Face, error) {
	scaled := imaging.Fit(img, constants.MaxImageSize)
	data, err := imaging.EncodeJPEG(scaled, constants.MaxImageSize)
	if err != nil {
		return nil, err
	}
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)

	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(buildFaceBoxesPrompt(m.opts.MaxFaces)),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
								URL:    imageURL,
								Detail: "high",
							}),
						},
					},
				},
			},
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		MaxTokens: openai.Int(800),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	return parseVisionFaces(resp.Choices[0].Message.Content, scaleFactor(img, scaled), m.opts.MaxFaces)
}
