package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/imaging"
)

const defaultEmbeddingURL = "http://localhost:8000"

// EmbeddingBackend talks to the face embedding server over HTTP.
type EmbeddingBackend struct {
	baseURL string
	client  *http.Client
}

// NewEmbeddingBackend creates a backend for the embedding server at baseURL.
func NewEmbeddingBackend(baseURL string, client *http.Client) *EmbeddingBackend {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &EmbeddingBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

func (b *EmbeddingBackend) Name() string {
	return "embedding"
}

// healthResponse represents the embedding server health payload
type healthResponse struct {
	Status    string `json:"status"`
	FaceModel string `json:"face_model"`
}

// Create checks that the server is reachable and its face model is ready.
func (b *EmbeddingBackend) Create(ctx context.Context, opts Options) (Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var health healthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	if health.Status != "" && health.Status != "ok" {
		return nil, fmt.Errorf("embedding server not ready: %s", health.Status)
	}

	model := health.FaceModel
	if model == "" {
		model = "face"
	}
	return &embeddingModel{backend: b, opts: opts, model: model}, nil
}

type embeddingModel struct {
	backend *EmbeddingBackend
	opts    Options
	model   string
}

func (m *embeddingModel) Name() string {
	return "embedding/" + m.model
}

// faceDetection represents a single detected face in the server response
type faceDetection struct {
	FaceIndex int         `json:"face_index"`
	BBox      []float64   `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64     `json:"det_score"`
	Landmarks [][]float64 `json:"landmarks,omitempty"`
}

// faceResponse represents the response from the face endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

func (m *embeddingModel) EstimateFaces(ctx context.Context, img image.Image) ([]Face, error) {
	scaled := imaging.Fit(img, constants.MaxImageSize)
	data, err := imaging.EncodeJPEG(scaled, constants.MaxImageSize)
	if err != nil {
		return nil, err
	}

	body, err := m.postImage(ctx, "/embed/face", data)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Boxes come back in the coordinates of the scaled JPEG.
	scale := scaleFactor(img, scaled)

	faces := make([]Face, 0, len(faceResp.Faces))
	for _, fd := range faceResp.Faces {
		face := Face{Box: scaleBox(boxFromCorners(fd.BBox), scale), Score: fd.DetScore}
		if m.opts.RefineLandmarks {
			for _, lm := range fd.Landmarks {
				if len(lm) >= 2 {
					face.Keypoints = append(face.Keypoints, Point{X: lm[0] * scale, Y: lm[1] * scale})
				}
			}
		}
		faces = append(faces, face)
	}
	return limitFaces(faces, m.opts.MaxFaces), nil
}

// postImage posts the JPEG as a multipart "file" part and returns the response body.
func (m *embeddingModel) postImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.backend.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.backend.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func scaleBox(b Box, scale float64) Box {
	return Box{
		XMin:   b.XMin * scale,
		YMin:   b.YMin * scale,
		Width:  b.Width * scale,
		Height: b.Height * scale,
	}
}
