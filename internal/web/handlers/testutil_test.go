package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/kozaktomas/face-check/internal/detector"
	"github.com/kozaktomas/face-check/internal/history"
	"github.com/kozaktomas/face-check/internal/web/middleware"
)

// fakeModel returns a fixed set of faces or an error, or delegates to estimate.
type fakeModel struct {
	mu       sync.Mutex
	faces    []detector.Face
	err      error
	calls    int
	estimate func(call int) ([]detector.Face, error)
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) EstimateFaces(ctx context.Context, img image.Image) ([]detector.Face, error) {
	m.mu.Lock()
	m.calls++
	call, estimate := m.calls, m.estimate
	faces, err := m.faces, m.err
	m.mu.Unlock()

	if estimate != nil {
		return estimate(call)
	}
	return faces, err
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeLoader hands out model once loaded. A nil model makes Load fail.
type fakeLoader struct {
	mu     sync.Mutex
	model  *fakeModel
	loaded bool
	err    error
}

func (l *fakeLoader) Model() detector.Model {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded || l.model == nil {
		return nil
	}
	return l.model
}

func (l *fakeLoader) Load(ctx context.Context) (detector.Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.loaded = true
	return l.model, nil
}

func (l *fakeLoader) Backend() string { return "fake" }

func twoFaces() []detector.Face {
	return []detector.Face{{Score: 0.9}, {Score: 0.8}}
}

// newTestHandler builds a detect handler over a loaded fake model.
func newTestHandler(t *testing.T, model *fakeModel, loaded bool) (*DetectHandler, *fakeLoader, *history.MemoryRecorder) {
	t.Helper()
	loader := &fakeLoader{model: model, loaded: loaded}
	rec := history.NewMemoryRecorder(10)
	h := NewDetectHandler(NewWorkspaces(loader, 0), "fake", rec)
	return h, loader, rec
}

// withSession attaches a session to the request context
func withSession(r *http.Request, id string) *http.Request {
	ctx := middleware.SetSessionInContext(r.Context(), &middleware.Session{ID: id})
	return r.WithContext(ctx)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := range 16 {
		img.Set(x, x, color.RGBA{G: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// uploadRequest creates a multipart request with one part in field "file"
func uploadRequest(t *testing.T, method, path, fileName, contentType string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		t.Fatalf("failed to create form part: %v", err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
