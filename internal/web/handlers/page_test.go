package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestPage(t *testing.T, model *fakeModel, loaded bool) (*PageHandler, *DetectHandler) {
	t.Helper()
	h, _, _ := newTestHandler(t, model, loaded)
	page, err := NewPageHandler(h)
	if err != nil {
		t.Fatalf("NewPageHandler failed: %v", err)
	}
	return page, h
}

func TestPage_IndexLoading(t *testing.T) {
	page, _ := newTestPage(t, &fakeModel{}, false)

	recorder := httptest.NewRecorder()
	page.Index(recorder, withSession(httptest.NewRequest(http.MethodGet, "/", nil), "s1"))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "text/html; charset=utf-8")
	body := recorder.Body.String()
	for _, want := range []string{"Loading Model...", "Retry Loading Model", "How It Works", "dropzone disabled", "Uploads are analyzed once the model is ready"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
}

func TestPage_IndexReady(t *testing.T) {
	page, h := newTestPage(t, &fakeModel{}, true)

	recorder := httptest.NewRecorder()
	page.Index(recorder, withSession(httptest.NewRequest(http.MethodGet, "/", nil), "s1"))

	body := recorder.Body.String()
	if !strings.Contains(body, "Model Ready") {
		t.Error("expected ready banner")
	}
	if strings.Contains(body, "dropzone disabled") {
		t.Error("expected upload zone to be enabled")
	}
	if strings.Contains(body, "Detection Failed") || strings.Contains(body, "Face Count") {
		t.Error("expected empty results panel for a fresh session")
	}
	if h.workspaces.Len() != 0 {
		t.Errorf("expected viewing the page not to create a workspace, got %d", h.workspaces.Len())
	}
}

func TestPage_SubmitUpload(t *testing.T) {
	page, _ := newTestPage(t, &fakeModel{faces: twoFaces()}, true)

	recorder := httptest.NewRecorder()
	page.Submit(recorder, withSession(uploadRequest(t, http.MethodPost, "/", "group.png", "image/png", pngBytes(t)), "s1"))

	assertStatusCode(t, recorder, http.StatusOK)
	body := recorder.Body.String()
	for _, want := range []string{"Face Detected!", "95.0%", "2 faces found", `src="data:image/jpeg;base64,`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
}

func TestPage_SubmitNonImage(t *testing.T) {
	page, _ := newTestPage(t, &fakeModel{faces: twoFaces()}, true)

	recorder := httptest.NewRecorder()
	page.Submit(recorder, withSession(uploadRequest(t, http.MethodPost, "/", "notes.txt", "text/plain", []byte("hi")), "s1"))

	assertStatusCode(t, recorder, http.StatusUnsupportedMediaType)
	if !strings.Contains(recorder.Body.String(), "Please select an image file") {
		t.Error("expected image alert on page")
	}
}

func TestPage_SubmitActions(t *testing.T) {
	page, h := newTestPage(t, &fakeModel{faces: twoFaces()}, false)

	form := url.Values{"action": {"init"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	page.Submit(recorder, withSession(req, "s1"))

	assertStatusCode(t, recorder, http.StatusOK)
	if !h.workspaces.Get("s1").Controller.Loaded() || !strings.Contains(recorder.Body.String(), "Model Ready") {
		t.Error("expected init action to load the model")
	}

	h.workspaces.Get("s1").SetPreview("data:image/jpeg;base64,AAAA", "a.jpg")
	form = url.Values{"action": {"clear"}}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	page.Submit(httptest.NewRecorder(), withSession(req, "s1"))

	if preview, _ := h.workspaces.Get("s1").Preview(); preview != "" {
		t.Error("expected clear action to drop the preview")
	}
}
