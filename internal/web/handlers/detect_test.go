package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/detector"
	"github.com/kozaktomas/face-check/internal/web/view"
)

func TestDetect_TwoFaces(t *testing.T) {
	model := &fakeModel{faces: twoFaces()}
	h, _, rec := newTestHandler(t, model, true)

	req := withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "group.png", "image/png", pngBytes(t)), "s1")
	recorder := httptest.NewRecorder()
	h.Detect(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp StatusResponse
	parseJSONResponse(t, recorder, &resp)

	r := resp.Result
	if !r.HasFace || r.Confidence != 0.95 || r.FaceCount != 2 || r.Processing || r.Error != "" {
		t.Errorf("unexpected result %+v", r)
	}
	if resp.Panel.Kind != view.PanelResult || resp.Panel.Badge != "2 faces found" || resp.Panel.Confidence != "95.0%" {
		t.Errorf("unexpected panel %+v", resp.Panel)
	}
	if !strings.HasPrefix(resp.Preview, "data:image/jpeg;base64,") || resp.FileName != "group.png" {
		t.Errorf("expected preview for group.png, got %q / %q", resp.Preview[:min(len(resp.Preview), 30)], resp.FileName)
	}
	if resp.Notice != constants.MsgProcessing {
		t.Errorf("unexpected notice %q", resp.Notice)
	}

	attempts, _ := rec.Recent(context.Background(), 10)
	if len(attempts) != 1 || attempts[0].FaceCount != 2 || attempts[0].SessionID != "s1" || attempts[0].Width != 16 {
		t.Errorf("unexpected history %+v", attempts)
	}
}

func TestDetect_NoFaces(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeModel{}, true)

	recorder := httptest.NewRecorder()
	h.Detect(recorder, withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "empty.png", "image/png", pngBytes(t)), "s1"))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp StatusResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Result.HasFace || resp.Result.FaceCount != 0 || resp.Result.Confidence != 0 {
		t.Errorf("unexpected result %+v", resp.Result)
	}
}

func TestDetect_RejectsNonImage(t *testing.T) {
	model := &fakeModel{faces: twoFaces()}
	h, _, rec := newTestHandler(t, model, true)

	// Establish a prior result and preview.
	first := httptest.NewRecorder()
	h.Detect(first, withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "group.png", "image/png", pngBytes(t)), "s1"))
	before := h.workspaces.Get("s1")
	prevResult := before.Controller.Result()
	prevPreview, _ := before.Preview()

	recorder := httptest.NewRecorder()
	h.Detect(recorder, withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "notes.txt", "text/plain", []byte("hello")), "s1"))

	assertStatusCode(t, recorder, http.StatusUnsupportedMediaType)
	assertJSONError(t, recorder, constants.MsgNotAnImage)

	ws := h.workspaces.Get("s1")
	if ws.Controller.Result().Version != prevResult.Version {
		t.Error("expected result to be unchanged after rejection")
	}
	if preview, _ := ws.Preview(); preview != prevPreview {
		t.Error("expected preview to be unchanged after rejection")
	}
	if model.callCount() != 1 {
		t.Errorf("expected no detection for rejected file, got %d calls", model.callCount())
	}
	if attempts, _ := rec.Recent(context.Background(), 10); len(attempts) != 1 {
		t.Errorf("expected rejected upload not to be recorded, got %d attempts", len(attempts))
	}
}

func TestDetect_ModelNotLoaded(t *testing.T) {
	model := &fakeModel{faces: twoFaces()}
	h, _, _ := newTestHandler(t, model, false)

	recorder := httptest.NewRecorder()
	h.Detect(recorder, withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "face.png", "image/png", pngBytes(t)), "s1"))

	assertStatusCode(t, recorder, http.StatusConflict)
	var resp StatusResponse
	parseJSONResponse(t, recorder, &resp)

	if resp.Notice != constants.MsgModelLoading {
		t.Errorf("expected please-wait notice, got %q", resp.Notice)
	}
	if resp.Result.Processing {
		t.Error("expected processing to stay false")
	}
	if model.callCount() != 0 {
		t.Errorf("expected no detection call, got %d", model.callCount())
	}
	if resp.ModelLoaded || resp.Banner.Title != "Loading Model..." {
		t.Errorf("unexpected banner %+v", resp.Banner)
	}
	if resp.Preview == "" {
		t.Error("expected preview to be shown while the model loads")
	}
}

func TestDetect_InferenceError(t *testing.T) {
	model := &fakeModel{faces: twoFaces()}
	h, _, _ := newTestHandler(t, model, true)

	h.Detect(httptest.NewRecorder(), withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "a.png", "image/png", pngBytes(t)), "s1"))

	model.mu.Lock()
	model.err = errors.New("backend exploded")
	model.mu.Unlock()

	recorder := httptest.NewRecorder()
	h.Detect(recorder, withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "b.png", "image/png", pngBytes(t)), "s1"))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp StatusResponse
	parseJSONResponse(t, recorder, &resp)

	if resp.Result.Error != constants.MsgDetectionFailed {
		t.Errorf("expected detection error, got %q", resp.Result.Error)
	}
	if resp.Result.FaceCount != 2 || !resp.Result.HasFace {
		t.Errorf("expected stale counts to be kept, got %+v", resp.Result)
	}
	if resp.Panel.Kind != view.PanelError || resp.Panel.Message != constants.MsgDetectionFailed {
		t.Errorf("unexpected panel %+v", resp.Panel)
	}
}

func TestDetect_UndecodableImage(t *testing.T) {
	model := &fakeModel{}
	h, _, _ := newTestHandler(t, model, true)

	recorder := httptest.NewRecorder()
	h.Detect(recorder, withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "broken.png", "image/png", []byte("nope")), "s1"))

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	assertJSONError(t, recorder, constants.MsgUnreadableImage)
	if model.callCount() != 0 {
		t.Error("expected no detection for undecodable image")
	}
}

func TestDetect_MissingFile(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeModel{}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/detect", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	h.Detect(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestDetect_SessionsAreIsolated(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeModel{faces: twoFaces()}, true)

	h.Detect(httptest.NewRecorder(), withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "a.png", "image/png", pngBytes(t)), "s1"))

	recorder := httptest.NewRecorder()
	h.Status(recorder, withSession(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil), "s2"))

	var resp StatusResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Result.FaceCount != 0 || resp.Preview != "" || resp.Panel.Kind != view.PanelEmpty {
		t.Errorf("expected fresh workspace for other session, got %+v", resp)
	}
	if h.workspaces.Lookup("s2") != nil {
		t.Error("expected status alone not to create a workspace")
	}
}

func TestStatus(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeModel{}, true)

	recorder := httptest.NewRecorder()
	h.Status(recorder, withSession(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil), "s1"))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")
	var resp StatusResponse
	parseJSONResponse(t, recorder, &resp)
	if !resp.ModelLoaded || resp.Banner.Title != "Model Ready" || resp.Backend != "fake" {
		t.Errorf("unexpected status %+v", resp)
	}
}

func TestInitModel(t *testing.T) {
	h, loader, _ := newTestHandler(t, &fakeModel{}, false)
	loader.err = errors.New("no weights")

	recorder := httptest.NewRecorder()
	h.InitModel(recorder, withSession(httptest.NewRequest(http.MethodPost, "/api/v1/model/init", nil), "s1"))

	var resp StatusResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.ModelLoaded || resp.Result.Error != constants.MsgModelLoadFailed {
		t.Errorf("expected load failure, got %+v", resp.Result)
	}

	loader.mu.Lock()
	loader.err = nil
	loader.mu.Unlock()

	recorder = httptest.NewRecorder()
	h.InitModel(recorder, withSession(httptest.NewRequest(http.MethodPost, "/api/v1/model/init", nil), "s1"))
	resp = StatusResponse{}
	parseJSONResponse(t, recorder, &resp)
	if !resp.ModelLoaded || resp.Result.Error != "" || !resp.Banner.Ready {
		t.Errorf("expected successful retry, got %+v", resp)
	}
}

func TestClearPreview(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeModel{faces: twoFaces()}, true)
	h.Detect(httptest.NewRecorder(), withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "a.png", "image/png", pngBytes(t)), "s1"))

	recorder := httptest.NewRecorder()
	h.ClearPreview(recorder, withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/preview", nil), "s1"))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp StatusResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Preview != "" || resp.FileName != "" {
		t.Error("expected preview to be cleared")
	}
	if resp.Result.FaceCount != 2 {
		t.Error("expected result to survive clearing the preview")
	}
}

func TestHistory(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeModel{faces: twoFaces()}, true)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		h.Detect(httptest.NewRecorder(), withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", name, "image/png", pngBytes(t)), "s1"))
	}

	recorder := httptest.NewRecorder()
	h.History(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=2", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp struct {
		Attempts []struct {
			FileName  string `json:"file_name"`
			FaceCount int    `json:"face_count"`
		} `json:"attempts"`
		Count int `json:"count"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Count != 2 || resp.Attempts[0].FileName != "c.png" {
		t.Errorf("unexpected history %+v", resp)
	}
}

func TestHistory_InvalidLimit(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeModel{}, true)

	recorder := httptest.NewRecorder()
	h.History(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=abc", nil))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "limit must be a positive integer")
}

func TestHistory_Empty(t *testing.T) {
	h, _, _ := newTestHandler(t, &fakeModel{}, true)

	recorder := httptest.NewRecorder()
	h.History(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))

	if !strings.Contains(recorder.Body.String(), `"attempts":[]`) {
		t.Errorf("expected empty attempts array, got %s", recorder.Body.String())
	}
}

func TestDetect_SupersededUploadRecordsOwnOutcome(t *testing.T) {
	releaseOlder := make(chan struct{})
	releaseNewer := make(chan struct{})
	olderStarted := make(chan struct{})
	newerStarted := make(chan struct{})
	model := &fakeModel{estimate: func(call int) ([]detector.Face, error) {
		if call == 1 {
			close(olderStarted)
			<-releaseOlder
			return twoFaces(), nil
		}
		close(newerStarted)
		<-releaseNewer
		return nil, nil
	}}
	h, _, rec := newTestHandler(t, model, true)

	older := httptest.NewRecorder()
	olderDone := make(chan struct{})
	go func() {
		h.Detect(older, withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "group.png", "image/png", pngBytes(t)), "s1"))
		close(olderDone)
	}()
	<-olderStarted

	newer := httptest.NewRecorder()
	newerDone := make(chan struct{})
	go func() {
		h.Detect(newer, withSession(uploadRequest(t, http.MethodPost, "/api/v1/detect", "empty.png", "image/png", pngBytes(t)), "s1"))
		close(newerDone)
	}()
	<-newerStarted

	close(releaseOlder)
	<-olderDone

	assertStatusCode(t, older, http.StatusOK)
	var resp StatusResponse
	parseJSONResponse(t, older, &resp)
	if resp.Notice != constants.MsgSuperseded {
		t.Errorf("expected superseded notice, got %q", resp.Notice)
	}

	attempts, _ := rec.Recent(context.Background(), 10)
	if len(attempts) != 1 {
		t.Fatalf("expected one recorded attempt, got %d", len(attempts))
	}
	if attempts[0].FileName != "group.png" || attempts[0].FaceCount != 2 || !attempts[0].HasFace {
		t.Errorf("expected group.png recorded with its own 2 faces, got %+v", attempts[0])
	}

	close(releaseNewer)
	<-newerDone

	attempts, _ = rec.Recent(context.Background(), 10)
	if len(attempts) != 2 || attempts[0].FileName != "empty.png" || attempts[0].FaceCount != 0 {
		t.Errorf("expected empty.png recorded with no faces, got %+v", attempts)
	}
	if r := h.workspaces.Get("s1").Controller.Result(); r.FaceCount != 0 || r.Processing {
		t.Errorf("expected newer upload's result on screen, got %+v", r)
	}
}
