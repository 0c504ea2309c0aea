package handlers

import (
	"context"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/face-check/internal/acquire"
	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/facedetect"
	"github.com/kozaktomas/face-check/internal/history"
	"github.com/kozaktomas/face-check/internal/web/view"
)

// DetectHandler serves the detection API for the caller's workspace.
type DetectHandler struct {
	workspaces *Workspaces
	backend    string
	recorder   history.Recorder
}

// NewDetectHandler creates a new detect handler. A nil recorder keeps history in memory.
func NewDetectHandler(workspaces *Workspaces, backend string, recorder history.Recorder) *DetectHandler {
	if recorder == nil {
		recorder = history.NewMemoryRecorder(constants.DefaultHistorySize)
	}
	return &DetectHandler{
		workspaces: workspaces,
		backend:    backend,
		recorder:   recorder,
	}
}

// StatusResponse is the workspace state as rendered by the page.
type StatusResponse struct {
	ModelLoaded bool              `json:"model_loaded"`
	Backend     string            `json:"backend"`
	Result      facedetect.Result `json:"result"`
	Panel       view.Panel        `json:"panel"`
	Banner      view.Banner       `json:"banner"`
	Preview     string            `json:"preview,omitempty"`
	FileName    string            `json:"file_name,omitempty"`
	Notice      string            `json:"notice,omitempty"`
}

// detectOutcome is what one upload attempt produced besides the result record.
type detectOutcome struct {
	status int
	notice string
	alert  string
}

func (h *DetectHandler) workspace(r *http.Request) *Workspace {
	return h.workspaces.Get(sessionID(r))
}

// current returns the caller's workspace and snapshot without creating a
// workspace. ws is nil for a visitor who has not acted yet.
func (h *DetectHandler) current(r *http.Request) (*Workspace, facedetect.Snapshot) {
	ws := h.workspaces.Lookup(sessionID(r))
	if ws == nil {
		return nil, h.workspaces.Idle()
	}
	return ws, ws.Controller.Snapshot()
}

func (h *DetectHandler) statusFor(ws *Workspace, snap facedetect.Snapshot) StatusResponse {
	var preview, fileName string
	if ws != nil {
		preview, fileName = ws.Preview()
	}
	return StatusResponse{
		ModelLoaded: snap.Loaded,
		Backend:     h.backend,
		Result:      snap.Result,
		Panel:       view.Render(snap.Result, snap.Loaded),
		Banner:      view.Status(snap.Loaded),
		Preview:     preview,
		FileName:    fileName,
	}
}

// Status returns the caller's current result, panel and banner.
func (h *DetectHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.statusFor(h.current(r)))
}

// InitModel retries model initialisation and returns the resulting status.
func (h *DetectHandler) InitModel(w http.ResponseWriter, r *http.Request) {
	ws := h.workspace(r)
	ws.Controller.Initialize(r.Context())
	respondJSON(w, http.StatusOK, h.statusFor(ws, ws.Controller.Snapshot()))
}

// Detect accepts one image in the multipart field "file" and runs detection on it.
func (h *DetectHandler) Detect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	_, fh, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}

	ws := h.workspace(r)
	out := h.run(r.Context(), ws, fh)
	if out.alert != "" {
		respondError(w, out.status, out.alert)
		return
	}

	resp := h.statusFor(ws, ws.Controller.Snapshot())
	resp.Notice = out.notice
	respondJSON(w, out.status, resp)
}

// ClearPreview removes the caller's preview. The result record is kept.
func (h *DetectHandler) ClearPreview(w http.ResponseWriter, r *http.Request) {
	ws, snap := h.current(r)
	if ws != nil {
		ws.ClearPreview()
	}
	respondJSON(w, http.StatusOK, h.statusFor(ws, snap))
}

// History returns the most recent detection attempts.
func (h *DetectHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := constants.DefaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, constants.DefaultHistorySize)
	}

	attempts, err := h.recorder.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("Error loading detection history: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if attempts == nil {
		attempts = []history.Attempt{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"attempts": attempts,
		"count":    len(attempts),
	})
}

// run pushes one upload through acquisition and detection. A rejected upload
// leaves both the result record and the preview untouched.
func (h *DetectHandler) run(ctx context.Context, ws *Workspace, fh *multipart.FileHeader) detectOutcome {
	out := detectOutcome{status: http.StatusOK}

	err := acquire.AcceptFileHeader(fh, func(img *acquire.UploadedImage) {
		ws.SetPreview(img.Preview, img.FileName)

		if !ws.Controller.Loaded() {
			out.status = http.StatusConflict
			out.notice = constants.MsgModelLoading
			return
		}

		out.notice = constants.MsgProcessing
		start := time.Now()
		result := ws.Controller.DetectFaces(ctx, img.Bitmap)
		if result.Version == 0 {
			out.notice = constants.MsgSuperseded
		}
		h.record(ctx, ws.ID, img, result, time.Since(start))
	})

	switch {
	case err == nil:
		return out
	case errors.Is(err, acquire.ErrNotImage):
		return detectOutcome{status: http.StatusUnsupportedMediaType, alert: constants.MsgNotAnImage}
	case errors.Is(err, acquire.ErrNoFile):
		return detectOutcome{status: http.StatusBadRequest, alert: "file is required"}
	default:
		log.Printf("Error reading upload: %s", sanitizeForLog(err.Error()))
		return detectOutcome{status: http.StatusUnprocessableEntity, alert: constants.MsgUnreadableImage}
	}
}

// record stores the attempt with its own outcome, even when a newer upload
// superseded it on screen. Failures are logged only.
func (h *DetectHandler) record(ctx context.Context, session string, img *acquire.UploadedImage, r facedetect.Result, took time.Duration) {
	attempt := history.NewAttempt(session, img.FileName, img.Format, img.Width(), img.Height(), h.backend, r, took)
	if err := h.recorder.Record(context.WithoutCancel(ctx), attempt); err != nil {
		log.Printf("Error recording detection attempt: %v", err)
	}
}
