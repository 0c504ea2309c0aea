package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/web/static"
)

// PageHandler renders the server-side page and its form fallback.
type PageHandler struct {
	detect *DetectHandler
	tmpl   *template.Template
}

type pageData struct {
	Status StatusResponse
	Alert  string
	Notice string
	Busy   bool
}

// NewPageHandler parses the embedded page template.
func NewPageHandler(detect *DetectHandler) (*PageHandler, error) {
	tmpl, err := static.ParseTemplates(template.FuncMap{
		// Previews are data URIs built by the server.
		"safeURL": func(s string) template.URL { return template.URL(s) }, //nolint:gosec // server-generated data URI
	})
	if err != nil {
		return nil, fmt.Errorf("parsing page templates: %w", err)
	}
	return &PageHandler{detect: detect, tmpl: tmpl}, nil
}

// Index renders the page for the caller's workspace.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "", "")
}

// Submit handles the form posts made without script: upload, clear and retry.
func (h *PageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.render(w, r, http.StatusBadRequest, "failed to parse form", "")
		return
	}

	switch r.FormValue("action") {
	case "init":
		h.detect.workspace(r).Controller.Initialize(r.Context())
		h.render(w, r, http.StatusOK, "", "")
	case "clear":
		if ws, _ := h.detect.current(r); ws != nil {
			ws.ClearPreview()
		}
		h.render(w, r, http.StatusOK, "", "")
	default:
		_, fh, err := r.FormFile("file")
		if err != nil {
			h.render(w, r, http.StatusBadRequest, "file is required", "")
			return
		}
		out := h.detect.run(r.Context(), h.detect.workspace(r), fh)
		h.render(w, r, out.status, out.alert, out.notice)
	}
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, alert, notice string) {
	ws, snap := h.detect.current(r)
	data := pageData{
		Status: h.detect.statusFor(ws, snap),
		Alert:  alert,
		Notice: notice,
		Busy:   snap.Result.Processing || !snap.Loaded,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("Error rendering page: %v", err)
	}
}
