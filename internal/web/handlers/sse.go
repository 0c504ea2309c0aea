package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// setupSSEConnection sets the event-stream headers.
// On failure it writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// Events streams the caller's result record. The first event is the current
// status, then one "result" event per publication until the client leaves or
// the workspace is dropped.
func (h *DetectHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	ws := h.workspace(r)
	eventCh := ws.Controller.Subscribe()
	defer ws.Controller.Unsubscribe(eventCh)

	sendSSEEvent(w, flusher, "status", h.statusFor(ws, ws.Controller.Snapshot()))

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, "result", h.statusFor(ws, snap))
		}
	}
}
