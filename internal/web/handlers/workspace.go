package handlers

import (
	"sync"

	"github.com/kozaktomas/face-check/internal/facedetect"
)

// Workspace is the per-visitor state: one controller and the current preview.
type Workspace struct {
	ID         string
	Controller *facedetect.Controller

	mu       sync.RWMutex
	preview  string
	fileName string
}

// Preview returns the current preview data URI and its file name.
func (w *Workspace) Preview() (string, string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.preview, w.fileName
}

// SetPreview replaces the current preview.
func (w *Workspace) SetPreview(dataURI, fileName string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.preview = dataURI
	w.fileName = fileName
}

// ClearPreview drops the current preview.
func (w *Workspace) ClearPreview() {
	w.SetPreview("", "")
}

// Workspaces maps session IDs to workspaces. All controllers share one loader.
type Workspaces struct {
	loader     facedetect.Loader
	confidence float64

	mu    sync.Mutex
	items map[string]*Workspace
}

// NewWorkspaces creates an empty registry.
func NewWorkspaces(loader facedetect.Loader, confidence float64) *Workspaces {
	return &Workspaces{
		loader:     loader,
		confidence: confidence,
		items:      make(map[string]*Workspace),
	}
}

// Get returns the workspace for id, creating it on first use. Read-only
// requests use Lookup so that visitors who never upload hold no workspace.
func (ws *Workspaces) Get(id string) *Workspace {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, ok := ws.items[id]
	if !ok {
		w = &Workspace{
			ID:         id,
			Controller: facedetect.NewController(ws.loader, ws.confidence),
		}
		ws.items[id] = w
	}
	return w
}

// Lookup returns the workspace for id without creating it, or nil.
func (ws *Workspaces) Lookup(id string) *Workspace {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.items[id]
}

// Idle is the snapshot of a visitor who has no workspace yet.
func (ws *Workspaces) Idle() facedetect.Snapshot {
	return facedetect.Snapshot{Loaded: ws.loader.Model() != nil}
}

// Drop forgets a workspace and closes its subscribers. A detection still
// running for it finishes against the orphaned controller.
func (ws *Workspaces) Drop(id string) {
	ws.mu.Lock()
	w, ok := ws.items[id]
	delete(ws.items, id)
	ws.mu.Unlock()

	if ok {
		w.Controller.Close()
	}
}

// Len returns the number of live workspaces.
func (ws *Workspaces) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.items)
}

// Close drops every workspace.
func (ws *Workspaces) Close() {
	ws.mu.Lock()
	items := ws.items
	ws.items = make(map[string]*Workspace)
	ws.mu.Unlock()

	for _, w := range items {
		w.Controller.Close()
	}
}
