package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-check/internal/web/handlers"
	"github.com/kozaktomas/face-check/internal/web/middleware"
	"github.com/kozaktomas/face-check/internal/web/static"
)

func (s *Server) setupRoutes() {
	// Health check and config (no session required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Get("/api/v1/config", handlers.NewConfigHandler(s.config).Get)

	// Embedded page assets
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.GetFileSystem())))

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.WithSession(s.sessionManager))

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/status", s.detectHandler.Status)
			r.Post("/model/init", s.detectHandler.InitModel)
			r.Post("/detect", s.detectHandler.Detect)
			r.Delete("/preview", s.detectHandler.ClearPreview)
			r.Get("/events", s.detectHandler.Events)
			r.Get("/history", s.detectHandler.History)
		})

		// Server-rendered page and its no-script form fallback
		r.Get("/", s.pageHandler.Index)
		r.Post("/", s.pageHandler.Submit)
	})
}
