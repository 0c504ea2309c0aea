package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-check/internal/config"
	"github.com/kozaktomas/face-check/internal/facedetect"
	"github.com/kozaktomas/face-check/internal/history"
	"github.com/kozaktomas/face-check/internal/web/handlers"
	"github.com/kozaktomas/face-check/internal/web/middleware"
)

// ModelLoader is the shared detector handle provider.
type ModelLoader interface {
	facedetect.Loader
	Backend() string
}

// Server represents the web server
type Server struct {
	config         *config.Config
	router         *chi.Mux
	httpServer     *http.Server
	sessionManager *middleware.SessionManager
	workspaces     *handlers.Workspaces
	detectHandler  *handlers.DetectHandler
	pageHandler    *handlers.PageHandler
}

// NewServer creates a new web server. Every visitor session gets its own
// controller; all of them share loader.
func NewServer(cfg *config.Config, port int, host string, sessionSecret string, loader ModelLoader, recorder history.Recorder) (*Server, error) {
	r := chi.NewRouter()

	sessionManager := middleware.NewSessionManager(sessionSecret)
	workspaces := handlers.NewWorkspaces(loader, cfg.Detector.FaceFoundConfidence)
	sessionManager.OnExpire(workspaces.Drop)

	detectHandler := handlers.NewDetectHandler(workspaces, loader.Backend(), recorder)
	pageHandler, err := handlers.NewPageHandler(detectHandler)
	if err != nil {
		sessionManager.Stop()
		return nil, err
	}

	s := &Server{
		config:         cfg,
		router:         r,
		sessionManager: sessionManager,
		workspaces:     workspaces,
		detectHandler:  detectHandler,
		pageHandler:    pageHandler,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for SSE and uploads
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	s.sessionManager.Stop()
	// Ends open event streams so Shutdown does not wait for them.
	s.workspaces.Close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
