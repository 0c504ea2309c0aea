package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-check/internal/config"
	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/detector"
	"github.com/kozaktomas/face-check/internal/history"
	"github.com/kozaktomas/face-check/internal/history/postgres"
	"github.com/kozaktomas/face-check/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Check web server.
The detector model starts loading in the background right away. Visitors see
a loading banner until it is ready.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	sessionSecret := mustGetString(cmd, "session-secret")

	if sessionSecret == "" {
		sessionSecret = os.Getenv("WEB_SESSION_SECRET")
	}
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host, sessionSecret
}

// openRecorder returns the PostgreSQL history when DATABASE_URL is set and
// an in-memory one otherwise. The returned func releases it.
func openRecorder(ctx context.Context, cfg *config.Config) (history.Recorder, func(), error) {
	if cfg.Database.URL == "" {
		fmt.Printf("Keeping the last %d detection attempts in memory\n", constants.DefaultHistorySize)
		return history.NewMemoryRecorder(constants.DefaultHistorySize), func() {}, nil
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	rec, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	fmt.Printf("Detection history enabled (PostgreSQL)\n")
	return rec, func() { rec.Close() }, nil
}

// preloadModel starts loading the detector so the first visitor does not wait for it.
func preloadModel(ctx context.Context, loader *detector.Loader) {
	go func() {
		fmt.Printf("Loading %s face detection model...\n", loader.Backend())
		if _, err := loader.Load(ctx); err != nil {
			fmt.Printf("Warning: failed to load face detection model: %v\n", err)
			fmt.Printf("Visitors can retry from the page\n")
			return
		}
		fmt.Printf("Face detection model ready (%s)\n", loader.Backend())
	}()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	loader, err := detector.NewLoaderFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder, closeRecorder, err := openRecorder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRecorder()

	port, host, sessionSecret := resolveServeHostPort(cmd)
	server, err := web.NewServer(cfg, port, host, sessionSecret, loader, recorder)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	preloadModel(ctx, loader)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Check on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	if err := loader.Close(); err != nil {
		fmt.Printf("Error releasing face detection model: %v\n", err)
	}
	return nil
}
