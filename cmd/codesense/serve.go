package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/raaihank/codesense/internal/audit"
	"github.com/raaihank/codesense/internal/completion"
	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/explain"
	"github.com/raaihank/codesense/internal/privacy"
	"github.com/raaihank/codesense/internal/server"
	"github.com/raaihank/codesense/internal/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort int
	healthURL string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and dashboard",
		RunE:  runServe,
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check that a running server answers /health",
		RunE:  runHealth,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "CodeSense %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
)

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides server.port)")
	healthCmd.Flags().StringVar(&healthURL, "url", "", "Health endpoint (defaults to localhost on server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	defer log.Sync()

	apiKey, err := config.ResolveAPIKey(cfg.Completion)
	if err != nil {
		return err
	}

	log.Info("Starting CodeSense",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	detector, err := privacy.New(cfg.Privacy, log)
	if err != nil {
		return fmt.Errorf("failed to configure privacy rules: %w", err)
	}

	store, err := audit.New(cfg.Audit, log)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer store.Close()

	var opts []explain.Option
	respCache := openCache()
	if respCache != nil {
		defer respCache.Close()
		opts = append(opts, explain.WithCache(respCache))
	}

	var hub *websocket.Hub
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(cfg.WebSocket, log)
		opts = append(opts, explain.WithBroadcaster(hub))
	}

	service := explain.New(cfg, detector, completion.NewClient(cfg.Completion, apiKey, log), store, log, opts...)
	srv := server.New(cfg, version, server.Deps{
		Detector: detector,
		Service:  service,
		Store:    store,
		Cache:    respCache,
		Hub:      hub,
	}, log)

	if err := config.Watch(func(next *config.Config) {
		if err := detector.Configure(next.Privacy.Detectors); err != nil {
			log.Warn("Ignoring invalid detector list", zap.Error(err))
		}
		if err := log.SetLevel(next.Logging.Level); err != nil {
			log.Warn("Ignoring invalid log level", zap.Error(err))
		}
		log.Info("Configuration reloaded",
			zap.Strings("detectors", detector.GetEnabledRules()),
			zap.String("log_level", next.Logging.Level))
	}, func(err error) {
		log.Warn("Rejected configuration reload, keeping the previous one", zap.Error(err))
	}); err != nil {
		log.Warn("Config hot reload disabled", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start(ctx)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Error("Server error", zap.Error(err))
		}
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down gracefully: %w", err)
		}
		log.Info("Server shutdown complete")
		return nil
	}
}

func runHealth(cmd *cobra.Command, args []string) error {
	url := healthURL
	if url == "" {
		url = fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: HTTP %d", resp.StatusCode)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Health check passed")
	return nil
}
