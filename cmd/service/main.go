// Package main is the entry point for the service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/postflight/internal/adapters/audit"
	"github.com/jsamuelsen/postflight/internal/adapters/http"
	"github.com/jsamuelsen/postflight/internal/adapters/http/handlers"
	"github.com/jsamuelsen/postflight/internal/adapters/http/middleware"
	"github.com/jsamuelsen/postflight/internal/adapters/store"
	"github.com/jsamuelsen/postflight/internal/adapters/webhook"
	"github.com/jsamuelsen/postflight/internal/app"
	"github.com/jsamuelsen/postflight/internal/app/after"
	"github.com/jsamuelsen/postflight/internal/platform/config"
	"github.com/jsamuelsen/postflight/internal/platform/logging"
	"github.com/jsamuelsen/postflight/internal/platform/metrics"
	"github.com/jsamuelsen/postflight/internal/platform/telemetry"
	"github.com/jsamuelsen/postflight/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	slog.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Create health registry
	healthRegistry := ports.NewHealthRegistry()

	// 6. Deferred-work plumbing: tracker, failure sink, scheduler metrics
	schedMetrics := metrics.NewScheduler(prometheus.DefaultRegisterer)
	sink := after.NewLogSink(logger)
	tracker := after.NewTracker(sink, schedMetrics)

	// 7. Feature flags from config
	flags := ports.NewStaticFlags(cfg.Flags)

	// 8. Create adapters: event store, webhook sender, audit log
	eventStore := store.NewMemory()

	sender, err := webhook.NewSender(cfg.Webhook, logger)
	if err != nil {
		return fmt.Errorf("creating webhook sender: %w", err)
	}

	if err := healthRegistry.Register(sender); err != nil {
		return fmt.Errorf("registering webhook health check: %w", err)
	}

	auditLog := audit.NewFileLog(cfg.Audit)

	defer func() {
		if closeErr := auditLog.Close(); closeErr != nil {
			logger.Error("audit log close error", slog.Any("error", closeErr))
		}
	}()

	// 9. Create event service (application layer)
	eventService := app.NewEventService(eventStore, sender, auditLog, flags)

	// 10. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo)
	eventsHandler := handlers.NewEventsHandler(eventService)

	// 11. Create HTTP server
	server := http.New(&cfg.Server, logger)

	// 12. Setup router with all middleware and routes
	routerCfg := http.RouterConfig{
		Logger:        logger,
		AppConfig:     &cfg.App,
		HealthHandler: healthHandler,
		EventsHandler: eventsHandler,
		PostFlight: middleware.PostFlightConfig{
			Tracker: tracker,
			Flags:   flags,
			Sink:    sink,
			Metrics: schedMetrics,
		},
		Timeout: http.DefaultRequestTimeout,
	}
	http.SetupRouter(server.Engine(), routerCfg)

	// 13. Start server (non-blocking)
	serverErr := server.Start()

	// 14. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, tracker, serverErr, cfg.Server.ShutdownTimeout)
}

// waitForShutdown blocks until a shutdown signal is received or server error
// occurs. It then stops the HTTP server and drains deferred work, both within
// the shutdown timeout.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	tracker *after.Tracker,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	// Listen for OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		// Server error during startup or runtime
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	// Graceful shutdown sequence
	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Deferred callbacks and tracked operations may outlive their responses;
	// give them the remainder of the shutdown window to settle.
	if err := tracker.Wait(shutdownCtx); err != nil {
		logger.Warn("deferred work did not settle before shutdown deadline",
			slog.Any("error", err),
		)
	}

	logger.Info("shutdown complete")

	return nil
}
