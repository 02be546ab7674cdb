package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/postflight/internal/adapters/http/handlers"
	"github.com/jsamuelsen/postflight/internal/adapters/http/middleware"
	"github.com/jsamuelsen/postflight/internal/platform/config"
	"github.com/jsamuelsen/postflight/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// AppConfig contains application configuration.
	AppConfig *config.AppConfig

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// EventsHandler handles event intake and retrieval endpoints.
	EventsHandler *handlers.EventsHandler

	// PostFlight wires the deferred task scheduler into API requests.
	PostFlight middleware.PostFlightConfig

	// Timeout is the default request timeout.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Request ID - generate/extract request ID
//  3. Correlation ID - handle distributed tracing correlation
//  4. OpenTelemetry - tracing and metrics
//  5. Logging - request logging (skips health endpoints)
//  6. Timeout - request deadline (API routes only)
//  7. PostFlight - per-request deferred task scheduler (API routes only)
//
// Route groups:
//   - /-/ (internal): health endpoints, no timeout, no deferred scheduling
//   - /api/v1/ (public API): business endpoints
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.Middleware(cfg.AppConfig.Name),
		middleware.Logging(cfg.Logger),
	)

	// Health endpoints stay outside the timeout and scheduler chain so probes
	// never pick up deferred work.
	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.SimpleTimeout(cfg.Timeout))
	}

	// PostFlight comes after the ID middlewares and the timeout so the request
	// state carries both IDs and deferred callbacks detach from the deadline.
	apiV1.Use(middleware.PostFlight(cfg.PostFlight))

	if cfg.EventsHandler != nil {
		cfg.EventsHandler.RegisterEventRoutes(apiV1)
	}
}

// SetupMinimalRouter sets up a minimal router with just health endpoints.
// Useful for testing or lightweight deployments.
func SetupMinimalRouter(engine *gin.Engine, logger *slog.Logger, healthHandler *handlers.HealthHandler) {
	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
	)

	if healthHandler != nil {
		healthHandler.RegisterHealthRoutesOnEngine(engine)
	}
}
