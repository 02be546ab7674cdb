// Package webhook delivers accepted events to subscriber endpoints over HTTP.
// Deliveries run after the intake response has closed, so the sender is built
// for unattended operation: retry with backoff and jitter, circuit breaker
// protection, and structured logging of every failure.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/postflight/internal/app/reqstate"
	"github.com/jsamuelsen/postflight/internal/domain"
	"github.com/jsamuelsen/postflight/internal/platform/config"
	"github.com/jsamuelsen/postflight/internal/platform/logging"
)

const (
	// instrumentationName is used for OpenTelemetry tracer and meter.
	instrumentationName = "github.com/jsamuelsen/postflight/internal/adapters/webhook"

	// backoffJitterFactor is the jitter percentage for backoff calculation (±25%).
	backoffJitterFactor = 0.25

	// jitterRangeMultiplier converts rand [0,1) to [-1,1) for symmetric jitter.
	jitterRangeMultiplier = 2

	// Delivery headers identifying the event.
	headerEventID       = "X-Event-ID"
	headerEventType     = "X-Event-Type"
	headerRequestID     = "X-Request-ID"
	headerCorrelationID = "X-Correlation-ID"
)

// deliveryPayload is the wire format posted to each endpoint.
type deliveryPayload struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Source     string         `json:"source"`
	Payload    map[string]any `json:"payload,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Sender implements ports.WebhookDispatcher over HTTP. One circuit breaker
// guards all endpoints; an open circuit also surfaces through the health
// check so operators see delivery trouble without reading logs.
type Sender struct {
	http    *http.Client
	cfg     config.WebhookConfig
	logger  *slog.Logger
	breaker *Breaker

	tracer trace.Tracer

	deliveryDuration metric.Float64Histogram
	deliveryTotal    metric.Int64Counter
}

// NewSender creates a webhook sender from configuration.
func NewSender(cfg config.WebhookConfig, logger *slog.Logger) (*Sender, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = config.DefaultWebhookWorkers
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "webhook.Sender"))

	breaker := NewBreaker(BreakerConfig{
		MaxFailures:   cfg.CircuitBreaker.MaxFailures,
		Cooldown:      cfg.CircuitBreaker.Timeout,
		HalfOpenLimit: cfg.CircuitBreaker.HalfOpenLimit,
	})
	breaker.OnStateChange(func(from, to State) {
		logger.Warn("circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	meter := otel.Meter(instrumentationName)

	deliveryDuration, err := meter.Float64Histogram(
		"webhook.delivery.duration",
		metric.WithDescription("Duration of webhook deliveries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration metric: %w", err)
	}

	deliveryTotal, err := meter.Int64Counter(
		"webhook.delivery.total",
		metric.WithDescription("Total number of webhook deliveries"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivery counter: %w", err)
	}

	return &Sender{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.Transport.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.Transport.MaxIdleConnsPerHost,
				IdleConnTimeout:     cfg.Transport.IdleConnTimeout,
			},
		},
		cfg:              cfg,
		logger:           logger,
		breaker:          breaker,
		tracer:           otel.Tracer(instrumentationName),
		deliveryDuration: deliveryDuration,
		deliveryTotal:    deliveryTotal,
	}, nil
}

// Dispatch delivers the event to all configured endpoints. Endpoints are
// worked concurrently up to the configured worker count; a failing endpoint
// never blocks delivery to the others.
func (s *Sender) Dispatch(ctx context.Context, event *domain.Event) error {
	if len(s.cfg.Endpoints) == 0 {
		return nil
	}

	body, err := json.Marshal(deliveryPayload{
		ID:         event.ID,
		Type:       event.Type,
		Source:     event.Source,
		Payload:    event.Payload,
		ReceivedAt: event.ReceivedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.ID, err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)

	// Errors are collected rather than returned from the group funcs so that
	// one failing endpoint does not cancel deliveries to the others.
	var g errgroup.Group

	g.SetLimit(s.cfg.Workers)

	for _, endpoint := range s.cfg.Endpoints {
		g.Go(func() error {
			if err := s.deliver(ctx, endpoint, event, body); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("deliver to %s: %w", endpoint, err))
				mu.Unlock()
			}

			return nil
		})
	}

	_ = g.Wait()

	if len(errs) == 0 {
		return nil
	}

	joined := errors.Join(errs...)
	if len(errs) == len(s.cfg.Endpoints) {
		return fmt.Errorf("%w: %w", domain.NewUnavailableError("webhook", "all endpoints failed"), joined)
	}

	return joined
}

// deliver posts the event to one endpoint with retry, circuit breaker,
// tracing, and logging.
func (s *Sender) deliver(ctx context.Context, endpoint string, event *domain.Event, body []byte) error {
	startTime := time.Now()
	logger := logging.FromContext(ctx).With(
		slog.String("component", "webhook.Sender"),
		slog.String("endpoint", endpoint),
		slog.String("event_id", event.ID),
	)

	if !s.breaker.Allow() {
		s.recordMetrics(ctx, endpoint, 0, time.Since(startTime), "circuit_open")
		logger.Warn("delivery blocked by circuit breaker")
		return ErrCircuitOpen
	}

	ctx, span := s.tracer.Start(ctx, "webhook.deliver",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.url", endpoint),
			attribute.String("event.type", event.Type),
		),
	)
	defer span.End()

	status, lastErr := s.deliverWithRetry(ctx, endpoint, event, body, logger)

	duration := time.Since(startTime)

	if lastErr != nil {
		s.breaker.RecordFailure()
		span.SetStatus(codes.Error, lastErr.Error())
		s.recordMetrics(ctx, endpoint, status, duration, "error")
		logger.Error("delivery failed",
			slog.Duration("duration", duration),
			slog.Any("error", lastErr),
		)

		if errors.Is(lastErr, ErrEndpointRejected) {
			return lastErr
		}

		return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
	}

	s.breaker.RecordSuccess()
	span.SetAttributes(attribute.Int("http.status_code", status))
	s.recordMetrics(ctx, endpoint, status, duration, "delivered")

	logger.Debug("delivery completed",
		slog.Int("status", status),
		slog.Duration("duration", duration),
	)

	return nil
}

// deliverWithRetry performs the POST with retry logic. A fresh request is
// built per attempt so the body can always be re-sent.
func (s *Sender) deliverWithRetry(ctx context.Context, endpoint string, event *domain.Event, body []byte, logger *slog.Logger) (int, error) {
	var lastErr error

	for attempt := 0; attempt < s.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := s.calculateBackoff(attempt)
			logger.Debug("retrying delivery",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := s.buildRequest(ctx, endpoint, event, body)
		if err != nil {
			return 0, err
		}

		resp, err := s.http.Do(req)
		if err != nil {
			lastErr = err
			if isRetryableError(err) {
				logger.Debug("delivery failed with retryable error",
					slog.Int("attempt", attempt+1),
					slog.Any("error", err),
				)
				continue
			}

			return 0, err
		}

		status := resp.StatusCode
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Debug("failed to close response body", slog.Any("error", closeErr))
		}

		switch {
		case status >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("server error: %d", status)
			logger.Debug("delivery failed with server error",
				slog.Int("attempt", attempt+1),
				slog.Int("status", status),
			)
			continue

		case status >= http.StatusBadRequest:
			return status, fmt.Errorf("%w: status %d", ErrEndpointRejected, status)

		default:
			return status, nil
		}
	}

	return 0, lastErr
}

// buildRequest constructs one delivery attempt, propagating the originating
// request's identity and the trace context.
func (s *Sender) buildRequest(ctx context.Context, endpoint string, event *domain.Event, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEventID, event.ID)
	req.Header.Set(headerEventType, event.Type)

	// The delivery runs after the response closed, but the restored request
	// state still identifies the intake request that produced the event.
	if entry, ok := reqstate.Current(ctx); ok {
		if entry.RequestID() != "" {
			req.Header.Set(headerRequestID, entry.RequestID())
		}

		if entry.CorrelationID() != "" {
			req.Header.Set(headerCorrelationID, entry.CorrelationID())
		}
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return req, nil
}

// Name implements ports.HealthChecker.
func (s *Sender) Name() string {
	return "webhook"
}

// Check implements ports.HealthChecker. The sender reports unhealthy while
// the circuit breaker is open.
func (s *Sender) Check(_ context.Context) error {
	if s.breaker.State() == StateOpen {
		return ErrCircuitOpen
	}

	return nil
}

// CircuitState returns the current state of the circuit breaker.
func (s *Sender) CircuitState() State {
	return s.breaker.State()
}

// calculateBackoff returns the backoff duration for the given attempt.
// Uses exponential backoff with jitter.
func (s *Sender) calculateBackoff(attempt int) time.Duration {
	// Exponential: initial * multiplier^attempt
	backoff := float64(s.cfg.Retry.InitialInterval) * math.Pow(s.cfg.Retry.Multiplier, float64(attempt))

	// Cap at max interval
	if backoff > float64(s.cfg.Retry.MaxInterval) {
		backoff = float64(s.cfg.Retry.MaxInterval)
	}

	// Add jitter (±25%)
	jitterMultiplier := rand.Float64()*jitterRangeMultiplier - 1 //nolint:gosec // No need for crypto-grade randomness
	backoff += backoff * backoffJitterFactor * jitterMultiplier

	return time.Duration(backoff)
}

// recordMetrics records delivery metrics.
func (s *Sender) recordMetrics(ctx context.Context, endpoint string, statusCode int, duration time.Duration, result string) {
	attrs := []attribute.KeyValue{
		attribute.String("endpoint", endpoint),
		attribute.String("result", result),
	}

	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	s.deliveryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	s.deliveryTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// isRetryableError determines if an error is retryable.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Network timeout errors are retryable
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection refused, reset, etc. are retryable
	var opErr *net.OpError

	return errors.As(err, &opErr)
}
