package after

import (
	"context"
	"log/slog"

	"github.com/jsamuelsen/postflight/internal/app/reqstate"
)

// Sink receives failures from deferred work. By the time these failures
// occur, the response has been sent; the sink is the only place they remain
// observable.
type Sink interface {
	ReportTaskError(ctx context.Context, msg string, err error)
}

// logSink reports failures through slog.
type logSink struct {
	logger *slog.Logger
}

// NewLogSink returns a Sink writing to the given logger, or slog.Default()
// when logger is nil.
func NewLogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}

	return &logSink{logger: logger}
}

func (s *logSink) ReportTaskError(ctx context.Context, msg string, err error) {
	attrs := []slog.Attr{
		slog.Any("error", err),
		slog.String("phase", reqstate.CurrentPhase(ctx).String()),
	}

	if entry, ok := reqstate.Current(ctx); ok {
		attrs = append(attrs,
			slog.String("request_id", entry.RequestID()),
			slog.String("route", entry.Route()),
		)
	}

	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}
