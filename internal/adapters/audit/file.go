// Package audit records intake activity to a rolling file.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/jsamuelsen/postflight/internal/app/reqstate"
	"github.com/jsamuelsen/postflight/internal/domain"
	"github.com/jsamuelsen/postflight/internal/platform/config"
)

// entry is one audit record, serialized as a JSON line.
type entry struct {
	Time          time.Time `json:"time"`
	Outcome       string    `json:"outcome"`
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	Source        string    `json:"source"`
	RequestID     string    `json:"request_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// FileLog is a ports.AuditLog that appends JSON lines to a size-rotated file.
// Records are written by deferred callbacks, so writes happen after the
// originating response has closed; the restored request state still supplies
// the request identifiers.
type FileLog struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
	now func() time.Time
}

// NewFileLog creates an audit log backed by a rotating file.
func NewFileLog(cfg config.AuditConfig) *FileLog {
	roller := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	return &FileLog{w: roller, c: roller, now: time.Now}
}

// NewWriterLog creates an audit log writing to an arbitrary writer.
func NewWriterLog(w io.Writer) *FileLog {
	return &FileLog{w: w, now: time.Now}
}

// Record appends an audit entry for the event.
func (f *FileLog) Record(ctx context.Context, event *domain.Event, outcome string) error {
	e := entry{
		Time:      f.now(),
		Outcome:   outcome,
		EventID:   event.ID,
		EventType: event.Type,
		Source:    event.Source,
	}

	if state, ok := reqstate.Current(ctx); ok {
		e.RequestID = state.RequestID()
		e.CorrelationID = state.CorrelationID()
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}

	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.w.Write(line); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying file.
func (f *FileLog) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.c == nil {
		return nil
	}

	return f.c.Close()
}
