package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/postflight/internal/app/reqstate"
	"github.com/jsamuelsen/postflight/internal/domain"
	"github.com/jsamuelsen/postflight/internal/platform/config"
)

func auditEvent() *domain.Event {
	return &domain.Event{
		ID:     "evt-1",
		Type:   "order.created",
		Source: "billing",
	}
}

func TestFileLog_RecordWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer

	log := NewWriterLog(&buf)
	log.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, log.Record(context.Background(), auditEvent(), "accepted"))

	var got entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "accepted", got.Outcome)
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, "order.created", got.EventType)
	assert.Equal(t, "billing", got.Source)
	assert.Empty(t, got.RequestID)
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestFileLog_RecordIncludesRequestIdentity(t *testing.T) {
	var buf bytes.Buffer

	log := NewWriterLog(&buf)

	entry1 := reqstate.NewEntry(reqstate.EntryConfig{
		RequestID:     "req-7",
		CorrelationID: "corr-9",
	})
	ctx := reqstate.With(context.Background(), entry1)

	require.NoError(t, log.Record(ctx, auditEvent(), "accepted"))

	var got entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "req-7", got.RequestID)
	assert.Equal(t, "corr-9", got.CorrelationID)
}

func TestFileLog_MultipleRecordsAreSeparateLines(t *testing.T) {
	var buf bytes.Buffer

	log := NewWriterLog(&buf)

	for range 3 {
		require.NoError(t, log.Record(context.Background(), auditEvent(), "accepted"))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
}

func TestNewFileLog_WritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	log := NewFileLog(config.AuditConfig{
		Path:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	})
	defer log.Close()

	require.NoError(t, log.Record(context.Background(), auditEvent(), "accepted"))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_id":"evt-1"`)
}
