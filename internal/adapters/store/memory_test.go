package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/postflight/internal/domain"
)

func TestMemory_SaveAndGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	event := &domain.Event{ID: "evt-1", Type: "order.created", Source: "billing"}
	require.NoError(t, m.Save(ctx, event))

	got, err := m.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, event, got)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_SaveDuplicateConflicts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, &domain.Event{ID: "evt-1"}))

	err := m.Save(ctx, &domain.Event{ID: "evt-1"})

	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
}

func TestMemory_GetMissingNotFound(t *testing.T) {
	m := NewMemory()

	_, err := m.GetByID(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestMemory_ListInsertionOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, m.Save(ctx, &domain.Event{ID: fmt.Sprintf("evt-%d", i)}))
	}

	events, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 5)

	for i, event := range events {
		assert.Equal(t, fmt.Sprintf("evt-%d", i), event.ID)
	}
}

func TestMemory_ConcurrentSaves(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			_ = m.Save(ctx, &domain.Event{ID: fmt.Sprintf("evt-%d", i)})
		})
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
}
