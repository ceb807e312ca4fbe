package events

import (
	"context"
	"testing"

	"github.com/aescanero/dapub/pkg/adapters/events/memory"
	"github.com/aescanero/dapub/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusSink_PublishesToTopic(t *testing.T) {
	bus := memory.NewEventBus()
	ctx := context.Background()

	var defaultTopic, custom []domain.EventKind
	require.NoError(t, bus.Subscribe(ctx, DefaultTopic, func(_ context.Context, e domain.ProgressEvent) error {
		defaultTopic = append(defaultTopic, e.Kind)
		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx, "custom", func(_ context.Context, e domain.ProgressEvent) error {
		custom = append(custom, e.Kind)
		return nil
	}))

	require.NoError(t, NewBusSink(bus, "").Notify(ctx, domain.ProgressEvent{Kind: domain.EventKindStarted}))
	require.NoError(t, NewBusSink(bus, "custom").Notify(ctx, domain.ProgressEvent{Kind: domain.EventKindCompleted}))

	assert.Equal(t, []domain.EventKind{domain.EventKindStarted}, defaultTopic)
	assert.Equal(t, []domain.EventKind{domain.EventKindCompleted}, custom)
}
