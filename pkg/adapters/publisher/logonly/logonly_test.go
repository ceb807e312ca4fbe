package logonly

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublisher_LogsItem(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := New(0, zap.New(core))

	err := p.Publish(context.Background(), domain.ContentItem{
		ID:    "item-1",
		Title: "Hello",
		Tags:  []string{"go"},
	})

	assert.NoError(t, err)
	entries := logs.FilterMessage("dry run publish").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "item-1", fields["item_id"])
		assert.Equal(t, "Hello", fields["title"])
	}
}

func TestPublisher_WaitsForDelay(t *testing.T) {
	p := New(30*time.Millisecond, zap.NewNop())

	start := time.Now()
	assert.NoError(t, p.Publish(context.Background(), domain.ContentItem{Title: "t"}))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestPublisher_CancelledDuringDelay(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := New(time.Minute, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, domain.ContentItem{Title: "t"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, logs.Len())
}
