package events

import (
	"context"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/aescanero/dapub/pkg/ports"
)

// DefaultTopic is the topic progress events are published to
const DefaultTopic = "run.events"

// BusSink publishes progress events to one topic of an event bus
type BusSink struct {
	bus   ports.EventBus
	topic string
}

// NewBusSink creates a sink for topic. An empty topic uses DefaultTopic.
func NewBusSink(bus ports.EventBus, topic string) *BusSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &BusSink{bus: bus, topic: topic}
}

// Notify publishes the event
func (s *BusSink) Notify(ctx context.Context, event domain.ProgressEvent) error {
	return s.bus.Publish(ctx, s.topic, event)
}
