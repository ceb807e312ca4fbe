package ports

import (
	"context"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
)

// StateStore persists the snapshot of the current run.
// Get returns (nil, nil) when nothing is stored.
type StateStore interface {
	Get(ctx context.Context) (*domain.JobState, error)
	Set(ctx context.Context, state *domain.JobState) error
	Clear(ctx context.Context) error
}

// Publisher performs the actual publish of one item. It may block for a long
// time; any error aborts the run.
type Publisher interface {
	Publish(ctx context.Context, item domain.ContentItem) error
}

// Cleaner is implemented by publishers that hold transient resources which
// must be released after a failed publish.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// ProgressSink receives progress events. Delivery is best effort.
type ProgressSink interface {
	Notify(ctx context.Context, event domain.ProgressEvent) error
}

// ProgressSinkFunc adapts a function to ProgressSink
type ProgressSinkFunc func(ctx context.Context, event domain.ProgressEvent) error

// Notify calls f
func (f ProgressSinkFunc) Notify(ctx context.Context, event domain.ProgressEvent) error {
	return f(ctx, event)
}

// EventHandler handles an event received from an EventBus
type EventHandler func(ctx context.Context, event domain.ProgressEvent) error

// EventBus is a topic based pub/sub transport for progress events
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.ProgressEvent) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// MetricsCollector records orchestrator metrics
type MetricsCollector interface {
	RecordRunStarted(totalItems int)
	RecordRunFinished(status string, duration time.Duration)
	RecordItemPublished(status string, duration time.Duration)
	RecordWait(seconds int)
	SetActiveRuns(count int)
	RecordSinkDropped(sink string)
	RecordRunState(status string, currentIndex, totalItems int)
}

// NopMetrics discards all metrics
type NopMetrics struct{}

func (NopMetrics) RecordRunStarted(int)                      {}
func (NopMetrics) RecordRunFinished(string, time.Duration)   {}
func (NopMetrics) RecordItemPublished(string, time.Duration) {}
func (NopMetrics) RecordWait(int)                            {}
func (NopMetrics) SetActiveRuns(int)                         {}
func (NopMetrics) RecordSinkDropped(string)                  {}
func (NopMetrics) RecordRunState(string, int, int)           {}
