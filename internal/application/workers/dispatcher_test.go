package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/aescanero/dapub/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// collectingSink records the kinds it receives
type collectingSink struct {
	mu    sync.Mutex
	kinds []domain.EventKind
}

func (s *collectingSink) Notify(_ context.Context, event domain.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, event.Kind)
	return nil
}

func (s *collectingSink) Kinds() []domain.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EventKind(nil), s.kinds...)
}

// droppedMetrics counts dropped events per sink
type droppedMetrics struct {
	ports.NopMetrics

	mu      sync.Mutex
	dropped map[string]int
	states  []string
}

func newDroppedMetrics() *droppedMetrics {
	return &droppedMetrics{dropped: make(map[string]int)}
}

func (m *droppedMetrics) RecordSinkDropped(sink string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[sink]++
}

func (m *droppedMetrics) RecordRunState(status string, _, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, status)
}

func (m *droppedMetrics) Dropped(sink string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[sink]
}

func (m *droppedMetrics) States() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.states...)
}

func event(kind domain.EventKind) domain.ProgressEvent {
	return domain.ProgressEvent{ID: string(kind), RunID: "run-1", Kind: kind}
}

func statsByName(d *Dispatcher) map[string]WorkerStats {
	out := make(map[string]WorkerStats)
	for _, s := range d.Stats() {
		out[s.Name] = s
	}
	return out
}

func TestDispatcher_Register(t *testing.T) {
	d := NewDispatcher(4, 0, nil, zap.NewNop())

	require.NoError(t, d.Register("a", &collectingSink{}))
	assert.Error(t, d.Register("a", &collectingSink{}), "duplicate name")

	require.NoError(t, d.Start())
	assert.Error(t, d.Register("b", &collectingSink{}), "register after start")
	assert.NoError(t, d.Start(), "start is idempotent")

	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_FanOutInOrder(t *testing.T) {
	d := NewDispatcher(16, time.Second, nil, zap.NewNop())
	a, b := &collectingSink{}, &collectingSink{}
	require.NoError(t, d.Register("a", a))
	require.NoError(t, d.Register("b", b))
	require.NoError(t, d.Start())

	kinds := []domain.EventKind{
		domain.EventKindStarted,
		domain.EventKindWaiting,
		domain.EventKindItemPublished,
		domain.EventKindCompleted,
	}
	for _, k := range kinds {
		require.NoError(t, d.Notify(context.Background(), event(k)))
	}

	require.NoError(t, d.Shutdown(context.Background()))

	assert.Equal(t, kinds, a.Kinds())
	assert.Equal(t, kinds, b.Kinds())

	stats := statsByName(d)
	assert.Equal(t, uint64(4), stats["a"].Delivered)
	assert.Equal(t, uint64(4), stats["b"].Delivered)
	assert.Equal(t, WorkerStatusStopped, stats["a"].Status)
	assert.False(t, stats["a"].LastEvent.IsZero())
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	metrics := newDroppedMetrics()
	d := NewDispatcher(1, 0, metrics, zap.NewNop())
	sink := &collectingSink{}
	require.NoError(t, d.Register("slow", sink))

	// not started, so nothing drains the queue
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Notify(context.Background(), event(domain.EventKindCountdownTick)))
	}

	stats := statsByName(d)
	assert.Equal(t, 1, stats["slow"].Queued)
	assert.Equal(t, uint64(2), stats["slow"].Dropped)
	assert.Equal(t, 2, metrics.Dropped("slow"))

	require.NoError(t, d.Start())
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Len(t, sink.Kinds(), 1)
}

func TestDispatcher_SlowSinkDoesNotBlockOthers(t *testing.T) {
	d := NewDispatcher(8, 0, nil, zap.NewNop())
	release := make(chan struct{})
	slow := ports.ProgressSinkFunc(func(ctx context.Context, _ domain.ProgressEvent) error {
		<-release
		return nil
	})
	fast := &collectingSink{}
	require.NoError(t, d.Register("slow", slow))
	require.NoError(t, d.Register("fast", fast))
	require.NoError(t, d.Start())

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Notify(context.Background(), event(domain.EventKindWaiting)))
	}

	assert.Eventually(t, func() bool {
		return len(fast.Kinds()) == 3
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return d.GetStatus()["slow"] == WorkerStatusBusy
	}, time.Second, 10*time.Millisecond)

	close(release)
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, uint64(3), statsByName(d)["slow"].Delivered)
}

func TestDispatcher_FailuresAndPanics(t *testing.T) {
	d := NewDispatcher(8, 0, nil, zap.NewNop())
	failing := ports.ProgressSinkFunc(func(context.Context, domain.ProgressEvent) error {
		return errors.New("sink offline")
	})
	panicking := ports.ProgressSinkFunc(func(context.Context, domain.ProgressEvent) error {
		panic("boom")
	})
	healthy := &collectingSink{}
	require.NoError(t, d.Register("failing", failing))
	require.NoError(t, d.Register("panicking", panicking))
	require.NoError(t, d.Register("healthy", healthy))
	require.NoError(t, d.Start())

	require.NoError(t, d.Notify(context.Background(), event(domain.EventKindStarted)))
	require.NoError(t, d.Notify(context.Background(), event(domain.EventKindCompleted)))
	require.NoError(t, d.Shutdown(context.Background()))

	stats := statsByName(d)
	assert.Equal(t, uint64(2), stats["failing"].Failed)
	assert.Equal(t, uint64(2), stats["panicking"].Failed)
	assert.Equal(t, uint64(0), stats["panicking"].Delivered)
	assert.Equal(t, uint64(2), stats["healthy"].Delivered)
}

func TestDispatcher_DeliveryTimeout(t *testing.T) {
	d := NewDispatcher(2, 20*time.Millisecond, nil, zap.NewNop())
	waiting := ports.ProgressSinkFunc(func(ctx context.Context, _ domain.ProgressEvent) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, d.Register("waiting", waiting))
	require.NoError(t, d.Start())

	require.NoError(t, d.Notify(context.Background(), event(domain.EventKindWaiting)))
	require.NoError(t, d.Shutdown(context.Background()))

	assert.Equal(t, uint64(1), statsByName(d)["waiting"].Failed)
}

func TestDispatcher_NotifyAfterShutdown(t *testing.T) {
	d := NewDispatcher(2, 0, nil, zap.NewNop())
	require.NoError(t, d.Register("a", &collectingSink{}))
	require.NoError(t, d.Start())
	require.NoError(t, d.Shutdown(context.Background()))

	err := d.Notify(context.Background(), event(domain.EventKindStarted))
	assert.ErrorIs(t, err, ErrDispatcherClosed)
	assert.ErrorIs(t, d.Start(), ErrDispatcherClosed)
	assert.NoError(t, d.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestDispatcher_ShutdownTimeout(t *testing.T) {
	d := NewDispatcher(2, 0, nil, zap.NewNop())
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, d.Register("stuck", ports.ProgressSinkFunc(func(context.Context, domain.ProgressEvent) error {
		<-release
		return nil
	})))
	require.NoError(t, d.Start())
	require.NoError(t, d.Notify(context.Background(), event(domain.EventKindStarted)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.Error(t, d.Shutdown(ctx))
}
