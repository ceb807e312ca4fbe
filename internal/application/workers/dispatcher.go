package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/aescanero/dapub/pkg/ports"
	"go.uber.org/zap"
)

// ErrDispatcherClosed is returned by Notify after Shutdown
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// Dispatcher delivers progress events to registered sinks asynchronously.
// It implements ports.ProgressSink.
type Dispatcher struct {
	queueSize       int
	deliveryTimeout time.Duration
	metrics         ports.MetricsCollector
	logger          *zap.Logger

	mu      sync.RWMutex
	workers []*worker
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// worker delivers the events of one sink in order
type worker struct {
	name  string
	sink  ports.ProgressSink
	queue chan domain.ProgressEvent

	mu        sync.RWMutex
	status    WorkerStatus
	delivered uint64
	failed    uint64
	dropped   uint64
	lastEvent time.Time
}

// WorkerStats is a point-in-time view of one sink worker
type WorkerStats struct {
	Name      string       `json:"name"`
	Status    WorkerStatus `json:"status"`
	Queued    int          `json:"queued"`
	Delivered uint64       `json:"delivered"`
	Failed    uint64       `json:"failed"`
	Dropped   uint64       `json:"dropped"`
	LastEvent time.Time    `json:"last_event"`
}

// NewDispatcher creates a dispatcher with one queue of queueSize per sink
func NewDispatcher(queueSize int, deliveryTimeout time.Duration, metrics ports.MetricsCollector, logger *zap.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Dispatcher{
		queueSize:       queueSize,
		deliveryTimeout: deliveryTimeout,
		metrics:         metrics,
		logger:          logger,
	}
}

// Register adds a sink. It must be called before Start.
func (d *Dispatcher) Register(name string, sink ports.ProgressSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("cannot register sink %s: dispatcher already started", name)
	}
	for _, w := range d.workers {
		if w.name == name {
			return fmt.Errorf("sink %s already registered", name)
		}
	}

	d.workers = append(d.workers, &worker{
		name:   name,
		sink:   sink,
		queue:  make(chan domain.ProgressEvent, d.queueSize),
		status: WorkerStatusIdle,
	})
	return nil
}

// Start starts one worker goroutine per registered sink
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	if d.started {
		return nil
	}
	d.started = true

	d.logger.Info("starting progress dispatcher", zap.Int("sinks", len(d.workers)))

	for _, w := range d.workers {
		d.wg.Add(1)
		go d.run(w)
	}

	return nil
}

// Notify enqueues the event for every sink without blocking
func (d *Dispatcher) Notify(ctx context.Context, event domain.ProgressEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	for _, w := range d.workers {
		select {
		case w.queue <- event:
		default:
			w.mu.Lock()
			w.dropped++
			w.mu.Unlock()
			d.metrics.RecordSinkDropped(w.name)
			d.logger.Warn("sink queue full, dropping event",
				zap.String("sink", w.name),
				zap.String("event_id", event.ID),
				zap.String("kind", string(event.Kind)))
		}
	}

	return nil
}

// Shutdown stops accepting events, drains the queues and waits for workers
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.logger.Info("shutting down progress dispatcher")

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, w := range d.workers {
		close(w.queue)
	}
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("progress dispatcher shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all sink workers
func (d *Dispatcher) GetStatus() map[string]WorkerStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := make(map[string]WorkerStatus, len(d.workers))
	for _, w := range d.workers {
		w.mu.RLock()
		status[w.name] = w.status
		w.mu.RUnlock()
	}
	return status
}

// Stats returns delivery counters for all sink workers
func (d *Dispatcher) Stats() []WorkerStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make([]WorkerStats, 0, len(d.workers))
	for _, w := range d.workers {
		w.mu.RLock()
		stats = append(stats, WorkerStats{
			Name:      w.name,
			Status:    w.status,
			Queued:    len(w.queue),
			Delivered: w.delivered,
			Failed:    w.failed,
			Dropped:   w.dropped,
			LastEvent: w.lastEvent,
		})
		w.mu.RUnlock()
	}
	return stats
}

// run is the main worker loop
func (d *Dispatcher) run(w *worker) {
	defer d.wg.Done()

	d.logger.Debug("sink worker started", zap.String("sink", w.name))

	for event := range w.queue {
		w.setStatus(WorkerStatusBusy)
		err := d.deliver(w, event)

		w.mu.Lock()
		if err != nil {
			w.failed++
		} else {
			w.delivered++
		}
		w.lastEvent = time.Now()
		w.status = WorkerStatusIdle
		w.mu.Unlock()

		if err != nil {
			d.logger.Warn("failed to deliver event to sink",
				zap.String("sink", w.name),
				zap.String("event_id", event.ID),
				zap.String("kind", string(event.Kind)),
				zap.Error(err))
		}
	}

	w.setStatus(WorkerStatusStopped)
	d.logger.Debug("sink worker stopped", zap.String("sink", w.name))
}

// deliver calls the sink, converting a panic into an error
func (d *Dispatcher) deliver(w *worker, event domain.ProgressEvent) (err error) {
	ctx := context.Background()
	if d.deliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.deliveryTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()

	return w.sink.Notify(ctx, event)
}

func (w *worker) setStatus(s WorkerStatus) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}
