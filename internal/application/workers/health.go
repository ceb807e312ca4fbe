package workers

import (
	"sync"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/aescanero/dapub/pkg/ports"
	"go.uber.org/zap"
)

// StateReader exposes the current job state
type StateReader interface {
	GetState() domain.JobState
}

// HealthMonitor monitors the current run and the sink workers
type HealthMonitor struct {
	runs           StateReader
	dispatcher     *Dispatcher
	metrics        ports.MetricsCollector
	interval       time.Duration
	stallThreshold time.Duration
	logger         *zap.Logger
	now            func() time.Time

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	healthy  bool
	onChange []func(healthy bool)
}

// HealthStatus represents the health of the orchestrator
type HealthStatus struct {
	RunID        string                  `json:"run_id,omitempty"`
	RunStatus    domain.JobStatus        `json:"run_status"`
	CurrentIndex int                     `json:"current_index"`
	TotalItems   int                     `json:"total_items"`
	Stalled      bool                    `json:"stalled"`
	SinkWorkers  map[string]WorkerStatus `json:"sink_workers,omitempty"`
	Healthy      bool                    `json:"healthy"`
	Timestamp    time.Time               `json:"timestamp"`
}

// NewHealthMonitor creates a new health monitor. dispatcher may be nil.
// An active run whose state did not change for stallThreshold is reported
// as stalled; zero disables the check.
func NewHealthMonitor(runs StateReader, dispatcher *Dispatcher, metrics ports.MetricsCollector, interval, stallThreshold time.Duration, logger *zap.Logger) *HealthMonitor {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &HealthMonitor{
		runs:           runs,
		dispatcher:     dispatcher,
		metrics:        metrics,
		interval:       interval,
		stallThreshold: stallThreshold,
		logger:         logger,
		now:            time.Now,
		stopCh:         make(chan struct{}),
		healthy:        true,
	}
}

// OnChange registers a callback invoked whenever the health flips
func (h *HealthMonitor) OnChange(fn func(healthy bool)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// Start starts the health monitor
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop stops the health monitor
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.stopCh)
}

// run is the main health monitoring loop
func (h *HealthMonitor) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.CheckHealth()
		}
	}
}

// CheckHealth evaluates health once, logs it and records metrics
func (h *HealthMonitor) CheckHealth() *HealthStatus {
	status := h.GetStatus()

	h.metrics.RecordRunState(string(status.RunStatus), status.CurrentIndex, status.TotalItems)

	if status.RunStatus.IsActive() {
		h.logger.Info("run health check",
			zap.String("run_id", status.RunID),
			zap.String("status", string(status.RunStatus)),
			zap.Int("current_index", status.CurrentIndex),
			zap.Int("total_items", status.TotalItems),
			zap.Bool("healthy", status.Healthy))
	}

	if status.Stalled {
		h.logger.Warn("run made no progress within the stall threshold",
			zap.String("run_id", status.RunID),
			zap.Duration("threshold", h.stallThreshold))
	}

	h.mu.Lock()
	changed := h.healthy != status.Healthy
	h.healthy = status.Healthy
	callbacks := append([]func(bool){}, h.onChange...)
	h.mu.Unlock()

	if changed {
		for _, fn := range callbacks {
			fn(status.Healthy)
		}
	}

	return status
}

// GetStatus returns the current health status
func (h *HealthMonitor) GetStatus() *HealthStatus {
	st := h.runs.GetState()
	now := h.now()

	stalled := h.stallThreshold > 0 &&
		st.Status.IsActive() &&
		!st.UpdatedAt.IsZero() &&
		now.Sub(st.UpdatedAt) > h.stallThreshold

	var sinks map[string]WorkerStatus
	sinksHealthy := true
	if h.dispatcher != nil {
		sinks = h.dispatcher.GetStatus()
		for _, s := range sinks {
			if s == WorkerStatusStopped {
				sinksHealthy = false
			}
		}
	}

	return &HealthStatus{
		RunID:        st.RunID,
		RunStatus:    st.Status,
		CurrentIndex: st.CurrentIndex,
		TotalItems:   st.TotalItems,
		Stalled:      stalled,
		SinkWorkers:  sinks,
		Healthy:      !stalled && sinksHealthy,
		Timestamp:    now,
	}
}

// IsHealthy returns true if the orchestrator is healthy
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
