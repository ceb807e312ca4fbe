package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/aescanero/dapub/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const interruptedReason = "interrupted: process restarted"

// ErrShutdown is returned by Start once the manager has been shut down
var ErrShutdown = errors.New("orchestrator is shut down")

// Manager coordinates the publication of one run at a time
type Manager struct {
	store     ports.StateStore
	publisher ports.Publisher
	sink      ports.ProgressSink
	metrics   ports.MetricsCollector
	validator *Validator
	interval  *IntervalPolicy
	logger    *zap.Logger

	// Duration of one countdown second
	tick time.Duration
	now  func() time.Time

	// opMu serializes transitions together with their persistence.
	// mu only guards the state field so GetState never waits on I/O;
	// Stop flips the status under mu alone and persists under opMu after.
	opMu  sync.Mutex
	mu    sync.RWMutex
	state domain.JobState

	stopCh chan struct{}
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// Option customizes a Manager
type Option func(*Manager)

// WithTickInterval sets the real duration of one countdown second
func WithTickInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.tick = d
		}
	}
}

// WithIntervalPolicy replaces the default interval policy
func WithIntervalPolicy(p *IntervalPolicy) Option {
	return func(m *Manager) {
		if p != nil {
			m.interval = p
		}
	}
}

// WithClock replaces time.Now for timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a new orchestrator manager. A nil sink or metrics
// collector is replaced by a no-op.
func NewManager(
	store ports.StateStore,
	publisher ports.Publisher,
	sink ports.ProgressSink,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	opts ...Option,
) *Manager {
	if sink == nil {
		sink = ports.ProgressSinkFunc(func(context.Context, domain.ProgressEvent) error { return nil })
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if validator == nil {
		validator = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		store:     store,
		publisher: publisher,
		sink:      sink,
		metrics:   metrics,
		validator: validator,
		interval:  NewIntervalPolicy(),
		logger:    logger,
		tick:      time.Second,
		now:       time.Now,
		state:     domain.NewIdleState(),
		ctx:       ctx,
		cancel:    cancel,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start validates the request, records a new running job and launches the
// run loop. It returns as soon as the job is accepted.
func (m *Manager) Start(ctx context.Context, items []domain.ContentItem, cfg domain.RunConfig) (*domain.JobState, error) {
	if m.ctx.Err() != nil {
		return nil, ErrShutdown
	}

	m.opMu.Lock()

	m.mu.Lock()
	if m.state.Status.IsActive() {
		runID := m.state.RunID
		m.mu.Unlock()
		m.opMu.Unlock()
		m.logger.Warn("run rejected: another run is active", zap.String("run_id", runID))
		return nil, domain.ErrAlreadyRunning
	}

	if err := m.validator.Validate(items, cfg); err != nil {
		m.mu.Unlock()
		m.opMu.Unlock()
		m.logger.Warn("run rejected", zap.Error(err))
		return nil, err
	}

	now := m.now()
	m.state = domain.JobState{
		RunID:         uuid.New().String(),
		Status:        domain.JobStatusRunning,
		Items:         domain.CloneItems(items),
		TotalItems:    len(items),
		CurrentAction: "starting",
		Config:        cfg,
		StartedAt:     now,
		UpdatedAt:     now,
	}
	snapshot := m.state.Clone()
	stopCh := make(chan struct{})
	done := make(chan struct{})
	m.stopCh = stopCh
	m.done = done
	m.mu.Unlock()

	m.persist(ctx, &snapshot)
	m.opMu.Unlock()

	m.metrics.RecordRunStarted(snapshot.TotalItems)
	m.metrics.SetActiveRuns(1)
	m.logger.Info("run started",
		zap.String("run_id", snapshot.RunID),
		zap.Int("total_items", snapshot.TotalItems),
		zap.String("interval_mode", string(cfg.IntervalMode)))

	m.emit(ctx, snapshot.RunID, domain.EventKindStarted, domain.EventData{
		Total: domain.IntPtr(snapshot.TotalItems),
	})

	go m.run(m.ctx, snapshot.RunID, domain.CloneItems(items), cfg, stopCh, done)

	return &snapshot, nil
}

// Stop asks the active run to stop at its next check point. It reports
// whether a run was signalled; with no active run it is a no-op.
// The stopping status is visible to the run loop before it is persisted.
func (m *Manager) Stop(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if !m.state.Status.IsActive() {
		m.mu.Unlock()
		return false, nil
	}
	if m.state.Status == domain.JobStatusStopping {
		m.mu.Unlock()
		return true, nil
	}

	m.state.Status = domain.JobStatusStopping
	m.state.CurrentAction = "stopping"
	m.state.UpdatedAt = m.now()
	runID := m.state.RunID
	index := m.state.CurrentIndex
	stopCh := m.stopCh
	m.mu.Unlock()

	close(stopCh)

	// the loop may already have finalized the run
	m.opMu.Lock()
	m.mu.RLock()
	pending := m.state.RunID == runID && m.state.Status == domain.JobStatusStopping
	snapshot := m.state.Clone()
	m.mu.RUnlock()
	if pending {
		m.persist(ctx, &snapshot)
	}
	m.opMu.Unlock()

	m.logger.Info("stop requested",
		zap.String("run_id", runID),
		zap.Int("current_index", index))

	return true, nil
}

// GetState returns a copy of the current job state
func (m *Manager) GetState() domain.JobState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Recover inspects the snapshot left by a previous process. A snapshot that
// was still active is marked failed as interrupted; it is never resumed.
func (m *Manager) Recover(ctx context.Context) (*domain.JobState, error) {
	stored, err := m.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if stored == nil {
		return nil, nil
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.state.Status.IsActive() {
		m.mu.Unlock()
		return nil, domain.ErrAlreadyRunning
	}

	interrupted := stored.Status.IsActive()
	if interrupted {
		now := m.now()
		stored.Status = domain.JobStatusFailed
		stored.CurrentAction = "interrupted"
		stored.RemainingWaitSeconds = 0
		stored.LastError = interruptedReason
		stored.UpdatedAt = now
		stored.FinishedAt = &now
	}
	m.state = stored.Clone()
	snapshot := m.state.Clone()
	m.mu.Unlock()

	if interrupted {
		m.persist(ctx, &snapshot)
		m.logger.Warn("previous run was interrupted",
			zap.String("run_id", snapshot.RunID),
			zap.Int("current_index", snapshot.CurrentIndex),
			zap.Int("total_items", snapshot.TotalItems),
			zap.Int("unpublished_items", len(snapshot.Remaining())))
	} else {
		m.logger.Info("loaded previous run state",
			zap.String("run_id", snapshot.RunID),
			zap.String("status", string(snapshot.Status)))
	}

	return &snapshot, nil
}

// Wait blocks until the current run loop returns or ctx is done
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.RLock()
	done := m.done
	m.mu.RUnlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels the run loop without finalizing the job, so the last
// persisted snapshot is what the next process recovers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	m.cancel()

	if err := m.Wait(ctx); err != nil {
		return fmt.Errorf("shutdown timeout: %w", err)
	}

	m.logger.Info("orchestrator manager shut down complete")
	return nil
}

// run is the main publishing loop
func (m *Manager) run(ctx context.Context, runID string, items []domain.ContentItem, cfg domain.RunConfig, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	startedAt := time.Now()
	total := len(items)

	for i := 0; i < total; i++ {
		if m.status() == domain.JobStatusStopping {
			m.finishStopped(ctx, runID, startedAt)
			return
		}
		if ctx.Err() != nil {
			m.logInterrupted(runID, i)
			return
		}

		snapshot := m.transition(ctx, func(s *domain.JobState) {
			s.CurrentAction = fmt.Sprintf("publishing item %d of %d", i+1, total)
			s.RemainingWaitSeconds = 0
		})
		// Stop marks the live state before persisting it, so re-read after the write
		if snapshot.Status == domain.JobStatusStopping || m.status() == domain.JobStatusStopping {
			m.finishStopped(ctx, runID, startedAt)
			return
		}

		m.logger.Info("publishing item",
			zap.String("run_id", runID),
			zap.Int("index", i),
			zap.String("title", items[i].Title))

		publishStart := time.Now()
		err := m.publisher.Publish(ctx, items[i])
		publishDuration := time.Since(publishStart)

		if err != nil {
			if ctx.Err() != nil {
				m.logInterrupted(runID, i)
				return
			}
			m.metrics.RecordItemPublished(string(domain.JobStatusFailed), publishDuration)
			m.fail(ctx, runID, i, total, err, startedAt)
			return
		}
		m.metrics.RecordItemPublished(string(domain.JobStatusCompleted), publishDuration)

		snapshot = m.transition(ctx, func(s *domain.JobState) {
			s.CurrentIndex = i + 1
			s.CurrentAction = fmt.Sprintf("published item %d of %d", i+1, total)
		})

		m.logger.Info("item published",
			zap.String("run_id", runID),
			zap.Int("index", i),
			zap.Duration("duration", publishDuration))

		m.emit(ctx, runID, domain.EventKindItemPublished, domain.EventData{
			Index: domain.IntPtr(i),
			Total: domain.IntPtr(total),
		})

		if i == total-1 {
			m.complete(ctx, runID, total, startedAt)
			return
		}

		if snapshot.Status == domain.JobStatusStopping {
			m.finishStopped(ctx, runID, startedAt)
			return
		}

		if !m.countdown(ctx, runID, i, total, cfg, stopCh, startedAt) {
			return
		}
	}
}

// countdown waits between two items one tick at a time. It returns false
// when the run ended during the wait.
func (m *Manager) countdown(ctx context.Context, runID string, index, total int, cfg domain.RunConfig, stopCh <-chan struct{}, startedAt time.Time) bool {
	wait := m.interval.ComputeWait(cfg)
	m.metrics.RecordWait(wait)

	snapshot := m.transition(ctx, func(s *domain.JobState) {
		if s.Status == domain.JobStatusRunning {
			s.Status = domain.JobStatusWaiting
		}
		s.RemainingWaitSeconds = wait
		s.CurrentAction = fmt.Sprintf("waiting %ds before item %d of %d", wait, index+2, total)
	})
	if snapshot.Status == domain.JobStatusStopping {
		m.finishStopped(ctx, runID, startedAt)
		return false
	}

	m.emit(ctx, runID, domain.EventKindWaiting, domain.EventData{
		Index:     domain.IntPtr(index),
		Total:     domain.IntPtr(total),
		TotalWait: domain.IntPtr(wait),
	})

	for remaining := wait; remaining > 0; remaining-- {
		snapshot = m.transition(ctx, func(s *domain.JobState) {
			s.RemainingWaitSeconds = remaining
		})
		if snapshot.Status == domain.JobStatusStopping {
			m.finishStopped(ctx, runID, startedAt)
			return false
		}

		m.emit(ctx, runID, domain.EventKindCountdownTick, domain.EventData{
			Remaining: domain.IntPtr(remaining),
			TotalWait: domain.IntPtr(wait),
		})

		timer := time.NewTimer(m.tick)
		select {
		case <-stopCh:
			timer.Stop()
			m.finishStopped(ctx, runID, startedAt)
			return false
		case <-ctx.Done():
			timer.Stop()
			m.logInterrupted(runID, index+1)
			return false
		case <-timer.C:
		}
	}

	m.transition(ctx, func(s *domain.JobState) {
		s.RemainingWaitSeconds = 0
		if s.Status == domain.JobStatusWaiting {
			s.Status = domain.JobStatusRunning
		}
	})

	return true
}

// complete finalizes a run where every item was published
func (m *Manager) complete(ctx context.Context, runID string, total int, startedAt time.Time) {
	now := m.now()
	m.finalize(ctx, runID, domain.EventKindCompleted, startedAt, true,
		func(s *domain.JobState) {
			s.Status = domain.JobStatusCompleted
			s.CurrentAction = "completed"
			s.RemainingWaitSeconds = 0
			s.FinishedAt = &now
		},
		func(s domain.JobState) domain.EventData {
			return domain.EventData{Total: domain.IntPtr(s.TotalItems)}
		}, nil)

	m.logger.Info("run completed",
		zap.String("run_id", runID),
		zap.Int("total_items", total),
		zap.Duration("duration", time.Since(startedAt)))
}

// finishStopped finalizes a run after a stop request
func (m *Manager) finishStopped(ctx context.Context, runID string, startedAt time.Time) {
	now := m.now()
	snapshot := m.finalize(ctx, runID, domain.EventKindStopped, startedAt, true,
		func(s *domain.JobState) {
			s.Status = domain.JobStatusStopped
			s.CurrentAction = "stopped"
			s.RemainingWaitSeconds = 0
			s.FinishedAt = &now
		},
		func(s domain.JobState) domain.EventData {
			return domain.EventData{
				Index:   domain.IntPtr(s.CurrentIndex),
				Total:   domain.IntPtr(s.TotalItems),
				Message: domain.ErrCancellationRequested.Error(),
			}
		}, nil)

	m.logger.Info("run stopped",
		zap.String("run_id", runID),
		zap.Int("current_index", snapshot.CurrentIndex),
		zap.Int("total_items", snapshot.TotalItems))
}

// fail finalizes a run after a publisher error and releases publisher resources
func (m *Manager) fail(ctx context.Context, runID string, index, total int, cause error, startedAt time.Time) {
	pubErr := fmt.Errorf("%w: item %d: %v", domain.ErrPublish, index, cause)
	now := m.now()

	m.logger.Error("publish failed, aborting run",
		zap.String("run_id", runID),
		zap.Int("index", index),
		zap.Error(cause))

	m.finalize(ctx, runID, domain.EventKindError, startedAt, false,
		func(s *domain.JobState) {
			s.Status = domain.JobStatusFailed
			s.CurrentAction = fmt.Sprintf("failed on item %d of %d", index+1, total)
			s.RemainingWaitSeconds = 0
			s.LastError = pubErr.Error()
			s.FinishedAt = &now
		},
		func(s domain.JobState) domain.EventData {
			return domain.EventData{
				Index:   domain.IntPtr(index),
				Total:   domain.IntPtr(total),
				Message: cause.Error(),
			}
		},
		func() {
			cleaner, ok := m.publisher.(ports.Cleaner)
			if !ok {
				return
			}
			if err := cleaner.Cleanup(ctx); err != nil {
				m.logger.Warn("publisher cleanup failed",
					zap.String("run_id", runID),
					zap.Error(err))
			}
		})
}

// finalize moves the job to a terminal state. The whole sequence holds opMu
// so a new Start cannot interleave with the old run's clear or cleanup.
func (m *Manager) finalize(
	ctx context.Context,
	runID string,
	kind domain.EventKind,
	startedAt time.Time,
	clearSnapshot bool,
	mutate func(*domain.JobState),
	data func(domain.JobState) domain.EventData,
	after func(),
) domain.JobState {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	mutate(&m.state)
	m.state.UpdatedAt = m.now()
	snapshot := m.state.Clone()
	m.mu.Unlock()

	m.persist(ctx, &snapshot)
	m.emit(ctx, runID, kind, data(snapshot))

	if clearSnapshot {
		m.clearStore(ctx, runID)
	}
	if after != nil {
		after()
	}

	m.metrics.RecordRunFinished(string(snapshot.Status), time.Since(startedAt))
	m.metrics.SetActiveRuns(0)

	return snapshot
}

// transition applies mutate to the live state and persists the result.
// A pending stop is never overwritten by mutate callers in the loop; they
// only change the status when it is still running or waiting.
func (m *Manager) transition(ctx context.Context, mutate func(*domain.JobState)) domain.JobState {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	mutate(&m.state)
	m.state.UpdatedAt = m.now()
	snapshot := m.state.Clone()
	m.mu.Unlock()

	m.persist(ctx, &snapshot)
	return snapshot
}

func (m *Manager) status() domain.JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Status
}

// persist writes a snapshot. Store failures are logged; the in-memory state
// stays authoritative for the rest of the run.
func (m *Manager) persist(ctx context.Context, snapshot *domain.JobState) {
	if err := m.store.Set(ctx, snapshot); err != nil {
		m.logger.Error("failed to persist state",
			zap.String("run_id", snapshot.RunID),
			zap.String("status", string(snapshot.Status)),
			zap.Error(err))
	}
}

func (m *Manager) clearStore(ctx context.Context, runID string) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("failed to clear state",
			zap.String("run_id", runID),
			zap.Error(err))
	}
}

// emit delivers an event to the sink. Sink errors and panics never reach the loop.
func (m *Manager) emit(ctx context.Context, runID string, kind domain.EventKind, data domain.EventData) {
	event := domain.ProgressEvent{
		ID:        uuid.New().String(),
		Kind:      kind,
		RunID:     runID,
		Data:      data,
		Timestamp: m.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("progress sink panicked",
				zap.String("run_id", runID),
				zap.String("kind", string(kind)),
				zap.Any("panic", r))
		}
	}()

	if err := m.sink.Notify(ctx, event); err != nil {
		m.logger.Warn("failed to deliver progress event",
			zap.String("run_id", runID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

func (m *Manager) logInterrupted(runID string, index int) {
	m.logger.Warn("run interrupted by shutdown",
		zap.String("run_id", runID),
		zap.Int("index", index))
}
