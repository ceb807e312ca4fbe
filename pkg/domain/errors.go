package domain

import "errors"

// Sentinel errors returned by the orchestrator. Details are wrapped with %w.
var (
	// ErrConfig rejects a Start call with an invalid run configuration or no items
	ErrConfig = errors.New("invalid run configuration")

	// ErrAlreadyRunning rejects a Start call while another run is active
	ErrAlreadyRunning = errors.New("a run is already active")

	// ErrPublish marks a publisher failure that aborted the run
	ErrPublish = errors.New("publish failed")

	// ErrCancellationRequested is the reason recorded when Stop ends a run
	ErrCancellationRequested = errors.New("cancellation requested")
)
