package domain

import "time"

// EventKind identifies a progress event
type EventKind string

const (
	EventKindStarted       EventKind = "started"
	EventKindItemPublished EventKind = "item_published"
	EventKindWaiting       EventKind = "waiting"
	EventKindCountdownTick EventKind = "countdown_tick"
	EventKindError         EventKind = "error"
	EventKindCompleted     EventKind = "completed"
	EventKindStopped       EventKind = "stopped"
)

// EventData carries the optional payload of a progress event. Pointer fields
// distinguish "zero" from "absent" so index 0 survives serialization.
type EventData struct {
	Index     *int   `json:"index,omitempty"`
	Total     *int   `json:"total,omitempty"`
	Message   string `json:"message,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
	TotalWait *int   `json:"total_wait,omitempty"`
}

// ProgressEvent is emitted by the orchestrator on every lifecycle step
type ProgressEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	RunID     string    `json:"run_id"`
	Data      EventData `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// IntPtr is a small helper for building EventData literals.
func IntPtr(v int) *int {
	return &v
}
