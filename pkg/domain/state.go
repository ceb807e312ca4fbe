package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle status of a run
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusWaiting   JobStatus = "waiting"
	JobStatusStopping  JobStatus = "stopping"
	JobStatusStopped   JobStatus = "stopped"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsActive reports whether a run loop owns the job.
func (s JobStatus) IsActive() bool {
	return s == JobStatusRunning || s == JobStatusWaiting || s == JobStatusStopping
}

// IsTerminal reports whether the job reached an end state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusStopped
}

// JobState is the record of one run. It is also the payload persisted in the
// state store, so every field round-trips through JSON.
type JobState struct {
	RunID                string        `json:"run_id"`
	Status               JobStatus     `json:"status"`
	Items                []ContentItem `json:"items,omitempty"`
	TotalItems           int           `json:"total_items"`
	CurrentIndex         int           `json:"current_index"`
	CurrentAction        string        `json:"current_action"`
	RemainingWaitSeconds int           `json:"remaining_wait_seconds"`
	Config               RunConfig     `json:"config"`
	StartedAt            time.Time     `json:"started_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
	FinishedAt           *time.Time    `json:"finished_at,omitempty"`
	LastError            string        `json:"last_error,omitempty"`
}

// NewIdleState returns the state of a manager that never ran anything.
func NewIdleState() JobState {
	return JobState{Status: JobStatusIdle}
}

// Clone returns a deep copy of the state
func (s JobState) Clone() JobState {
	out := s
	out.Items = CloneItems(s.Items)
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// Remaining returns the items that were not processed yet.
func (s JobState) Remaining() []ContentItem {
	if s.CurrentIndex >= len(s.Items) {
		return nil
	}
	return CloneItems(s.Items[s.CurrentIndex:])
}

// DecodeState decodes a persisted snapshot. Numbers in item extras are kept
// as json.Number, matching what Clone produces.
func DecodeState(data []byte) (*JobState, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var st JobState
	if err := dec.Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}
