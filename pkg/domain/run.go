package domain

// IntervalMode selects how the wait between two items is computed
type IntervalMode string

const (
	IntervalModeFixed  IntervalMode = "fixed"
	IntervalModeRandom IntervalMode = "random"
)

// RunConfig controls the pacing of a run.
// MinSeconds and MaxSeconds are only read in random mode.
type RunConfig struct {
	IntervalMode IntervalMode `json:"interval_mode" yaml:"interval_mode"`
	FixedSeconds int          `json:"fixed_seconds,omitempty" yaml:"fixed_seconds,omitempty"`
	MinSeconds   int          `json:"min_seconds,omitempty" yaml:"min_seconds,omitempty"`
	MaxSeconds   int          `json:"max_seconds,omitempty" yaml:"max_seconds,omitempty"`
}
