package orchestrator

import (
	"math/rand/v2"

	"github.com/aescanero/dapub/pkg/domain"
)

// IntervalPolicy computes the number of seconds to wait between two items.
// It is not safe for concurrent use with a seeded source; the run loop is its
// only caller.
type IntervalPolicy struct {
	intN func(n int) int
}

// NewIntervalPolicy returns a policy backed by the global random source
func NewIntervalPolicy() *IntervalPolicy {
	return &IntervalPolicy{intN: rand.IntN}
}

// NewSeededIntervalPolicy returns a deterministic policy
func NewSeededIntervalPolicy(seed uint64) *IntervalPolicy {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &IntervalPolicy{intN: r.IntN}
}

// ComputeWait returns FixedSeconds in fixed mode and a uniform integer in
// [MinSeconds, MaxSeconds] in random mode. cfg must already be validated.
func (p *IntervalPolicy) ComputeWait(cfg domain.RunConfig) int {
	if cfg.IntervalMode == domain.IntervalModeRandom {
		span := cfg.MaxSeconds - cfg.MinSeconds + 1
		return cfg.MinSeconds + p.intN(span)
	}
	return cfg.FixedSeconds
}
