package orchestrator

import (
	"testing"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestComputeWait_Fixed(t *testing.T) {
	p := NewIntervalPolicy()
	for _, seconds := range []int{1, 2, 30, 3600} {
		cfg := domain.RunConfig{IntervalMode: domain.IntervalModeFixed, FixedSeconds: seconds}
		for i := 0; i < 100; i++ {
			assert.Equal(t, seconds, p.ComputeWait(cfg))
		}
	}
}

func TestComputeWait_RandomStaysInRange(t *testing.T) {
	p := NewIntervalPolicy()
	ranges := [][2]int{{1, 1}, {1, 2}, {5, 10}, {60, 300}}

	for _, r := range ranges {
		cfg := domain.RunConfig{IntervalMode: domain.IntervalModeRandom, MinSeconds: r[0], MaxSeconds: r[1]}
		for i := 0; i < 1000; i++ {
			w := p.ComputeWait(cfg)
			assert.GreaterOrEqual(t, w, r[0])
			assert.LessOrEqual(t, w, r[1])
		}
	}
}

func TestComputeWait_RandomIsRoughlyUniform(t *testing.T) {
	p := NewSeededIntervalPolicy(42)
	cfg := domain.RunConfig{IntervalMode: domain.IntervalModeRandom, MinSeconds: 1, MaxSeconds: 5}

	const trials = 50000
	counts := map[int]int{}
	for i := 0; i < trials; i++ {
		counts[p.ComputeWait(cfg)]++
	}

	assert.Len(t, counts, 5, "both bounds are reachable")
	expected := float64(trials) / 5
	for v := 1; v <= 5; v++ {
		assert.InDelta(t, expected, float64(counts[v]), expected*0.05, "value %d", v)
	}
}

func TestSeededPolicyIsDeterministic(t *testing.T) {
	a := NewSeededIntervalPolicy(7)
	b := NewSeededIntervalPolicy(7)
	cfg := domain.RunConfig{IntervalMode: domain.IntervalModeRandom, MinSeconds: 10, MaxSeconds: 1000}

	for i := 0; i < 50; i++ {
		assert.Equal(t, a.ComputeWait(cfg), b.ComputeWait(cfg))
	}
}
