package streamctx

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShouldInterrupt_WithinBudget_FollowsBaseProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := &StreamContextView{InterruptionCount: 0, MaxInterruptions: 3}
	p := InterruptionParams{BaseProbability: 1.0}
	require.True(t, ShouldInterrupt(ctx, p, rng))
}

func TestShouldInterrupt_ZeroBaseProbability_NeverInterrupts(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := &StreamContextView{InterruptionCount: 0, MaxInterruptions: 3}
	p := InterruptionParams{BaseProbability: 0}
	for i := 0; i < 50; i++ {
		require.False(t, ShouldInterrupt(ctx, p, rng))
	}
}

func TestShouldInterrupt_OverBudget_DecaysWithRatio(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := InterruptionParams{BaseProbability: 0.8, ProbFactor: 0}

	atBudget := &StreamContextView{InterruptionCount: 5, MaxInterruptions: 5}
	wayOverBudget := &StreamContextView{InterruptionCount: 50, MaxInterruptions: 5}

	hitsAtBudget := 0
	hitsOverBudget := 0
	for i := 0; i < 500; i++ {
		if ShouldInterrupt(atBudget, p, rng) {
			hitsAtBudget++
		}
		if ShouldInterrupt(wayOverBudget, p, rng) {
			hitsOverBudget++
		}
	}
	require.Greater(t, hitsAtBudget, hitsOverBudget)
}

func TestShouldInterrupt_NilRNG_DoesNotPanic(t *testing.T) {
	ctx := &StreamContextView{InterruptionCount: 0, MaxInterruptions: 3}
	require.NotPanics(t, func() {
		ShouldInterrupt(ctx, InterruptionParams{BaseProbability: 0.5}, nil)
	})
}
