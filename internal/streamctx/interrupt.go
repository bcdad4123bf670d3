package streamctx

import (
	"math"
	"math/rand"
)

// InterruptionParams configures ShouldInterrupt.
type InterruptionParams struct {
	// ProbFactor shifts the decay exponent once a stream has already
	// used up some of its interruption budget.
	ProbFactor float64
	// BaseProbability is the flat Bernoulli probability used while the
	// stream is still within budget. No default is applied here; the
	// value is used as given (internal/system wires in 0.8).
	BaseProbability float64
}

// ShouldInterrupt decides, for a stream currently mid-dispatch with a
// newly arrived message, whether to interrupt the in-flight worker.
// While InterruptionCount is below MaxInterruptions the decision is a
// flat Bernoulli(BaseProbability) draw; once the budget is exhausted
// the probability decays geometrically with how far over budget the
// stream is, so a stream that interrupts constantly becomes
// progressively harder to interrupt further.
func ShouldInterrupt(ctx *StreamContextView, p InterruptionParams, rng *rand.Rand) bool {
	var prob float64
	if ctx.InterruptionCount < ctx.MaxInterruptions {
		prob = p.BaseProbability
	} else {
		ratio := float64(ctx.InterruptionCount) / float64(max1(ctx.MaxInterruptions))
		prob = math.Pow(0.5, ratio-p.ProbFactor)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return rng.Float64() < clamp01(prob)
}

// StreamContextView is the minimal read-only view ShouldInterrupt
// needs, decoupling the decision function from the full
// chatmodel.StreamContext type so it's trivially unit-testable.
type StreamContextView struct {
	InterruptionCount int
	MaxInterruptions  int
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
