package manager

import (
	"math"
	"math/rand"
	"time"
)

// IntervalConfig carries the distribution-interval formula's tunables
// (base/min/max/jitter plus the three interest thresholds that pick a
// branch).
type IntervalConfig struct {
	Base      time.Duration
	MinInterval time.Duration
	MaxInterval time.Duration
	Jitter    float64 // 0..1

	ReplyThreshold    float64 // T_reply
	NonReplyThreshold float64 // T_non_reply
	HighThreshold     float64 // T_high
}

// DistributionInterval implements the four-branch multiplier table
// plus the energy adjustment and jitter, clamped to [MinInterval,
// MaxInterval].
func DistributionInterval(cfg IntervalConfig, energy, avgInterest float64, rng *rand.Rand) time.Duration {
	mult := intervalMultiplier(cfg, avgInterest, energy)
	energyAdj := 1 + (energy-0.5)*0.5

	jitterFactor := 1.0
	if cfg.Jitter > 0 {
		jitterFactor = 1 - cfg.Jitter + rng.Float64()*2*cfg.Jitter
	}

	interval := time.Duration(float64(cfg.Base) * mult * energyAdj * jitterFactor)
	if cfg.MinInterval > 0 && interval < cfg.MinInterval {
		interval = cfg.MinInterval
	}
	if cfg.MaxInterval > 0 && interval > cfg.MaxInterval {
		interval = cfg.MaxInterval
	}
	return interval
}

func intervalMultiplier(cfg IntervalConfig, i, energy float64) float64 {
	switch {
	case i >= cfg.HighThreshold:
		m := 0.3 + (energy-0.7)*2.0
		return math.Max(0, m)
	case i >= cfg.ReplyThreshold:
		span := cfg.HighThreshold - cfg.ReplyThreshold
		if span <= 0 {
			return 0.6
		}
		return 0.6 + 0.4*(i-cfg.ReplyThreshold)/span
	case i >= cfg.NonReplyThreshold:
		span := cfg.ReplyThreshold - cfg.NonReplyThreshold
		if span <= 0 {
			return 1.2
		}
		return 1.2 + 1.8*(i-cfg.NonReplyThreshold)/span
	default:
		if cfg.NonReplyThreshold <= 0 {
			return 6.0
		}
		return 3.0 + 3.0*(1-i/cfg.NonReplyThreshold)
	}
}
