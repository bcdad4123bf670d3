package memory

import (
	"context"
	"time"

	"mindloop/internal/chatmodel"
	"mindloop/internal/clock"
)

// ForgetConfig tunes MemoryForgetter's retention computation.
type ForgetConfig struct {
	BaseRetentionDays int
	ImportanceBonusDays float64 // added per importance level above 1
	ConfidenceBonusDays float64 // added per confidence level above 1
	AccessBonusDays     float64 // added per access beyond the first, capped
	AccessBonusCap      float64
	RetentionHours    int // hard cutoff below which nothing is ever forgotten
}

// Forgetter is the MemoryForgetter component: a periodic sweep that
// deletes memories whose computed retention window has elapsed.
type Forgetter struct {
	cfg   ForgetConfig
	store *Store
	clk   clock.Source
}

func NewForgetter(cfg ForgetConfig, store *Store, clk clock.Source) *Forgetter {
	return &Forgetter{cfg: cfg, store: store, clk: clk}
}

// RetentionWindow computes how long a given memory should be kept.
func (f *Forgetter) RetentionWindow(m chatmodel.MemoryChunk) time.Duration {
	days := float64(f.cfg.BaseRetentionDays)
	days += float64(m.Importance-1) * f.cfg.ImportanceBonusDays
	days += float64(m.Confidence-1) * f.cfg.ConfidenceBonusDays

	accessBonus := float64(m.AccessCount-1) * f.cfg.AccessBonusDays
	if accessBonus < 0 {
		accessBonus = 0
	}
	if accessBonus > f.cfg.AccessBonusCap {
		accessBonus = f.cfg.AccessBonusCap
	}
	days += accessBonus

	window := time.Duration(days * 24 * float64(time.Hour))
	hardCutoff := time.Duration(f.cfg.RetentionHours) * time.Hour
	if window < hardCutoff {
		window = hardCutoff
	}
	return window
}

// Sweep scans every memory in scope (via a metadata filter, typically
// by user_id) and deletes any whose retention window has elapsed since
// LastModified.
func (f *Forgetter) Sweep(ctx context.Context, scopeFilter map[string]any) (deleted int, err error) {
	chunks, err := f.store.GetByFilter(ctx, scopeFilter, 0)
	if err != nil {
		return 0, err
	}
	now := f.clk.Now()
	for _, m := range chunks {
		window := f.RetentionWindow(m)
		if now.Sub(m.LastModified) <= window {
			continue
		}
		if err := f.store.Delete(ctx, m.MemoryID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
