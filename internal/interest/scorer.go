// Package interest implements the InterestScorer component: scoring
// how worth-replying-to a message is, and deciding whether the
// effective reply threshold is cleared.
package interest

// Weights are the four scoring-term weights. internal/system supplies
// fixed values (0.4/0.3/0.2/0.1); the interest weight fields of
// internal/config.Config are not read.
type Weights struct {
	KeywordSemantic float64
	MentionBonus    float64
	Relationship    float64
	Recency         float64
}

// Inputs are the per-message signals Score blends, each pre-normalized
// to [0,1] by the caller.
type Inputs struct {
	KeywordSemanticMatch float64
	IsMention            bool
	RelationshipCloseness float64
	Recency              float64
}

// Score returns the clamped [0,1] interest score for a message.
func Score(w Weights, in Inputs) float64 {
	mention := 0.0
	if in.IsMention {
		mention = 1.0
	}
	s := w.KeywordSemantic*in.KeywordSemanticMatch +
		w.MentionBonus*mention +
		w.Relationship*in.RelationshipCloseness +
		w.Recency*in.Recency
	return clamp01(s)
}

// ThresholdParams configures EffectiveReplyThreshold.
type ThresholdParams struct {
	ReplyThreshold          float64
	AFCThresholdAdjustment  float64
	ConsecutiveNoReplyCount int
	MaxNoReplyCount         int
	// ForceStep is the per-miss ramp applied by the forcing curve
	// (Open Question #2 resolution: a linear ramp capped at
	// MaxNoReplyCount misses).
	ForceStep float64
}

// EffectiveReplyThreshold computes the threshold a score must clear to
// trigger a reply: the configured ReplyThreshold, reduced by the
// stream's accumulated AFC adjustment and by a forcing term that grows
// with consecutive non-replies, so a stream that has stayed silent for
// a while becomes progressively easier to trigger.
func EffectiveReplyThreshold(p ThresholdParams) float64 {
	force := forceAdjustment(p)
	t := p.ReplyThreshold - p.AFCThresholdAdjustment - force
	return clamp01(t)
}

func forceAdjustment(p ThresholdParams) float64 {
	n := p.ConsecutiveNoReplyCount
	if n > p.MaxNoReplyCount {
		n = p.MaxNoReplyCount
	}
	if n < 0 {
		n = 0
	}
	return float64(n) * p.ForceStep
}

// ShouldReply reports whether score clears the effective threshold.
func ShouldReply(score float64, p ThresholdParams) bool {
	return score >= EffectiveReplyThreshold(p)
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
