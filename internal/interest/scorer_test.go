package interest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	w := Weights{KeywordSemantic: 0.4, MentionBonus: 0.3, Relationship: 0.2, Recency: 0.1}
	cases := []struct {
		name string
		in   Inputs
		want float64
	}{
		{"all zero", Inputs{}, 0},
		{"mention only", Inputs{IsMention: true}, 0.3},
		{"keyword only", Inputs{KeywordSemanticMatch: 1}, 0.4},
		{"everything", Inputs{KeywordSemanticMatch: 1, IsMention: true, RelationshipCloseness: 1, Recency: 1}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.InDelta(t, c.want, Score(w, c.in), 1e-9)
		})
	}
}

func TestEffectiveReplyThreshold_ForcesDownWithConsecutiveMisses(t *testing.T) {
	base := ThresholdParams{ReplyThreshold: 0.6, MaxNoReplyCount: 5, ForceStep: 0.05}

	t0 := EffectiveReplyThreshold(base)
	require.InDelta(t, 0.6, t0, 1e-9)

	withMisses := base
	withMisses.ConsecutiveNoReplyCount = 3
	t3 := EffectiveReplyThreshold(withMisses)
	require.InDelta(t, 0.45, t3, 1e-9)
	require.Less(t, t3, t0)
}

func TestEffectiveReplyThreshold_CapsAtMaxNoReplyCount(t *testing.T) {
	p := ThresholdParams{ReplyThreshold: 0.6, ConsecutiveNoReplyCount: 100, MaxNoReplyCount: 5, ForceStep: 0.05}
	atCap := EffectiveReplyThreshold(p)

	p.ConsecutiveNoReplyCount = 5
	atExactCap := EffectiveReplyThreshold(p)
	require.InDelta(t, atExactCap, atCap, 1e-9)
}

func TestEffectiveReplyThreshold_ClampsAtZero(t *testing.T) {
	p := ThresholdParams{ReplyThreshold: 0.1, AFCThresholdAdjustment: 0.5, ConsecutiveNoReplyCount: 10, MaxNoReplyCount: 10, ForceStep: 0.5}
	require.Equal(t, 0.0, EffectiveReplyThreshold(p))
}

func TestShouldReply(t *testing.T) {
	p := ThresholdParams{ReplyThreshold: 0.5}
	require.True(t, ShouldReply(0.5, p))
	require.False(t, ShouldReply(0.49, p))
}
