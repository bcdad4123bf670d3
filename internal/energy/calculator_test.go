package energy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	w := Weights{Activity: 0.4, AvgInterest: 0.3, Recency: 0.2, Relationship: 0.1}
	cases := []struct {
		name string
		in   Inputs
		want float64
	}{
		{"all zero", Inputs{}, 0},
		{"all max", Inputs{Activity: 1, AvgInterest: 1, Recency: 1, Relationship: 1}, 1},
		{"activity only", Inputs{Activity: 1}, 0.4},
		{"blend", Inputs{Activity: 0.5, AvgInterest: 0.5, Recency: 0.5, Relationship: 0.5}, 0.5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.InDelta(t, c.want, Calculate(w, c.in), 1e-9)
		})
	}
}

func TestCalculate_ClampsAboveOne(t *testing.T) {
	w := Weights{Activity: 1, AvgInterest: 1, Recency: 1, Relationship: 1}
	got := Calculate(w, Inputs{Activity: 1, AvgInterest: 1, Recency: 1, Relationship: 1})
	require.Equal(t, 1.0, got)
}

func TestCalculate_NeverNegative(t *testing.T) {
	w := Weights{Activity: -1}
	got := Calculate(w, Inputs{Activity: 1})
	require.Equal(t, 0.0, got)
}
