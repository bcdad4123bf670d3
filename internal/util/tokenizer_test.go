package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"single word", "hello", 1},
		{"multiple words", "hello world", 2},
		{"trailing punctuation", "hello, world!", 4},
		{"leading/trailing space", "  hello  ", 1},
		{"only punctuation", "...", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CountTokens(tc.in))
		})
	}
}
