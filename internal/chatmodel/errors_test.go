package chatmodel

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy_WrapsAndUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("%w: upstream timed out", ErrTransient)
	require.True(t, errors.Is(wrapped, ErrTransient))
	require.False(t, errors.Is(wrapped, ErrParse))
}

func TestErrorTaxonomy_DistinctSentinels(t *testing.T) {
	sentinels := []error{ErrTransient, ErrParse, ErrContract, ErrState, ErrFatalInit}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			require.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}
