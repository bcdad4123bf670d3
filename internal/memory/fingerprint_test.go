package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInProcessFingerprints_SetThenGet(t *testing.T) {
	fp := NewInProcessFingerprints()
	ctx := context.Background()

	val, err := fp.Get(ctx, "missing")
	require.NoError(t, err)
	require.Equal(t, "", val)

	require.NoError(t, fp.Set(ctx, "key1", "mem-1", 0))
	val, err = fp.Get(ctx, "key1")
	require.NoError(t, err)
	require.Equal(t, "mem-1", val)
}

func TestInProcessFingerprints_ImplementsFingerprintStore(t *testing.T) {
	var _ FingerprintStore = NewInProcessFingerprints()
}
