package embedprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFake_Dimension(t *testing.T) {
	f := NewFake(16)
	require.Equal(t, 16, f.Dimension())
}

func TestFake_Embed_IsDeterministic(t *testing.T) {
	f := NewFake(8)
	a, err := f.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := f.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 8)
}

func TestFake_Embed_DiffersAcrossInputs(t *testing.T) {
	f := NewFake(8)
	a, err := f.Embed(context.Background(), "alice")
	require.NoError(t, err)
	b, err := f.Embed(context.Background(), "bob")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestFake_ImplementsProvider(t *testing.T) {
	var _ Provider = NewFake(4)
}
