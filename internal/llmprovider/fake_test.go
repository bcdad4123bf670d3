package llmprovider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFake_RecordsCallsAndReturnsConfiguredText(t *testing.T) {
	f := &Fake{Text: "hello there", OK: true}
	text, ok, err := f.Generate(context.Background(), "prompt one", Options{RequestType: "plan"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello there", text)

	_, _, _ = f.Generate(context.Background(), "prompt two", Options{})
	require.Equal(t, []string{"prompt one", "prompt two"}, f.Calls)
}

func TestFake_PropagatesConfiguredError(t *testing.T) {
	wantErr := errors.New("boom")
	f := &Fake{Err: wantErr}
	_, ok, err := f.Generate(context.Background(), "p", Options{})
	require.False(t, ok)
	require.ErrorIs(t, err, wantErr)
}

func TestFake_ImplementsProvider(t *testing.T) {
	var _ Provider = &Fake{}
}
