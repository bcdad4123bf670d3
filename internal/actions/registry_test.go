package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"mindloop/internal/chatmodel"
)

func TestRegistry_InvokeRegisteredAction(t *testing.T) {
	r := NewRegistry()
	r.Register("reply", func(ctx context.Context, inv Invocation) (Result, error) {
		return Result{Output: map[string]any{"text": inv.TargetText}}, nil
	})

	res, err := r.Invoke(context.Background(), Invocation{Name: "reply", TargetText: "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi", res.Output["text"])
}

func TestRegistry_InvokeUnknownAction(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), Invocation{Name: "missing"})
	require.Error(t, err)
	require.True(t, errors.Is(err, chatmodel.ErrContract))
}

func TestRegistry_SpecsFallBackToBareName(t *testing.T) {
	r := NewRegistry()
	r.Register("no_action", func(ctx context.Context, inv Invocation) (Result, error) { return Result{}, nil })
	r.Register("reply", func(ctx context.Context, inv Invocation) (Result, error) { return Result{}, nil })
	r.RegisterSpec(ActionSpec{Name: "reply", Description: "send a reply"})

	specs := r.Specs()
	require.Len(t, specs, 2)

	byName := map[string]ActionSpec{}
	for _, s := range specs {
		byName[s.Name] = s
	}
	require.Equal(t, "send a reply", byName["reply"].Description)
	require.Equal(t, "", byName["no_action"].Description)
}

func TestRegistry_ListAndHas(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.Has("reply"))
	r.Register("reply", func(ctx context.Context, inv Invocation) (Result, error) { return Result{}, nil })
	require.True(t, r.Has("reply"))
	require.Equal(t, []string{"reply"}, r.List())
}
