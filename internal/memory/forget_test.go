package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mindloop/internal/chatmodel"
	"mindloop/internal/clock"
	"mindloop/internal/vectorstore"
)

func TestForgetter_RetentionWindow_Bonuses(t *testing.T) {
	cfg := ForgetConfig{
		BaseRetentionDays:   30,
		ImportanceBonusDays: 10,
		ConfidenceBonusDays: 5,
		AccessBonusDays:     2,
		AccessBonusCap:      10,
		RetentionHours:      1,
	}
	f := NewForgetter(cfg, nil, nil)

	base := f.RetentionWindow(chatmodel.MemoryChunk{Importance: 1, Confidence: 1, AccessCount: 0})
	require.Equal(t, 30*24*time.Hour, base)

	withBonuses := f.RetentionWindow(chatmodel.MemoryChunk{Importance: chatmodel.Critical, Confidence: chatmodel.ConfidenceHigh, AccessCount: 3})
	// +10*3 importance, +5*2 confidence, +2*2 access = 30+30+10+4 = 74 days
	require.Equal(t, time.Duration(74*24)*time.Hour, withBonuses)
}

func TestForgetter_RetentionWindow_CapsAccessBonus(t *testing.T) {
	cfg := ForgetConfig{BaseRetentionDays: 10, AccessBonusDays: 5, AccessBonusCap: 8, RetentionHours: 1}
	f := NewForgetter(cfg, nil, nil)
	got := f.RetentionWindow(chatmodel.MemoryChunk{Importance: 1, Confidence: 1, AccessCount: 100})
	require.Equal(t, time.Duration(18*24)*time.Hour, got)
}

func TestForgetter_RetentionWindow_HardCutoffFloor(t *testing.T) {
	cfg := ForgetConfig{BaseRetentionDays: 0, RetentionHours: 100}
	f := NewForgetter(cfg, nil, nil)
	got := f.RetentionWindow(chatmodel.MemoryChunk{Importance: 1, Confidence: 1})
	require.Equal(t, 100*time.Hour, got)
}

func TestForgetter_Sweep_DeletesExpiredOnly(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	st, err := NewStore(context.Background(), vectorstore.NewMemory(), fake, StoreConfig{CacheSize: 10})
	require.NoError(t, err)

	ctx := context.Background()
	expired := chatmodel.MemoryChunk{
		MemoryID: "old", UserScope: "u1", Embedding: []float32{1},
		Importance: 1, Confidence: 1, LastModified: fake.Now().Add(-100 * 24 * time.Hour),
	}
	fresh := chatmodel.MemoryChunk{
		MemoryID: "new", UserScope: "u1", Embedding: []float32{1},
		Importance: 1, Confidence: 1, LastModified: fake.Now(),
	}
	require.NoError(t, st.Insert(ctx, expired))
	require.NoError(t, st.Insert(ctx, fresh))

	f := NewForgetter(ForgetConfig{BaseRetentionDays: 30, RetentionHours: 1}, st, fake)
	deleted, err := f.Sweep(ctx, map[string]any{"user_id": "u1"})
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	_, ok, err := st.GetByID(ctx, "old")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = st.GetByID(ctx, "new")
	require.NoError(t, err)
	require.True(t, ok)
}
