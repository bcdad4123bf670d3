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

func newTestStore(t *testing.T) (*Store, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	st, err := NewStore(context.Background(), vectorstore.NewMemory(), fake, StoreConfig{CacheSize: 100})
	require.NoError(t, err)
	return st, fake
}

func sampleChunk(id string) chatmodel.MemoryChunk {
	return chatmodel.MemoryChunk{
		MemoryID:  id,
		UserScope: "u1",
		ChatScope: "c1",
		Content:   chatmodel.ContentStructure{Display: "alice likes tea"},
		Type:      chatmodel.MemoryPreference,
		Embedding: []float32{1, 0, 0},
		CreatedAt: time.Now(),
	}
}

func TestStore_InsertAndGetByID(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	m := sampleChunk("mem-1")
	require.NoError(t, st.Insert(ctx, m))

	got, ok, err := st.GetByID(ctx, "mem-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice likes tea", got.Content.Display)
}

func TestStore_GetByID_UnknownReturnsFalse(t *testing.T) {
	st, _ := newTestStore(t)
	_, ok, err := st.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_SearchSimilar(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, sampleChunk("mem-1")))

	chunks, dists, err := st.SearchSimilar(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.InDelta(t, 0, dists[0], 1e-6)
}

func TestStore_TouchAccess_BumpsCountAndTimestamp(t *testing.T) {
	st, fake := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, sampleChunk("mem-1")))

	fake.Advance(time.Hour)
	require.NoError(t, st.TouchAccess(ctx, "mem-1"))

	got, ok, err := st.GetByID(ctx, "mem-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, got.AccessCount)
	require.Equal(t, fake.Now(), got.LastAccessed)
}

func TestStore_DeleteRemovesFromCacheAndBackend(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, sampleChunk("mem-1")))
	require.NoError(t, st.Delete(ctx, "mem-1"))

	_, ok, err := st.GetByID(ctx, "mem-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_Count(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, sampleChunk("mem-1")))
	require.NoError(t, st.Insert(ctx, sampleChunk("mem-2")))

	n, err := st.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
