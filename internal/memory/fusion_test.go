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

func newTestFusion(t *testing.T, threshold float64) (*Fusion, *Store, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	st, err := NewStore(context.Background(), vectorstore.NewMemory(), fake, StoreConfig{CacheSize: 100})
	require.NoError(t, err)
	fp := NewInProcessFingerprints()
	f := NewFusion(FusionConfig{FusionThreshold: threshold}, st, fp, fake)
	return f, st, fake
}

func TestFusion_DefaultsThreshold(t *testing.T) {
	f := NewFusion(FusionConfig{}, nil, nil, nil)
	require.Equal(t, 0.85, f.cfg.FusionThreshold)
}

func TestFusion_Fuse_NoMatchInsertsFresh(t *testing.T) {
	f, _, _ := newTestFusion(t, 0.85)
	candidate := chatmodel.MemoryChunk{MemoryID: "m1", SemanticHash: "h1", Embedding: []float32{1, 0}}
	merged, err := f.Fuse(context.Background(), candidate, nil)
	require.NoError(t, err)
	require.False(t, merged)
}

func TestFusion_Fuse_MergesOnExactSemanticHash(t *testing.T) {
	f, st, fake := newTestFusion(t, 0.85)
	ctx := context.Background()

	existing := chatmodel.MemoryChunk{
		MemoryID: "m-existing", SemanticHash: "same-hash",
		Embedding: []float32{1, 0}, Content: chatmodel.ContentStructure{Subjects: []string{"alice"}},
		Keywords: []string{"tea"}, Importance: chatmodel.Minor, RelevanceScore: 0.3,
	}
	require.NoError(t, st.Insert(ctx, existing))

	fake.Advance(time.Hour)
	candidate := chatmodel.MemoryChunk{
		MemoryID: "m-new", SemanticHash: "same-hash",
		Embedding: []float32{1, 0}, Content: chatmodel.ContentStructure{Subjects: []string{"alice"}},
		Keywords: []string{"coffee"}, Importance: chatmodel.Critical, RelevanceScore: 0.8,
	}

	merged, err := f.Fuse(ctx, candidate, []chatmodel.MemoryChunk{existing})
	require.NoError(t, err)
	require.True(t, merged)

	got, ok, err := st.GetByID(ctx, "m-existing")
	require.NoError(t, err)
	require.True(t, ok)
	require.ElementsMatch(t, []string{"tea", "coffee"}, got.Keywords)
	require.Equal(t, chatmodel.Critical, got.Importance)
	require.Equal(t, 0.8, got.RelevanceScore)
	require.Equal(t, fake.Now(), got.LastModified)
}

func TestFusion_Fuse_MergesOnHighSimilarityAndSharedSubject(t *testing.T) {
	f, st, _ := newTestFusion(t, 0.9)
	ctx := context.Background()

	existing := chatmodel.MemoryChunk{
		MemoryID: "m-existing", SemanticHash: "h-old",
		Embedding: []float32{1, 0, 0}, Content: chatmodel.ContentStructure{Subjects: []string{"bob"}},
	}
	require.NoError(t, st.Insert(ctx, existing))

	candidate := chatmodel.MemoryChunk{
		MemoryID: "m-new", SemanticHash: "h-new",
		Embedding: []float32{0.99, 0.01, 0}, Content: chatmodel.ContentStructure{Subjects: []string{"bob"}},
	}
	merged, err := f.Fuse(ctx, candidate, []chatmodel.MemoryChunk{existing})
	require.NoError(t, err)
	require.True(t, merged)
}

func TestFusion_Fuse_NoSharedSubjectDoesNotMerge(t *testing.T) {
	f, _, _ := newTestFusion(t, 0.5)
	existing := chatmodel.MemoryChunk{
		MemoryID: "m-existing", SemanticHash: "h-old",
		Embedding: []float32{1, 0}, Content: chatmodel.ContentStructure{Subjects: []string{"bob"}},
	}
	candidate := chatmodel.MemoryChunk{
		MemoryID: "m-new", SemanticHash: "h-new",
		Embedding: []float32{1, 0}, Content: chatmodel.ContentStructure{Subjects: []string{"carol"}},
	}
	merged, err := f.Fuse(context.Background(), candidate, []chatmodel.MemoryChunk{existing})
	require.NoError(t, err)
	require.False(t, merged)
}
