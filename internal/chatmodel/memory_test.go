package chatmodel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeSemanticHash_DeterministicAndLength(t *testing.T) {
	content := ContentStructure{Subjects: []string{"alice"}, Predicate: "likes", Display: "alice likes tea"}
	embedding := []float32{0.1234, 0.5678}

	h1 := ComputeSemanticHash(content, embedding)
	h2 := ComputeSemanticHash(content, embedding)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 16)
}

func TestComputeSemanticHash_StableUnderFloatNoise(t *testing.T) {
	content := ContentStructure{Subjects: []string{"alice"}, Predicate: "likes", Display: "alice likes tea"}
	h1 := ComputeSemanticHash(content, []float32{0.1234100, 0.5678200})
	h2 := ComputeSemanticHash(content, []float32{0.1234102, 0.5678198})
	require.Equal(t, h1, h2)
}

func TestComputeSemanticHash_DiffersOnDifferentContent(t *testing.T) {
	embedding := []float32{0.1, 0.2}
	h1 := ComputeSemanticHash(ContentStructure{Display: "alice likes tea"}, embedding)
	h2 := ComputeSemanticHash(ContentStructure{Display: "bob likes coffee"}, embedding)
	require.NotEqual(t, h1, h2)
}

func TestComputeSemanticHash_DiffersOnDifferentEmbedding(t *testing.T) {
	content := ContentStructure{Display: "alice likes tea"}
	h1 := ComputeSemanticHash(content, []float32{0.1, 0.2})
	h2 := ComputeSemanticHash(content, []float32{0.9, 0.8})
	require.NotEqual(t, h1, h2)
}
