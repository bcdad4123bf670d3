// Package embedprovider implements the EmbeddingProvider external
// collaborator: a fixed-dimension text embedder used by MemoryExtractor
// (content embedding), MemoryFusion (duplicate detection) and the
// Retriever's vector-search stage.
package embedprovider

import "context"

// Provider embeds text into a fixed-dimension vector space. Dimension
// is discovered once at construction time and must stay constant for
// the lifetime of a collection.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
