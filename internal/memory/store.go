// Package memory implements the structured long-term memory subsystem:
// MemoryStore, MemoryExtractor, MemoryFusion, Retriever, MemorySystem,
// and MemoryForgetter.
package memory

import (
	"context"
	"fmt"
	"sync"

	"mindloop/internal/chatmodel"
	"mindloop/internal/clock"
	"mindloop/internal/vectorstore"
)

const collectionMemories = "memories"

// StoreConfig tunes MemoryStore's cache sizing.
type StoreConfig struct {
	CacheSize int64
}

// Store is the MemoryStore component: a VectorStore-backed repository
// of MemoryChunks with an in-memory read cache and a single mutation
// lock per collection (reads proceed lock-free against the cache and
// the underlying store).
type Store struct {
	vs    vectorstore.Store
	cache *chunkCache
	clk   clock.Source

	mu sync.Mutex // guards mutations only; reads never take this
}

func NewStore(ctx context.Context, vs vectorstore.Store, clk clock.Source, cfg StoreConfig) (*Store, error) {
	cache, err := newChunkCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: memory store cache init: %v", chatmodel.ErrFatalInit, err)
	}
	if err := vs.GetOrCreateCollection(ctx, collectionMemories, nil); err != nil {
		return nil, fmt.Errorf("%w: memory collection init: %v", chatmodel.ErrFatalInit, err)
	}
	return &Store{vs: vs, cache: cache, clk: clk}, nil
}

// Insert persists a new MemoryChunk. Callers (MemoryFusion) are
// responsible for deduplication before calling Insert.
func (s *Store) Insert(ctx context.Context, m chatmodel.MemoryChunk) error {
	doc, meta, err := ToRecord(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.vs.Add(ctx, collectionMemories, vectorstore.AddRequest{
		Embeddings: [][]float32{m.Embedding},
		Documents:  []string{doc},
		Metadatas:  []map[string]any{meta},
		IDs:        []string{m.MemoryID},
	}); err != nil {
		return fmt.Errorf("%w: memory insert: %v", chatmodel.ErrTransient, err)
	}
	s.cache.set(m)
	return nil
}

// GetByID returns a single MemoryChunk, preferring the cache.
func (s *Store) GetByID(ctx context.Context, id string) (chatmodel.MemoryChunk, bool, error) {
	if m, ok := s.cache.get(id); ok {
		return m, true, nil
	}
	res, err := s.vs.Get(ctx, collectionMemories, []string{id}, nil, 1)
	if err != nil {
		return chatmodel.MemoryChunk{}, false, fmt.Errorf("%w: memory get: %v", chatmodel.ErrTransient, err)
	}
	if len(res.IDs) == 0 {
		return chatmodel.MemoryChunk{}, false, nil
	}
	m, err := FromRecord(res.IDs[0], res.Metadatas[0])
	if err != nil {
		return chatmodel.MemoryChunk{}, false, err
	}
	s.cache.set(m)
	return m, true, nil
}

// GetByFilter returns every memory whose metadata matches where,
// capped at limit (0 = backend default).
func (s *Store) GetByFilter(ctx context.Context, where map[string]any, limit int) ([]chatmodel.MemoryChunk, error) {
	res, err := s.vs.Get(ctx, collectionMemories, nil, where, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: memory get-by-filter: %v", chatmodel.ErrTransient, err)
	}
	out := make([]chatmodel.MemoryChunk, 0, len(res.IDs))
	for i, id := range res.IDs {
		m, err := FromRecord(id, res.Metadatas[i])
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// SearchSimilar runs a raw nearest-neighbor query against the
// collection, returning chunks and their (1-cosine) distance.
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, n int, where map[string]any) ([]chatmodel.MemoryChunk, []float32, error) {
	res, err := s.vs.Query(ctx, collectionMemories, embedding, n, where)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: memory search: %v", chatmodel.ErrTransient, err)
	}
	chunks := make([]chatmodel.MemoryChunk, 0, len(res.IDs))
	dists := make([]float32, 0, len(res.IDs))
	for i, id := range res.IDs {
		m, err := FromRecord(id, res.Metadatas[i])
		if err != nil {
			continue
		}
		chunks = append(chunks, m)
		dists = append(dists, res.Distances[i])
	}
	return chunks, dists, nil
}

// Update persists a modified chunk (MemoryFusion merges, access-count
// bumps from Retriever) by re-inserting under the same ID.
func (s *Store) Update(ctx context.Context, m chatmodel.MemoryChunk) error {
	s.cache.del(m.MemoryID)
	return s.Insert(ctx, m)
}

// TouchAccess bumps AccessCount/LastAccessed and persists the change;
// used by Retriever's final stage.
func (s *Store) TouchAccess(ctx context.Context, id string) error {
	m, ok, err := s.GetByID(ctx, id)
	if err != nil || !ok {
		return err
	}
	m.AccessCount++
	m.LastAccessed = s.clk.Now()
	return s.Update(ctx, m)
}

// Delete removes a single memory by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.vs.Delete(ctx, collectionMemories, []string{id}, nil); err != nil {
		return fmt.Errorf("%w: memory delete: %v", chatmodel.ErrTransient, err)
	}
	s.cache.del(id)
	return nil
}

// DeleteByFilter removes every memory matching where — used by
// MemoryForgetter's retention sweep.
func (s *Store) DeleteByFilter(ctx context.Context, where map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.vs.Delete(ctx, collectionMemories, nil, where); err != nil {
		return fmt.Errorf("%w: memory delete-by-filter: %v", chatmodel.ErrTransient, err)
	}
	return nil
}

// Count returns the total number of memories in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.vs.Count(ctx, collectionMemories)
	if err != nil {
		return 0, fmt.Errorf("%w: memory count: %v", chatmodel.ErrTransient, err)
	}
	return n, nil
}
