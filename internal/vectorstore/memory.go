package vectorstore

import (
	"context"
	"sort"
	"sync"

	"mindloop/internal/chatmodel"
)

type memRecord struct {
	embedding []float32
	document  string
	metadata  map[string]any
}

// Memory is a dependency-free, in-process Store implementation. It
// backs unit tests and serves as the default backend when no external
// vector database is configured (vector_store.backend: memory).
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]memRecord
}

func NewMemory() *Memory {
	return &Memory{collections: map[string]map[string]memRecord{}}
}

func (m *Memory) GetOrCreateCollection(_ context.Context, name string, _ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = map[string]memRecord{}
	}
	return nil
}

func (m *Memory) Add(_ context.Context, collection string, req AddRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return chatmodel.ErrState
	}
	for i, id := range req.IDs {
		var meta map[string]any
		if i < len(req.Metadatas) {
			meta = req.Metadatas[i]
		}
		var doc string
		if i < len(req.Documents) {
			doc = req.Documents[i]
		}
		coll[id] = memRecord{embedding: req.Embeddings[i], document: doc, metadata: meta}
	}
	return nil
}

func matchesWhere(meta map[string]any, where map[string]any) bool {
	for k, v := range where {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func (m *Memory) Query(_ context.Context, collection string, embedding []float32, n int, where map[string]any) (QueryResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.collections[collection]

	type scored struct {
		id   string
		rec  memRecord
		dist float32
	}
	var cands []scored
	for id, rec := range coll {
		if !matchesWhere(rec.metadata, where) {
			continue
		}
		dist := float32(1 - CosineSimilarity(embedding, rec.embedding))
		cands = append(cands, scored{id, rec, dist})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if n > 0 && len(cands) > n {
		cands = cands[:n]
	}

	res := QueryResult{}
	for _, c := range cands {
		res.IDs = append(res.IDs, c.id)
		res.Documents = append(res.Documents, c.rec.document)
		res.Metadatas = append(res.Metadatas, c.rec.metadata)
		res.Distances = append(res.Distances, c.dist)
	}
	return res, nil
}

func (m *Memory) Get(_ context.Context, collection string, ids []string, where map[string]any, limit int) (GetResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.collections[collection]
	res := GetResult{}

	add := func(id string, rec memRecord) {
		res.IDs = append(res.IDs, id)
		res.Documents = append(res.Documents, rec.document)
		res.Metadatas = append(res.Metadatas, rec.metadata)
	}

	if len(ids) > 0 {
		for _, id := range ids {
			if rec, ok := coll[id]; ok {
				add(id, rec)
			}
		}
		return res, nil
	}

	for id, rec := range coll {
		if !matchesWhere(rec.metadata, where) {
			continue
		}
		add(id, rec)
		if limit > 0 && len(res.IDs) >= limit {
			break
		}
	}
	return res, nil
}

func (m *Memory) Delete(_ context.Context, collection string, ids []string, where map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return nil
	}
	if len(ids) > 0 {
		for _, id := range ids {
			delete(coll, id)
		}
		return nil
	}
	for id, rec := range coll {
		if matchesWhere(rec.metadata, where) {
			delete(coll, id)
		}
	}
	return nil
}

func (m *Memory) Count(_ context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection]), nil
}
