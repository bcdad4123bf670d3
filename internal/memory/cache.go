package memory

import (
	"github.com/dgraph-io/ristretto/v2"

	"mindloop/internal/chatmodel"
)

// chunkCache is MemoryStore's in-memory cache of recently-read/written
// MemoryChunks. ristretto/v2 is sourced from the wider example pack
// (other_examples/compozy-compozy) as an enrichment at this layer.
type chunkCache struct {
	c *ristretto.Cache[string, chatmodel.MemoryChunk]
}

func newChunkCache(maxItems int64) (*chunkCache, error) {
	if maxItems <= 0 {
		maxItems = 10_000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, chatmodel.MemoryChunk]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &chunkCache{c: c}, nil
}

func (cc *chunkCache) get(id string) (chatmodel.MemoryChunk, bool) {
	return cc.c.Get(id)
}

func (cc *chunkCache) set(chunk chatmodel.MemoryChunk) {
	cc.c.Set(chunk.MemoryID, chunk, 1)
	cc.c.Wait()
}

func (cc *chunkCache) del(id string) {
	cc.c.Del(id)
}
