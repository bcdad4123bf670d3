// Package streamctx implements the ContextStore component: the
// registry of per-stream StreamContext state that the MessageManager
// and Dispatcher read and mutate.
package streamctx

import (
	"sync"

	"mindloop/internal/chatmodel"
)

// Store is a concurrency-safe registry of StreamContext keyed by
// StreamID. A single RWMutex guards the map itself; each
// StreamContext's own fields are only ever touched by the one worker
// holding its in-flight lease (TryAcquire/Release), so no per-context
// lock is needed.
type Store struct {
	mu      sync.RWMutex
	streams map[string]*chatmodel.StreamContext

	maxHistory       int
	maxInterruptions int
}

func NewStore(maxHistory, maxInterruptions int) *Store {
	return &Store{
		streams:          map[string]*chatmodel.StreamContext{},
		maxHistory:       maxHistory,
		maxInterruptions: maxInterruptions,
	}
}

// GetOrCreate returns the StreamContext for streamID, creating it with
// chatType if it doesn't exist yet. ChatType is immutable once set.
func (s *Store) GetOrCreate(streamID string, chatType chatmodel.ChatType) *chatmodel.StreamContext {
	s.mu.RLock()
	ctx, ok := s.streams[streamID]
	s.mu.RUnlock()
	if ok {
		return ctx
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx, ok = s.streams[streamID]; ok {
		return ctx
	}
	ctx = chatmodel.NewStreamContext(streamID, chatType, s.maxHistory, s.maxInterruptions)
	s.streams[streamID] = ctx
	return ctx
}

// Get returns the StreamContext for streamID, or nil if unknown.
func (s *Store) Get(streamID string) *chatmodel.StreamContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streams[streamID]
}

// All returns every currently known stream context; callers must not
// mutate StreamID/ChatType on the returned contexts.
func (s *Store) All() []*chatmodel.StreamContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*chatmodel.StreamContext, 0, len(s.streams))
	for _, ctx := range s.streams {
		out = append(out, ctx)
	}
	return out
}
