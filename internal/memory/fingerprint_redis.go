package memory

import (
	"context"
	"fmt"
	"time"

	"mindloop/internal/chatmodel"
	"mindloop/internal/orchestrator"
)

// RedisFingerprints is a Redis-backed FingerprintStore so fingerprint
// registration survives process restarts when REDIS_ADDR is
// configured. It wraps orchestrator.RedisDedupeStore (originally an
// idempotency store for Kafka command envelopes) rather than rolling a
// second Redis client: MemoryFusion's fingerprint registration is
// itself a dedupe-by-key-with-TTL problem, so the same Get/Set/Close
// shape applies directly.
type RedisFingerprints struct {
	dedupe *orchestrator.RedisDedupeStore
}

func NewRedisFingerprints(addr string) (*RedisFingerprints, error) {
	dedupe, err := orchestrator.NewRedisDedupeStore(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: redis fingerprint store init: %v", chatmodel.ErrFatalInit, err)
	}
	return &RedisFingerprints{dedupe: dedupe}, nil
}

func (s *RedisFingerprints) Get(ctx context.Context, key string) (string, error) {
	val, err := s.dedupe.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: redis get: %v", chatmodel.ErrTransient, err)
	}
	return val, nil
}

func (s *RedisFingerprints) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.dedupe.Set(ctx, key, value, ttl); err != nil {
		return fmt.Errorf("%w: redis set: %v", chatmodel.ErrTransient, err)
	}
	return nil
}

func (s *RedisFingerprints) Close() error {
	return s.dedupe.Close()
}
