package memory

import (
	"context"
	"fmt"

	"mindloop/internal/chatmodel"
	"mindloop/internal/clock"
	"mindloop/internal/vectorstore"
)

// FusionConfig configures duplicate detection.
type FusionConfig struct {
	FusionThreshold float64 // cosine similarity threshold, default 0.85
}

// Fusion is the MemoryFusion component: given a freshly extracted
// candidate and a pool of existing candidates from the same scope (the
// user-scope + vector-search union MemorySystem assembles before
// calling Fuse), decide whether it's a duplicate of one of them and
// merge or insert accordingly.
type Fusion struct {
	cfg   FusionConfig
	store *Store
	fp    FingerprintStore
	clk   clock.Source
}

func NewFusion(cfg FusionConfig, store *Store, fp FingerprintStore, clk clock.Source) *Fusion {
	if cfg.FusionThreshold == 0 {
		cfg.FusionThreshold = 0.85
	}
	return &Fusion{cfg: cfg, store: store, fp: fp, clk: clk}
}

// isDuplicate reports whether candidate duplicates existing: exact
// SemanticHash match, or cosine similarity at or above FusionThreshold
// combined with at least one shared subject.
func (f *Fusion) isDuplicate(candidate, existing chatmodel.MemoryChunk) bool {
	if candidate.SemanticHash != "" && candidate.SemanticHash == existing.SemanticHash {
		return true
	}
	sim := vectorstore.CosineSimilarity(candidate.Embedding, existing.Embedding)
	if sim < f.cfg.FusionThreshold {
		return false
	}
	return sharesSubject(candidate.Content.Subjects, existing.Content.Subjects)
}

func sharesSubject(a, b []string) bool {
	set := map[string]struct{}{}
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

// Fuse deduplicates candidate against candidatePool. On a match it
// merges into the existing chunk and persists the merge (no new
// insert); otherwise it registers the candidate's fingerprint and
// reports that the caller should insert it.
func (f *Fusion) Fuse(ctx context.Context, candidate chatmodel.MemoryChunk, candidatePool []chatmodel.MemoryChunk) (merged bool, err error) {
	if f.fp != nil {
		if existingID, err := f.fp.Get(ctx, candidate.SemanticHash); err == nil && existingID != "" {
			if existing, ok, err := f.store.GetByID(ctx, existingID); err == nil && ok {
				f.mergeInto(&existing, candidate)
				return true, f.store.Update(ctx, existing)
			}
		}
	}

	for _, existing := range candidatePool {
		if !f.isDuplicate(candidate, existing) {
			continue
		}
		f.mergeInto(&existing, candidate)
		if err := f.store.Update(ctx, existing); err != nil {
			return false, err
		}
		if f.fp != nil {
			_ = f.fp.Set(ctx, candidate.SemanticHash, existing.MemoryID, 0)
		}
		return true, nil
	}

	if f.fp != nil {
		if err := f.fp.Set(ctx, candidate.SemanticHash, candidate.MemoryID, 0); err != nil {
			return false, fmt.Errorf("%w: register fingerprint: %v", chatmodel.ErrTransient, err)
		}
	}
	return false, nil
}

// mergeInto unions keywords, tags, categories, and related-memory
// IDs; Importance, Confidence, and RelevanceScore each take the max of
// the two; LastModified becomes now.
func (f *Fusion) mergeInto(existing *chatmodel.MemoryChunk, incoming chatmodel.MemoryChunk) {
	existing.Keywords = unionStrings(existing.Keywords, incoming.Keywords)
	existing.Tags = unionStrings(existing.Tags, incoming.Tags)
	existing.Categories = unionStrings(existing.Categories, incoming.Categories)
	existing.RelatedMemories = unionStrings(existing.RelatedMemories, incoming.RelatedMemories)
	if incoming.Importance > existing.Importance {
		existing.Importance = incoming.Importance
	}
	if incoming.Confidence > existing.Confidence {
		existing.Confidence = incoming.Confidence
	}
	if incoming.RelevanceScore > existing.RelevanceScore {
		existing.RelevanceScore = incoming.RelevanceScore
	}
	existing.LastModified = f.clk.Now()
}

func unionStrings(a, b []string) []string {
	set := map[string]struct{}{}
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
