package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"mindloop/internal/chatmodel"
	"mindloop/internal/embedprovider"
	"mindloop/internal/vectorstore"
)

// RetrieveConfig carries every retrieval tunable; internal/system fills
// it from internal/config.Config. A zero stage limit falls back to
// 200/50/30/10 (metadata, vector, rerank, final) inside the stages;
// weights and thresholds get no default.
type RetrieveConfig struct {
	MetadataFilterLimit int
	VectorSearchLimit   int
	VectorSimThreshold  float64
	SemanticRerankLimit int
	SemanticSimThreshold float64
	FinalResultLimit    int

	WeightSemantic   float64
	WeightVector     float64
	WeightContextual float64
	WeightRecency    float64
}

// Emphasis biases Stage 4's weighting toward precision or recall.
type Emphasis int

const (
	EmphasisNone Emphasis = iota
	EmphasisPrecision
	EmphasisRecall
)

// QueryPlan is the optional structured filter MemorySystem.Retrieve may
// derive via an LLM call before delegating to the Retriever.
type QueryPlan struct {
	MemoryTypes      []chatmodel.MemoryType
	Subjects         []string
	RequiredKeywords []string
	SemanticQuery    string
	RecencyPreference float64 // 0=no preference, 1=strongly prefer recent
	Emphasis         Emphasis
}

// Retriever is a four-stage pipeline from a raw
// candidate pool down to a ranked, capped result list.
type Retriever struct {
	cfg   RetrieveConfig
	store *Store
	embed embedprovider.Provider
}

func NewRetriever(cfg RetrieveConfig, store *Store, embed embedprovider.Provider) *Retriever {
	return &Retriever{cfg: cfg, store: store, embed: embed}
}

type scoredMemory struct {
	chunk    chatmodel.MemoryChunk
	cosine   float64
	jaccard  float64
	final    float64
}

// Retrieve runs all four stages for userID against plan, returning at
// most FinalResultLimit memories ordered by descending final score.
// AccessCount/LastAccessed are bumped on every returned memory.
func (r *Retriever) Retrieve(ctx context.Context, userID string, plan QueryPlan, now time.Time) ([]chatmodel.MemoryChunk, error) {
	stage1, err := r.stage1MetadataFilter(ctx, userID, plan)
	if err != nil {
		return nil, err
	}

	stage2, err := r.stage2VectorSearch(ctx, stage1, plan)
	if err != nil {
		return nil, err
	}

	stage3 := r.stage3SemanticRerank(stage2, plan)

	final := r.stage4ContextualScore(stage3, plan, now)

	for i := range final {
		_ = r.store.TouchAccess(ctx, final[i].chunk.MemoryID)
	}

	out := make([]chatmodel.MemoryChunk, len(final))
	for i, sm := range final {
		sm.chunk.RelevanceScore = clamp01f(sm.final)
		out[i] = sm.chunk
	}
	return out, nil
}

func (r *Retriever) stage1MetadataFilter(ctx context.Context, userID string, plan QueryPlan) ([]chatmodel.MemoryChunk, error) {
	where := map[string]any{"user_id": userID}
	limit := r.cfg.MetadataFilterLimit
	if limit <= 0 {
		limit = 200
	}
	chunks, err := r.store.GetByFilter(ctx, where, limit)
	if err != nil {
		return nil, err
	}

	chunks = filterByPlan(chunks, plan)

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].LastAccessed.After(chunks[j].LastAccessed)
	})
	if len(chunks) > limit {
		chunks = chunks[:limit] // fallback: keep the most-recently-accessed
	}
	return chunks, nil
}

func filterByPlan(chunks []chatmodel.MemoryChunk, plan QueryPlan) []chatmodel.MemoryChunk {
	if len(plan.MemoryTypes) == 0 && len(plan.Subjects) == 0 && len(plan.RequiredKeywords) == 0 {
		return chunks
	}
	out := chunks[:0:0]
	for _, c := range chunks {
		if len(plan.MemoryTypes) > 0 && !containsType(plan.MemoryTypes, c.Type) {
			continue
		}
		if len(plan.Subjects) > 0 && !anyOverlap(plan.Subjects, c.Content.Subjects) {
			continue
		}
		if len(plan.RequiredKeywords) > 0 && !allPresent(plan.RequiredKeywords, c.Keywords) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func containsType(types []chatmodel.MemoryType, t chatmodel.MemoryType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func anyOverlap(a, b []string) bool {
	set := map[string]struct{}{}
	for _, s := range b {
		set[s] = struct{}{}
	}
	for _, s := range a {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

func allPresent(required, have []string) bool {
	set := map[string]struct{}{}
	for _, s := range have {
		set[s] = struct{}{}
	}
	for _, s := range required {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

func (r *Retriever) stage2VectorSearch(ctx context.Context, pool []chatmodel.MemoryChunk, plan QueryPlan) ([]scoredMemory, error) {
	if plan.SemanticQuery == "" || r.embed == nil {
		out := make([]scoredMemory, len(pool))
		for i, c := range pool {
			out[i] = scoredMemory{chunk: c, cosine: 1}
		}
		return out, nil
	}
	queryEmb, err := r.embed.Embed(ctx, plan.SemanticQuery)
	if err != nil {
		return nil, err
	}

	limit := r.cfg.VectorSearchLimit
	if limit <= 0 {
		limit = 50
	}
	threshold := r.cfg.VectorSimThreshold

	var scored []scoredMemory
	for _, c := range pool {
		sim := vectorstore.CosineSimilarity(queryEmb, c.Embedding)
		if sim < threshold {
			continue
		}
		scored = append(scored, scoredMemory{chunk: c, cosine: sim})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].cosine > scored[j].cosine })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (r *Retriever) stage3SemanticRerank(pool []scoredMemory, plan QueryPlan) []scoredMemory {
	if plan.SemanticQuery == "" {
		return pool
	}
	queryTokens := tokenSet(plan.SemanticQuery)

	limit := r.cfg.SemanticRerankLimit
	if limit <= 0 {
		limit = 30
	}
	threshold := r.cfg.SemanticSimThreshold

	out := pool[:0:0]
	for _, sm := range pool {
		docTokens := tokenSet(sm.chunk.Content.Display)
		j := jaccard(queryTokens, docTokens)
		if j < threshold {
			continue
		}
		sm.jaccard = j
		out = append(out, sm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].jaccard > out[j].jaccard })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func tokenSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(tok, ".,!?;:\"'")] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func (r *Retriever) stage4ContextualScore(pool []scoredMemory, plan QueryPlan, now time.Time) []scoredMemory {
	wSem, wVec, wCtx, wRec := r.cfg.WeightSemantic, r.cfg.WeightVector, r.cfg.WeightContextual, r.cfg.WeightRecency
	switch plan.Emphasis {
	case EmphasisPrecision:
		wSem += 0.05
	case EmphasisRecall:
		wCtx += 0.05
	}

	for i := range pool {
		sm := &pool[i]
		ctxScore := contextScore(sm.chunk, plan, now)
		recency := recencyScore(sm.chunk, now)
		raw := wSem*sm.jaccard + wVec*sm.cosine + wCtx*ctxScore + wRec*recency
		scale := 0.7 + 0.3*float64(sm.chunk.Importance)/4.0
		sm.final = raw * scale
	}

	sort.Slice(pool, func(i, j int) bool { return pool[i].final > pool[j].final })

	limit := r.cfg.FinalResultLimit
	if limit <= 0 {
		limit = 10
	}
	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}

// contextScore blends the context-alignment terms of the final scoring
// stage: +0.3 for a type match, ·0.4 for keyword overlap, ·0.3 for
// subject inclusion, up to 0.3 for object keyword hits, up to 0.2 from
// the memory's own keyword count (0.02 each; QueryPlan carries no
// optional keywords, so this term does not depend on the query), plus
// recency-preference alignment.
func contextScore(c chatmodel.MemoryChunk, plan QueryPlan, now time.Time) float64 {
	score := 0.0
	if len(plan.MemoryTypes) > 0 && containsType(plan.MemoryTypes, c.Type) {
		score += 0.3
	}
	if len(plan.RequiredKeywords) > 0 {
		overlap := overlapRatio(plan.RequiredKeywords, c.Keywords)
		score += 0.4 * overlap
	}
	if len(plan.Subjects) > 0 && anyOverlap(plan.Subjects, c.Content.Subjects) {
		score += 0.3
	}
	objectHits := keywordHits(plan.RequiredKeywords, c.Content.ObjectText)
	score += min64(0.3, float64(objectHits)*0.1)
	score += min64(0.2, float64(len(c.Keywords))*0.02)
	if plan.RecencyPreference > 0 {
		score += plan.RecencyPreference * recencyScore(c, now)
	}
	return clamp01f(score)
}

func overlapRatio(required, have []string) float64 {
	if len(required) == 0 {
		return 0
	}
	set := map[string]struct{}{}
	for _, s := range have {
		set[s] = struct{}{}
	}
	hits := 0
	for _, s := range required {
		if _, ok := set[s]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(required))
}

func keywordHits(keywords []string, text string) int {
	lower := strings.ToLower(text)
	hits := 0
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			hits++
		}
	}
	return hits
}

func recencyScore(c chatmodel.MemoryChunk, now time.Time) float64 {
	if c.LastAccessed.IsZero() {
		return 0
	}
	days := now.Sub(c.LastAccessed).Hours() / 24
	if days < 0 {
		days = 0
	}
	// Exponential decay with a 14-day half-life.
	return math.Pow(0.5, days/14)
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clamp01f(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
