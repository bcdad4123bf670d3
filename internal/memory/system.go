package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"mindloop/internal/chatmodel"
	"mindloop/internal/clock"
	"mindloop/internal/llmprovider"
	"mindloop/internal/logging"
)

// Status is MemorySystem's lifecycle state.
type Status int

const (
	StatusInitializing Status = iota
	StatusReady
	StatusBuilding
	StatusRetrieving
	StatusError
)

// SystemConfig tunes MemorySystem's ingestion throttle and value gate.
type SystemConfig struct {
	MinBuildInterval time.Duration
	ValueThreshold   float64
}

// Transcript is the resolved conversation window IngestConversation
// extracts memories from.
type Transcript struct {
	ChatScope string
	UserScope string
	Messages  []chatmodel.Message
}

// System is the MemorySystem component: it wires together Extractor,
// Fusion, Retriever and Store into the two operations the rest of the
// codebase calls, IngestConversation and Retrieve.
type System struct {
	cfg       SystemConfig
	extractor *Extractor
	fusion    *Fusion
	retriever *Retriever
	store     *Store
	llm       llmprovider.Provider
	clk       clock.Source

	mu           sync.Mutex
	status       Status
	lastBuildAt  map[string]time.Time
}

func NewSystem(cfg SystemConfig, extractor *Extractor, fusion *Fusion, retriever *Retriever, store *Store, llm llmprovider.Provider, clk clock.Source) *System {
	return &System{
		cfg:         cfg,
		extractor:   extractor,
		fusion:      fusion,
		retriever:   retriever,
		store:       store,
		llm:         llm,
		clk:         clk,
		status:      StatusReady,
		lastBuildAt: map[string]time.Time{},
	}
}

func (s *System) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *System) setStatus(v Status) {
	s.mu.Lock()
	s.status = v
	s.mu.Unlock()
}

// IngestConversation runs the seven-step build pipeline: throttle,
// transcript resolution, value assessment, extract, fuse, persist,
// ready.
func (s *System) IngestConversation(ctx context.Context, t Transcript) error {
	s.mu.Lock()
	last, seen := s.lastBuildAt[t.ChatScope]
	if seen && s.clk.Now().Sub(last) < s.cfg.MinBuildInterval {
		s.mu.Unlock()
		logging.Log.WithField("chat_scope", t.ChatScope).Debug("memory system: ingestion throttled")
		return nil
	}
	s.lastBuildAt[t.ChatScope] = s.clk.Now()
	s.mu.Unlock()

	s.setStatus(StatusBuilding)
	defer s.setStatus(StatusReady)

	text := transcriptText(t)
	if text == "" {
		return nil
	}

	if s.llm != nil && s.cfg.ValueThreshold > 0 {
		valuable, err := s.assessValue(ctx, text)
		if err != nil {
			s.setStatus(StatusError)
			return err
		}
		if !valuable {
			return nil
		}
	}

	candidates, err := s.extractor.Extract(ctx, ExtractionInput{Text: text}, t.UserScope, t.ChatScope)
	if err != nil {
		s.setStatus(StatusError)
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	pool, err := s.candidatePool(ctx, t.UserScope, candidates)
	if err != nil {
		s.setStatus(StatusError)
		return err
	}

	for _, c := range candidates {
		merged, err := s.fusion.Fuse(ctx, c, pool)
		if err != nil {
			s.setStatus(StatusError)
			return err
		}
		if merged {
			continue
		}
		if err := s.store.Insert(ctx, c); err != nil {
			s.setStatus(StatusError)
			return err
		}
		pool = append(pool, c)
	}
	return nil
}

// candidatePool assembles the existing-memory candidates MemoryFusion
// compares against: every memory in the user scope (up to 100) unioned
// with a vector-search neighborhood (20) of the first candidate's
// embedding.
func (s *System) candidatePool(ctx context.Context, userScope string, candidates []chatmodel.MemoryChunk) ([]chatmodel.MemoryChunk, error) {
	bySubject, err := s.store.GetByFilter(ctx, map[string]any{"user_id": userScope}, 100)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 || len(candidates[0].Embedding) == 0 {
		return bySubject, nil
	}
	byVector, _, err := s.store.SearchSimilar(ctx, candidates[0].Embedding, 20, map[string]any{"user_id": userScope})
	if err != nil {
		return bySubject, nil
	}
	seen := map[string]struct{}{}
	out := make([]chatmodel.MemoryChunk, 0, len(bySubject)+len(byVector))
	for _, c := range append(bySubject, byVector...) {
		if _, ok := seen[c.MemoryID]; ok {
			continue
		}
		seen[c.MemoryID] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

func (s *System) assessValue(ctx context.Context, text string) (bool, error) {
	prompt := fmt.Sprintf("On a scale of 0 to 1, how much durable, memory-worthy information does this message contain? Respond with only a number.\n\n%s", text)
	out, ok, err := s.llm.Generate(ctx, prompt, llmprovider.Options{RequestType: "value_assessment", MaxTokens: 8})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	var score float64
	if _, err := fmt.Sscanf(strings.TrimSpace(out), "%f", &score); err != nil {
		return false, nil
	}
	return score >= s.cfg.ValueThreshold, nil
}

func transcriptText(t Transcript) string {
	var b strings.Builder
	for _, m := range t.Messages {
		b.WriteString(m.UserDisplayName)
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// Retrieve runs MemorySystem's three-step retrieval: normalize the
// caller's context string, optionally ask the LLM for a structured
// query plan, then delegate to the Retriever.
func (s *System) Retrieve(ctx context.Context, userID, contextText string) ([]chatmodel.MemoryChunk, error) {
	s.setStatus(StatusRetrieving)
	defer s.setStatus(StatusReady)

	normalized := normalizeContext(contextText)

	plan := QueryPlan{SemanticQuery: normalized}
	if s.llm != nil {
		if derived, ok := s.planFromLLM(ctx, normalized); ok {
			plan = derived
		}
	}

	return s.retriever.Retrieve(ctx, userID, plan, s.clk.Now())
}

// normalizeContext collapses runs of whitespace to single spaces and
// trims both ends.
func normalizeContext(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type llmQueryPlan struct {
	MemoryTypes      []string `json:"memory_types"`
	Subjects         []string `json:"subjects"`
	RequiredKeywords []string `json:"required_keywords"`
	SemanticQuery    string   `json:"semantic_query"`
	RecencyPreference float64 `json:"recency_preference"`
	Emphasis         string   `json:"emphasis"`
}

func (s *System) planFromLLM(ctx context.Context, contextText string) (QueryPlan, bool) {
	prompt := fmt.Sprintf(`Given this conversation context, produce a JSON retrieval plan:
{"memory_types":[...optional],"subjects":[...optional],"required_keywords":[...optional],"semantic_query":"...","recency_preference":0-1,"emphasis":"precision|recall|none"}

Context:
%s`, contextText)
	out, ok, err := s.llm.Generate(ctx, prompt, llmprovider.Options{RequestType: "query_plan", MaxTokens: 300})
	if err != nil || !ok {
		return QueryPlan{}, false
	}
	var parsed llmQueryPlan
	if err := json.Unmarshal([]byte(stripJSONFence(out)), &parsed); err != nil {
		return QueryPlan{}, false
	}
	plan := QueryPlan{
		Subjects:         parsed.Subjects,
		RequiredKeywords: parsed.RequiredKeywords,
		SemanticQuery:    parsed.SemanticQuery,
		RecencyPreference: parsed.RecencyPreference,
	}
	for _, t := range parsed.MemoryTypes {
		plan.MemoryTypes = append(plan.MemoryTypes, chatmodel.MemoryType(t))
	}
	switch parsed.Emphasis {
	case "precision":
		plan.Emphasis = EmphasisPrecision
	case "recall":
		plan.Emphasis = EmphasisRecall
	}
	if plan.SemanticQuery == "" {
		plan.SemanticQuery = contextText
	}
	return plan, true
}
