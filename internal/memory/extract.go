package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"mindloop/internal/chatmodel"
	"mindloop/internal/clock"
	"mindloop/internal/embedprovider"
	"mindloop/internal/llmprovider"
	"mindloop/internal/logging"
)

// Strategy is the extraction path MemoryExtractor selects per input.
type Strategy int

const (
	StrategyRuleOnly Strategy = iota
	StrategyHybrid
	StrategyLLM
)

// ExtractionInput is one unit of text MemoryExtractor considers.
type ExtractionInput struct {
	Text          string
	IsCommand     bool
	IsSystem      bool
	StructuredData map[string]any
	Entities      []string
	Keywords      []string
}

// SelectStrategy chooses the extraction path for an input.
func SelectStrategy(in ExtractionInput) Strategy {
	switch {
	case len(in.Text) < 50, in.IsCommand, in.IsSystem:
		return StrategyRuleOnly
	case len(in.StructuredData) > 0, len(in.Entities) > 0, len(in.Keywords) > 0:
		return StrategyHybrid
	default:
		return StrategyLLM
	}
}

// Extractor is the MemoryExtractor component.
type Extractor struct {
	llm   llmprovider.Provider
	embed embedprovider.Provider
	clk   clock.Source
}

func NewExtractor(llm llmprovider.Provider, embed embedprovider.Provider, clk clock.Source) *Extractor {
	return &Extractor{llm: llm, embed: embed, clk: clk}
}

var (
	reNamed      = regexp.MustCompile(`(?i)(?:my name is|i'm|i am called)\s+([A-Z][\w'-]+)`)
	reAge        = regexp.MustCompile(`(?i)i(?:'m| am)\s+(\d{1,3})\s*(?:years old|yo)\b`)
	reProfession = regexp.MustCompile(`(?i)i(?:'m| am)\s+(?:a|an)\s+([a-z][\w\s]{2,30}?)\b(?:\.|,|$)`)
	reLocation   = regexp.MustCompile(`(?i)i live in\s+([A-Z][\w\s]+)`)
	rePhone      = regexp.MustCompile(`\+?\d[\d\-\s]{7,14}\d`)
	reEmail      = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	rePreference = regexp.MustCompile(`(?i)\b(i like|i love|i prefer|i hate|i dislike|i enjoy)\b\s+(.+)`)
	reEvent      = regexp.MustCompile(`(?i)\b(birthday|anniversary|meeting|wedding|graduation|deadline)\b`)
)

// ExtractRule runs only the regex-based extractors. It never calls the
// LLM or embedding provider.
func ExtractRule(in ExtractionInput, now time.Time) []chatmodel.MemoryChunk {
	var out []chatmodel.MemoryChunk
	text := in.Text

	add := func(mtype chatmodel.MemoryType, subj []string, pred, obj, display string, conf chatmodel.ConfidenceLevel) {
		out = append(out, chatmodel.MemoryChunk{
			Type:       mtype,
			Importance: chatmodel.Minor,
			Confidence: conf,
			Content: chatmodel.ContentStructure{
				Subjects:   subj,
				Predicate:  pred,
				ObjectKind: chatmodel.ObjectString,
				ObjectText: obj,
				Display:    display,
			},
			CreatedAt: now,
		})
	}

	if m := reNamed.FindStringSubmatch(text); len(m) == 2 {
		add(chatmodel.MemoryPersonalFact, []string{"user"}, "is_named", m[1], fmt.Sprintf("User's name is %s", m[1]), chatmodel.ConfidenceHigh)
	}
	if m := reAge.FindStringSubmatch(text); len(m) == 2 {
		add(chatmodel.MemoryPersonalFact, []string{"user"}, "has_age", m[1], fmt.Sprintf("User is %s years old", m[1]), chatmodel.ConfidenceHigh)
	}
	if m := reProfession.FindStringSubmatch(text); len(m) == 2 {
		prof := strings.TrimSpace(m[1])
		add(chatmodel.MemoryPersonalFact, []string{"user"}, "has_profession", prof, fmt.Sprintf("User works as %s", prof), chatmodel.ConfidenceModerate)
	}
	if m := reLocation.FindStringSubmatch(text); len(m) == 2 {
		add(chatmodel.MemoryPersonalFact, []string{"user"}, "lives_in", strings.TrimSpace(m[1]), fmt.Sprintf("User lives in %s", strings.TrimSpace(m[1])), chatmodel.ConfidenceModerate)
	}
	if m := rePhone.FindString(text); m != "" {
		add(chatmodel.MemoryPersonalFact, []string{"user"}, "has_phone", m, "User shared a phone number", chatmodel.ConfidenceModerate)
	}
	if m := reEmail.FindString(text); m != "" {
		add(chatmodel.MemoryPersonalFact, []string{"user"}, "has_email", m, "User shared an email address", chatmodel.ConfidenceModerate)
	}
	if m := rePreference.FindStringSubmatch(text); len(m) == 3 {
		obj := strings.TrimSpace(strings.TrimRight(m[2], ".!?"))
		add(chatmodel.MemoryPreference, []string{"user"}, strings.ToLower(strings.ReplaceAll(m[1], " ", "_")), obj,
			fmt.Sprintf("User %s %s", m[1], obj), chatmodel.ConfidenceModerate)
	}
	if reEvent.MatchString(text) {
		add(chatmodel.MemoryEvent, []string{"user"}, "mentions_event", reEvent.FindString(text), text, chatmodel.ConfidenceLow)
	}

	return out
}

// llmExtractionResult mirrors the LLM extraction prompt's response
// schema: memories:[{type,display,subject,predicate,object,keywords,
// importance,confidence,reasoning}].
type llmExtractionResult struct {
	Memories []struct {
		Type       string   `json:"type"`
		Display    string   `json:"display"`
		Subject    []string `json:"subject"`
		Predicate  string   `json:"predicate"`
		Object     string   `json:"object"`
		Keywords   []string `json:"keywords"`
		Importance int      `json:"importance"`
		Confidence int      `json:"confidence"`
		Reasoning  string   `json:"reasoning"`
	} `json:"memories"`
}

const llmExtractPrompt = `Extract structured memories from the following message. Respond with JSON only, matching this shape:
{"memories":[{"type":"personal_fact|event|preference|opinion|relationship|emotion|knowledge|skill|goal|experience|contextual","display":"...","subject":["..."],"predicate":"...","object":"...","keywords":["..."],"importance":1-4,"confidence":1-4,"reasoning":"..."}]}

Message:
%s`

// ExtractLLM runs the LLM-driven extraction path, tolerant of
// Markdown-fenced or slightly malformed JSON the way Planner's own
// parser is.
func (e *Extractor) ExtractLLM(ctx context.Context, in ExtractionInput) ([]chatmodel.MemoryChunk, error) {
	text, ok, err := e.llm.Generate(ctx, fmt.Sprintf(llmExtractPrompt, in.Text), llmprovider.Options{
		Temperature: 0.2,
		MaxTokens:   800,
		RequestType: "extract",
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var parsed llmExtractionResult
	if err := json.Unmarshal([]byte(stripJSONFence(text)), &parsed); err != nil {
		logging.Log.WithError(err).Debug("memory extract: llm output was not parseable JSON")
		return nil, fmt.Errorf("%w: extract llm output: %v", chatmodel.ErrParse, err)
	}

	now := e.clk.Now()
	out := make([]chatmodel.MemoryChunk, 0, len(parsed.Memories))
	for _, m := range parsed.Memories {
		out = append(out, chatmodel.MemoryChunk{
			Type:       chatmodel.MemoryType(m.Type),
			Importance: chatmodel.ImportanceLevel(clampInt(m.Importance, 1, 4)),
			Confidence: chatmodel.ConfidenceLevel(clampInt(m.Confidence, 1, 4)),
			Keywords:   m.Keywords,
			Content: chatmodel.ContentStructure{
				Subjects:   m.Subject,
				Predicate:  m.Predicate,
				ObjectKind: chatmodel.ObjectString,
				ObjectText: m.Object,
				Display:    m.Display,
			},
			CreatedAt: now,
		})
	}
	return out, nil
}

// Extract runs the full pipeline for one input: strategy selection,
// extraction, time normalization, auto-tagging, validation, embedding,
// semantic hashing, and ID assignment.
func (e *Extractor) Extract(ctx context.Context, in ExtractionInput, userScope, chatScope string) ([]chatmodel.MemoryChunk, error) {
	now := e.clk.Now()
	strategy := SelectStrategy(in)

	var candidates []chatmodel.MemoryChunk
	switch strategy {
	case StrategyRuleOnly:
		candidates = ExtractRule(in, now)
	case StrategyHybrid:
		candidates = ExtractRule(in, now)
		if llmOut, err := e.ExtractLLM(ctx, in); err == nil {
			candidates = append(candidates, llmOut...)
		}
	case StrategyLLM:
		llmOut, err := e.ExtractLLM(ctx, in)
		if err != nil {
			return nil, err
		}
		candidates = llmOut
	}

	out := make([]chatmodel.MemoryChunk, 0, len(candidates))
	for _, m := range candidates {
		m.Content.Display = normalizeRelativeTime(m.Content.Display, now)
		m.Content.Predicate = normalizeRelativeTime(m.Content.Predicate, now)
		m.Content.ObjectText = normalizeRelativeTime(m.Content.ObjectText, now)
		for i, s := range m.Content.Subjects {
			m.Content.Subjects[i] = normalizeRelativeTime(s, now)
		}
		m.Tags = autoTags(m)
		if !validMemory(m) {
			continue
		}

		m.UserScope = userScope
		m.ChatScope = chatScope
		m.CreatedAt = now
		m.LastAccessed = now
		m.LastModified = now
		m.MemoryID = uuid.NewString()

		if e.embed != nil {
			emb, err := e.embed.Embed(ctx, m.Content.Display)
			if err == nil {
				m.Embedding = emb
			}
		}
		m.SemanticHash = chatmodel.ComputeSemanticHash(m.Content, m.Embedding)
		out = append(out, m)
	}
	return out, nil
}

// validMemory drops memories with an empty subject or predicate,
// display text outside [5,500] characters, or Confidence at the Low
// level.
func validMemory(m chatmodel.MemoryChunk) bool {
	if len(m.Content.Subjects) == 0 || m.Content.Predicate == "" {
		return false
	}
	if l := utf8.RuneCountInString(m.Content.Display); l < 5 || l > 500 {
		return false
	}
	if m.Confidence == chatmodel.ConfidenceLow {
		return false
	}
	return true
}

func autoTags(m chatmodel.MemoryChunk) []string {
	return append(append([]string{}, m.Tags...), string(m.Type))
}

var relativeTimeTokens = map[string]int{
	"today":     0,
	"今天":        0,
	"yesterday": -1,
	"昨天":        -1,
	"tomorrow":  1,
	"明天":        1,
	"next week": 7,
	"下周":        7,
	"next month": 30,
	"下个月":       30,
}

// normalizeRelativeTime rewrites relative-date tokens (English and
// Chinese) into absolute ISO dates anchored at now.
func normalizeRelativeTime(text string, now time.Time) string {
	for token, deltaDays := range relativeTimeTokens {
		if !strings.Contains(strings.ToLower(text), token) {
			continue
		}
		abs := now.AddDate(0, 0, deltaDays).Format("2006-01-02")
		text = replaceCaseInsensitive(text, token, abs)
	}
	return text
}

func replaceCaseInsensitive(text, token, repl string) string {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(token))
	if idx < 0 {
		return text
	}
	return text[:idx] + repl + text[idx+len(token):]
}

func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if start := strings.IndexByte(s, '{'); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexByte(s, '}'); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
