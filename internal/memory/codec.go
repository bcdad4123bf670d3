package memory

import (
	"encoding/json"
	"fmt"
	"time"

	"mindloop/internal/chatmodel"
)

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// memoryRecord is the JSON shape stored verbatim in the vector-store
// payload's "memory_data" field, giving MemoryStore an exact round
// trip independent of how the rest of the payload's searchable fields
// are projected.
type memoryRecord struct {
	MemoryID        string                  `json:"memory_id"`
	UserScope       string                  `json:"user_scope"`
	ChatScope       string                  `json:"chat_scope"`
	Content         contentRecord           `json:"content"`
	Type            chatmodel.MemoryType    `json:"type"`
	Importance      int                     `json:"importance"`
	Confidence      int                     `json:"confidence"`
	Keywords        []string                `json:"keywords"`
	Tags            []string                `json:"tags"`
	Categories      []string                `json:"categories"`
	Embedding       []float32               `json:"embedding"`
	SemanticHash    string                  `json:"semantic_hash"`
	CreatedAtUnix   int64                   `json:"created_at"`
	LastAccessedUnix int64                  `json:"last_accessed"`
	LastModifiedUnix int64                  `json:"last_modified"`
	AccessCount     int                     `json:"access_count"`
	RelatedMemories []string                `json:"related_memories"`
	RelevanceScore  float64                 `json:"relevance_score"`
	Source          string                  `json:"source"`
	EmotionalContext string                 `json:"emotional_context"`
}

type contentRecord struct {
	Subjects   []string          `json:"subjects"`
	Predicate  string            `json:"predicate"`
	ObjectKind int               `json:"object_kind"`
	ObjectText string            `json:"object_text,omitempty"`
	ObjectMap  map[string]string `json:"object_map,omitempty"`
	Display    string            `json:"display"`
}

// ToRecord projects a MemoryChunk into the (document, metadata) shape
// the VectorStore contract expects: Document is the human-readable
// Display text, Metadata carries both the searchable projection
// (user_id/chat_id/memory_type/keywords/...) and the full "memory_data"
// JSON blob for exact round-trip reconstruction.
func ToRecord(m chatmodel.MemoryChunk) (document string, metadata map[string]any, err error) {
	rec := memoryRecord{
		MemoryID:  m.MemoryID,
		UserScope: m.UserScope,
		ChatScope: m.ChatScope,
		Content: contentRecord{
			Subjects:   m.Content.Subjects,
			Predicate:  m.Content.Predicate,
			ObjectKind: int(m.Content.ObjectKind),
			ObjectText: m.Content.ObjectText,
			ObjectMap:  m.Content.ObjectMap,
			Display:    m.Content.Display,
		},
		Type:             m.Type,
		Importance:       int(m.Importance),
		Confidence:       int(m.Confidence),
		Keywords:         m.Keywords,
		Tags:             m.Tags,
		Categories:       m.Categories,
		Embedding:        m.Embedding,
		SemanticHash:     m.SemanticHash,
		CreatedAtUnix:    m.CreatedAt.Unix(),
		LastAccessedUnix: m.LastAccessed.Unix(),
		LastModifiedUnix: m.LastModified.Unix(),
		AccessCount:      m.AccessCount,
		RelatedMemories:  m.RelatedMemories,
		RelevanceScore:   m.RelevanceScore,
		Source:           m.Metadata.Source,
		EmotionalContext: m.Metadata.EmotionalContext,
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return "", nil, fmt.Errorf("%w: marshal memory record: %v", chatmodel.ErrContract, err)
	}

	keywordsJSON, _ := json.Marshal(m.Keywords)
	meta := map[string]any{
		"user_id":          m.UserScope,
		"chat_id":          m.ChatScope,
		"memory_type":      string(m.Type),
		"keywords":         string(keywordsJSON),
		"importance":       fmt.Sprintf("%d", m.Importance),
		"confidence":       fmt.Sprintf("%d", m.Confidence),
		"timestamp":        fmt.Sprintf("%d", m.CreatedAt.Unix()),
		"access_count":     fmt.Sprintf("%d", m.AccessCount),
		"last_access_time": fmt.Sprintf("%d", m.LastAccessed.Unix()),
		"source":           m.Metadata.Source,
		"memory_data":      string(blob),
	}
	return m.Content.Display, meta, nil
}

// FromRecord reconstructs a MemoryChunk from a VectorStore hit's
// metadata, reading the "memory_data" blob rather than re-deriving
// fields from the searchable projection, so the round trip is exact
// modulo float tolerance on Embedding.
func FromRecord(id string, metadata map[string]any) (chatmodel.MemoryChunk, error) {
	raw, _ := metadata["memory_data"].(string)
	if raw == "" {
		return chatmodel.MemoryChunk{}, fmt.Errorf("%w: memory record missing memory_data", chatmodel.ErrContract)
	}
	var rec memoryRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return chatmodel.MemoryChunk{}, fmt.Errorf("%w: unmarshal memory record: %v", chatmodel.ErrParse, err)
	}

	return chatmodel.MemoryChunk{
		MemoryID:  id,
		UserScope: rec.UserScope,
		ChatScope: rec.ChatScope,
		Content: chatmodel.ContentStructure{
			Subjects:   rec.Content.Subjects,
			Predicate:  rec.Content.Predicate,
			ObjectKind: chatmodel.ObjectKind(rec.Content.ObjectKind),
			ObjectText: rec.Content.ObjectText,
			ObjectMap:  rec.Content.ObjectMap,
			Display:    rec.Content.Display,
		},
		Type:            rec.Type,
		Importance:      chatmodel.ImportanceLevel(rec.Importance),
		Confidence:      chatmodel.ConfidenceLevel(rec.Confidence),
		Keywords:        rec.Keywords,
		Tags:            rec.Tags,
		Categories:      rec.Categories,
		Embedding:       rec.Embedding,
		SemanticHash:    rec.SemanticHash,
		CreatedAt:       unixTime(rec.CreatedAtUnix),
		LastAccessed:    unixTime(rec.LastAccessedUnix),
		LastModified:    unixTime(rec.LastModifiedUnix),
		AccessCount:     rec.AccessCount,
		RelatedMemories: rec.RelatedMemories,
		RelevanceScore:  rec.RelevanceScore,
		Metadata: chatmodel.MemoryMetadata{
			Source:           rec.Source,
			EmotionalContext: rec.EmotionalContext,
		},
	}, nil
}
