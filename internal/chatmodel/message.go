// Package chatmodel holds the data types shared across the scheduling
// and memory subsystems: inbound messages, per-stream context, memory
// chunks, and the dispatcher's own task/distribution bookkeeping.
package chatmodel

import "time"

// ChatType is the closed set of conversation shapes a stream can have.
type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

// Message is a single inbound chat message as ingested by the
// MessageManager.
type Message struct {
	ID              string
	StreamID        string
	Platform        string
	UserID          string
	UserDisplayName string
	GroupID         string
	GroupName       string
	Timestamp       time.Time
	Text            string
	IsMention       bool
	ReplyTo         string
	AdditionalMeta  map[string]any
}

// InboundEnvelope is the wire shape MessageManager.Ingest accepts.
// The stream id travels only under the "stream_id" key. This package
// does no decoding, so an unknown or misspelled key such as "stram_id"
// is not detected here.
type InboundEnvelope struct {
	Platform        string         `json:"platform"`
	StreamID        string         `json:"stream_id"`
	UserID          string         `json:"user_id"`
	UserDisplayName string         `json:"user_display_name"`
	GroupID         string         `json:"group_id,omitempty"`
	GroupName       string         `json:"group_name,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	Text            string         `json:"text"`
	IsMention       bool           `json:"is_mention"`
	ReplyTo         string         `json:"reply_to,omitempty"`
	AdditionalMeta  map[string]any `json:"additional_meta,omitempty"`
}

// ToMessage converts a validated envelope into the internal Message
// shape, assigning a fresh ID.
func (e InboundEnvelope) ToMessage(id string) Message {
	return Message{
		ID:              id,
		StreamID:        e.StreamID,
		Platform:        e.Platform,
		UserID:          e.UserID,
		UserDisplayName: e.UserDisplayName,
		GroupID:         e.GroupID,
		GroupName:       e.GroupName,
		Timestamp:       e.Timestamp,
		Text:            e.Text,
		IsMention:       e.IsMention,
		ReplyTo:         e.ReplyTo,
		AdditionalMeta:  e.AdditionalMeta,
	}
}
