package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind discriminates the variants of a ContentItem.
type ContentKind string

const (
	ContentKindText       ContentKind = "text"
	ContentKindFile       ContentKind = "file"
	ContentKindToolCall   ContentKind = "tool_call"
	ContentKindToolResult ContentKind = "tool_result"
)

// ContentItem is one ordered unit of message content. Exactly one of the
// variant fields is populated, selected by Kind.
type ContentItem struct {
	Kind ContentKind `json:"kind"`

	Text       string           `json:"text,omitempty"`
	File       *File            `json:"file,omitempty"`
	ToolCall   *ToolCallRequest `json:"tool_call,omitempty"`
	ToolResult *ToolCallResult  `json:"tool_result,omitempty"`
}

// Message is the vendor-agnostic representation of a single chat turn.
// Content ordering is significant: it participates in fingerprinting and
// must be preserved when a conversation is replayed.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentItem `json:"content"`
}

// TextItem creates a text content item.
func TextItem(text string) ContentItem {
	return ContentItem{Kind: ContentKindText, Text: text}
}

// FileItem creates a file content item.
func FileItem(f *File) ContentItem {
	return ContentItem{Kind: ContentKindFile, File: f}
}

// ToolCallItem creates a tool-call request content item.
func ToolCallItem(tc *ToolCallRequest) ContentItem {
	return ContentItem{Kind: ContentKindToolCall, ToolCall: tc}
}

// ToolResultItem creates a tool-call result content item.
func ToolResultItem(tr *ToolCallResult) ContentItem {
	return ContentItem{Kind: ContentKindToolResult, ToolResult: tr}
}

// TextMessage creates a message with a single text item.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentItem{TextItem(text)}}
}

// Text concatenates all text items of the message in order.
func (m *Message) Text() string {
	var out string
	for _, item := range m.Content {
		if item.Kind == ContentKindText {
			out += item.Text
		}
	}
	return out
}

// Fingerprint returns a stable hash over a message list, preserving role and
// content-item ordering. Used as a cache/threading key.
func Fingerprint(messages []Message) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, m := range messages {
		// Encoding errors are not possible for these types.
		_ = enc.Encode(m)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateToolPairing checks that every tool result answers a prior tool-call
// request in the same conversation, and that no request is left unanswered
// before newer user content is issued.
func ValidateToolPairing(messages []Message) error {
	pending := map[string]bool{}
	for _, m := range messages {
		for _, item := range m.Content {
			switch item.Kind {
			case ContentKindToolCall:
				pending[item.ToolCall.ID] = true
			case ContentKindToolResult:
				if !pending[item.ToolResult.ID] {
					return NewProviderError(CodeBadRequest,
						"tool result "+item.ToolResult.ID+" does not answer any prior tool call")
				}
				delete(pending, item.ToolResult.ID)
			}
		}
		if m.Role == RoleUser && len(pending) > 0 {
			for id := range pending {
				return NewProviderError(CodeBadRequest,
					"tool call "+id+" is unanswered; results must precede new user content")
			}
		}
	}
	return nil
}
