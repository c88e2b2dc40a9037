// Package llm holds the provider-agnostic chat types shared by the provider
// adapters, the router and the orchestrator.
package llm

import "errors"

// ErrEmptyReply is returned by provider adapters when the upstream answered
// without any content to hand back.
var ErrEmptyReply = errors.New("provider returned no content")

// Message roles understood by every provider adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single role-tagged entry in a reconstructed conversation.
// Content is plain text: questions are serialized before they reach this layer.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // Serialized text content
}

// NewTextMessage creates a message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: text,
	}
}

// GetText returns the message text.
func (m *Message) GetText() string {
	return m.Content
}

// ErrorResponse is the body returned by the API for any failed request.
// Kind is a stable error identifier; Data is always empty on failure.
type ErrorResponse struct {
	Error string         `json:"error"`
	Kind  string         `json:"kind,omitempty"`
	Data  map[string]any `json:"data"`
}
