// Package provider defines the chat-completion adapter contract and the
// registry of adapter kinds.
package provider

import (
	"context"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Provider is a stateless chat-completion adapter. Implementations hold no
// conversation state: the full history is replayed on every call, which keeps
// a single instance safe for concurrent use across conversations.
type Provider interface {
	// Name returns the canonical adapter kind (e.g., "openai", "anthropic", "ollama", "langchain")
	Name() string

	// SendMessage sends history followed by newMessage as a user entry and
	// returns the assistant's raw reply text.
	SendMessage(ctx context.Context, history []llm.Message, newMessage string) (string, error)
}
