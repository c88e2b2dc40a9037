// Package tokens estimates the prompt size of a reconstructed history so the
// cost of each replay is visible in logs and turn events.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/papercomputeco/parley/pkg/llm"
)

const (
	// DefaultEncoding is compatible with the OpenAI chat models and a fair
	// approximation for the other providers.
	DefaultEncoding = "cl100k_base"

	// per-message framing tokens (role markers, separators) and the priming
	// tokens of the assistant reply.
	messageOverhead = 4
	replyPriming    = 3
)

// Counter estimates the number of prompt tokens for a message sequence.
type Counter interface {
	Count(messages []llm.Message) int
}

// TiktokenCounter counts tokens with a tiktoken BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the given encoding. The BPE ranks are fetched on
// first use, so callers should treat an error as "counting unavailable".
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("get encoding %q: %w", encoding, err)
	}

	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the estimated prompt tokens for messages.
func (c *TiktokenCounter) Count(messages []llm.Message) int {
	total := replyPriming
	for _, m := range messages {
		total += messageOverhead
		total += len(c.enc.Encode(m.Role, nil, nil))
		total += len(c.enc.Encode(m.Content, nil, nil))
	}
	return total
}

// ApproxCounter estimates four bytes per token. It is used when no BPE
// encoding can be loaded.
type ApproxCounter struct{}

// Count returns the estimated prompt tokens for messages.
func (ApproxCounter) Count(messages []llm.Message) int {
	total := replyPriming
	for _, m := range messages {
		total += messageOverhead + (len(m.Role)+len(m.Content)+3)/4
	}
	return total
}
