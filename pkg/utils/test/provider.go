package testutils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/parley/pkg/llm"
)

// SentMessage records one SendMessage call.
type SentMessage struct {
	History    []llm.Message
	NewMessage string
}

// MockProvider is a test provider that records every call and answers with
// a canned or computed reply.
type MockProvider struct {
	// Reply is returned when ReplyFunc is nil. Empty echoes the new message.
	Reply string

	// ReplyFunc computes the reply from the new message.
	ReplyFunc func(newMessage string) string

	// Err makes every call fail.
	Err error

	// Delay holds every call for the duration, honouring ctx.
	Delay time.Duration

	mu       sync.Mutex
	calls    []SentMessage
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) SendMessage(ctx context.Context, history []llm.Message, newMessage string) (string, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, SentMessage{
		History:    append([]llm.Message(nil), history...),
		NewMessage: newMessage,
	})
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", fmt.Errorf("mock provider: %w", ctx.Err())
		}
	}

	if m.Err != nil {
		return "", m.Err
	}

	switch {
	case m.ReplyFunc != nil:
		return m.ReplyFunc(newMessage), nil
	case m.Reply != "":
		return m.Reply, nil
	}
	return "echo: " + newMessage, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockProvider) Calls() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.calls...)
}

// MaxConcurrent returns the highest number of calls observed in flight at once.
func (m *MockProvider) MaxConcurrent() int {
	return int(m.maxSeen.Load())
}

// ErrMockProvider is a ready-made upstream failure.
var ErrMockProvider = errors.New("mock upstream failure")
