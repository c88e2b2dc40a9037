// Package nop provides an eventstream publisher that drops every event.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/parley/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used when no event stream is
// configured. It only counts what it dropped.
type Publisher struct {
	dropped atomic.Int64
}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTurn validates input and otherwise discards the event.
func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	p.dropped.Add(1)
	return nil
}

// Dropped returns the number of events discarded so far.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
