// Package eventstream defines the turn events emitted after every answered
// question and the publisher contract transports implement.
package eventstream

import "context"

// Publisher publishes turn events to an event stream backend.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnCompletedEvent) error
	Close() error
}
