// Package storage defines the conversation store contract shared by the
// in-memory, SQLite and PostgreSQL drivers.
package storage

import (
	"context"

	"github.com/papercomputeco/parley/pkg/conversation"
)

// Driver defines the interface for persisting conversation keys and turns.
// Soft-deleted keys are invisible to every read: drivers report them as
// NotFoundError exactly like keys that never existed.
type Driver interface {
	// CreateKey stores a new conversation key. CreatedAt is set by the driver
	// when zero.
	CreateKey(ctx context.Context, key *conversation.Key) error

	// GetKey retrieves a live conversation key.
	GetKey(ctx context.Context, key string) (*conversation.Key, error)

	// ListKeys returns the live keys owned by userID, oldest first.
	ListKeys(ctx context.Context, userID string) ([]*conversation.Key, error)

	// CountKeys returns the number of live keys owned by userID.
	CountKeys(ctx context.Context, userID string) (int, error)

	// SetSaved toggles the saved flag on a key and on all of its turns.
	SetSaved(ctx context.Context, key string, saved bool) error

	// DeleteKey soft-deletes a key.
	DeleteKey(ctx context.Context, key string) error

	// CreateTurn appends a turn to a live key and returns it with its ID and
	// CreatedAt assigned. IDs increase monotonically.
	CreateTurn(ctx context.Context, turn *conversation.Turn) (*conversation.Turn, error)

	// FillResponse sets the response of a pending turn. A turn is filled at
	// most once: a second fill returns ErrResponseAlreadySet.
	FillResponse(ctx context.Context, id int64, response string) error

	// DeleteTurn removes a turn.
	DeleteTurn(ctx context.Context, id int64) error

	// Turns returns every turn of a live key ordered by (created_at, id).
	Turns(ctx context.Context, key string) ([]*conversation.Turn, error)

	// WindowTurns returns the first keep and last keep answered turns of a
	// live key, ordered by (created_at, id). Pending turns are excluded.
	WindowTurns(ctx context.Context, key string, keep int) ([]*conversation.Turn, error)

	// Close closes the store and releases any resources.
	Close() error
}
