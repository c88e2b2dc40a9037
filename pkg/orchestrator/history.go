package orchestrator

import (
	"context"
	"fmt"

	"github.com/papercomputeco/parley/pkg/conversation"
	"github.com/papercomputeco/parley/pkg/storage"
)

// History returns the turns of a conversation ordered oldest first. With
// windowed set it returns the same answered-turn window a question replays.
func (o *Orchestrator) History(ctx context.Context, key, userID string, windowed bool) ([]*conversation.Turn, error) {
	k, err := o.authorizeKey(ctx, key, userID)
	if err != nil {
		return nil, err
	}

	var turns []*conversation.Turn
	if windowed {
		turns, err = o.driver.WindowTurns(ctx, k.Key, o.WindowSize())
	} else {
		turns, err = o.driver.Turns(ctx, k.Key)
	}
	if err != nil {
		return nil, o.storeError("loading history", err)
	}
	return turns, nil
}

// List returns the principal's live conversation keys, oldest first.
func (o *Orchestrator) List(ctx context.Context, userID string) ([]*conversation.Key, error) {
	owner, err := principal(ctx, userID)
	if err != nil {
		return nil, err
	}

	keys, err := o.driver.ListKeys(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing conversation keys: %w", err)
	}
	return keys, nil
}

// Delete soft-deletes a conversation. The key behaves as unknown afterwards.
func (o *Orchestrator) Delete(ctx context.Context, key, userID string) error {
	k, err := o.authorizeKey(ctx, key, userID)
	if err != nil {
		return err
	}

	if err := o.driver.DeleteKey(ctx, k.Key); err != nil {
		return o.storeError("deleting conversation key", err)
	}
	return nil
}

// Save marks a conversation and all of its turns as saved, or unsaved.
func (o *Orchestrator) Save(ctx context.Context, key, userID string, saved bool) error {
	k, err := o.authorizeKey(ctx, key, userID)
	if err != nil {
		return err
	}

	if err := o.driver.SetSaved(ctx, k.Key, saved); err != nil {
		return o.storeError("saving conversation key", err)
	}
	return nil
}

// storeError maps a key that vanished between the ownership check and the
// write (a concurrent delete) to an invalid key.
func (o *Orchestrator) storeError(op string, err error) error {
	if storage.IsNotFound(err) {
		return fmt.Errorf("%w: %w", ErrInvalidConversationKey, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
