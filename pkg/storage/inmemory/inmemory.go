// Package inmemory provides a map-backed storage driver for tests and
// single-process deployments.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/papercomputeco/parley/pkg/conversation"
	"github.com/papercomputeco/parley/pkg/storage"
	"github.com/papercomputeco/parley/pkg/window"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding every map below
	mu sync.RWMutex

	// keys maps the conversation key to its record
	keys map[string]*conversation.Key

	// turns maps turn IDs to turns
	turns map[int64]*conversation.Turn

	// byKey indexes turn IDs per conversation key in creation order
	byKey map[string][]int64

	nextID int64

	// now is the clock, replaceable in tests
	now func() time.Time
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		keys:  make(map[string]*conversation.Key),
		turns: make(map[int64]*conversation.Turn),
		byKey: make(map[string][]int64),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateKey stores a new conversation key.
func (s *Driver) CreateKey(_ context.Context, key *conversation.Key) error {
	if key == nil || key.Key == "" {
		return errors.New("cannot store empty conversation key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key.Key]; ok {
		return errors.New("conversation key already exists")
	}

	stored := *key
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	key.CreatedAt = stored.CreatedAt
	s.keys[key.Key] = &stored
	return nil
}

// liveKey returns the stored key if it exists and is not soft-deleted.
// Callers must hold mu.
func (s *Driver) liveKey(key string) (*conversation.Key, error) {
	k, ok := s.keys[key]
	if !ok || k.Deleted() {
		return nil, storage.NotFoundError{Resource: "key", ID: key}
	}
	return k, nil
}

// GetKey retrieves a live conversation key.
func (s *Driver) GetKey(_ context.Context, key string) (*conversation.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, err := s.liveKey(key)
	if err != nil {
		return nil, err
	}

	out := *k
	return &out, nil
}

// ListKeys returns the live keys owned by userID, oldest first.
func (s *Driver) ListKeys(_ context.Context, userID string) ([]*conversation.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []*conversation.Key
	for _, k := range s.keys {
		if k.UserID != userID || k.Deleted() {
			continue
		}
		out := *k
		keys = append(keys, &out)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].Key < keys[j].Key
		}
		return keys[i].CreatedAt.Before(keys[j].CreatedAt)
	})
	return keys, nil
}

// CountKeys returns the number of live keys owned by userID.
func (s *Driver) CountKeys(ctx context.Context, userID string) (int, error) {
	keys, err := s.ListKeys(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// SetSaved toggles the saved flag on a key and on all of its turns.
func (s *Driver) SetSaved(_ context.Context, key string, saved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, err := s.liveKey(key)
	if err != nil {
		return err
	}

	k.Saved = saved
	for _, id := range s.byKey[key] {
		s.turns[id].Saved = saved
	}
	return nil
}

// DeleteKey soft-deletes a key.
func (s *Driver) DeleteKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, err := s.liveKey(key)
	if err != nil {
		return err
	}

	now := s.now()
	k.DeletedAt = &now
	return nil
}

// CreateTurn appends a turn to a live key.
func (s *Driver) CreateTurn(_ context.Context, turn *conversation.Turn) (*conversation.Turn, error) {
	if turn == nil {
		return nil, errors.New("cannot store nil turn")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.liveKey(turn.ConversationKey); err != nil {
		return nil, err
	}

	s.nextID++
	stored := *turn
	stored.ID = s.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}

	s.turns[stored.ID] = &stored
	s.byKey[stored.ConversationKey] = append(s.byKey[stored.ConversationKey], stored.ID)

	out := stored
	return &out, nil
}

// FillResponse sets the response of a pending turn exactly once.
func (s *Driver) FillResponse(_ context.Context, id int64, response string) error {
	if response == "" {
		return errors.New("cannot fill turn with an empty response")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.turns[id]
	if !ok {
		return storage.NotFoundError{Resource: "turn", ID: strconv.FormatInt(id, 10)}
	}
	if t.Answered() {
		return storage.ErrResponseAlreadySet
	}

	t.Response = response
	return nil
}

// DeleteTurn removes a turn.
func (s *Driver) DeleteTurn(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.turns[id]
	if !ok {
		return storage.NotFoundError{Resource: "turn", ID: strconv.FormatInt(id, 10)}
	}

	ids := s.byKey[t.ConversationKey]
	for i, tid := range ids {
		if tid == id {
			s.byKey[t.ConversationKey] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	delete(s.turns, id)
	return nil
}

// ordered returns copies of the key's turns ordered by (created_at, id).
// Callers must hold mu.
func (s *Driver) ordered(key string, answeredOnly bool) []*conversation.Turn {
	turns := make([]*conversation.Turn, 0, len(s.byKey[key]))
	for _, id := range s.byKey[key] {
		t := s.turns[id]
		if answeredOnly && !t.Answered() {
			continue
		}
		out := *t
		turns = append(turns, &out)
	}

	sort.SliceStable(turns, func(i, j int) bool {
		if turns[i].CreatedAt.Equal(turns[j].CreatedAt) {
			return turns[i].ID < turns[j].ID
		}
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})
	return turns
}

// Turns returns every turn of a live key.
func (s *Driver) Turns(_ context.Context, key string) ([]*conversation.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.liveKey(key); err != nil {
		return nil, err
	}
	return s.ordered(key, false), nil
}

// WindowTurns returns the windowed answered turns of a live key.
func (s *Driver) WindowTurns(_ context.Context, key string, keep int) ([]*conversation.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.liveKey(key); err != nil {
		return nil, err
	}
	return window.Window(s.ordered(key, true), keep), nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}
