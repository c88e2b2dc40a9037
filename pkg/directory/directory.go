// Package directory looks up the profile attributes a preset is expanded with.
// Profile management lives outside this service.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a user id is unknown.
var ErrNotFound = errors.New("user not found")

// User is the subset of a profile the conversation service needs.
type User struct {
	ID            string `json:"id" toml:"id"`
	Fullname      string `json:"fullname" toml:"fullname"`
	PreferredLang string `json:"preferred_lang" toml:"preferred_lang"`
}

// Directory resolves user ids to profiles.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*User, error)
}

// Static is an in-memory Directory.
type Static struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewStatic creates a directory seeded with users.
func NewStatic(users ...User) *Static {
	d := &Static{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Put adds or replaces a user.
func (d *Static) Put(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// Lookup returns a copy of the user's profile.
func (d *Static) Lookup(_ context.Context, userID string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, userID)
	}
	return &u, nil
}
