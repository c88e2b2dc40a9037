package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	sessionFile = "session.json"
)

// SessionState is the conversation "parley chat" resumes by default.
type SessionState struct {
	// ConversationKey is the key issued for the session.
	ConversationKey string `json:"conversation_key"`

	// Preset is the preset the key was issued for.
	Preset string `json:"preset"`

	// APITarget is the server that issued the key. A session is only
	// resumed against the same server.
	APITarget string `json:"api_target"`

	// Title is the conversation title.
	Title string `json:"title,omitempty"`

	// UpdatedAt is when the session was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadSessionState loads the session state from a target .parley/session.json.
// Returns nil, nil if no session exists.
// If overrideDir is non-empty, it is used instead of the default ~/.parley/ location.
func (m *Manager) LoadSessionState(overrideDir string) (*SessionState, error) {
	path, err := m.Path(overrideDir, sessionFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	state := &SessionState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}

	return state, nil
}

// SaveSession persists the session state to a target .parley/session.json.
// The file holds a live conversation key, so it is only readable by the owner.
func (m *Manager) SaveSession(state *SessionState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil session state")
	}

	path, err := m.Path(overrideDir, sessionFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}

	return nil
}

// ClearSession removes the session state file so the next chat issues a
// new conversation. Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearSession(overrideDir string) error {
	path, err := m.Path(overrideDir, sessionFile)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing session state: %w", err)
	}

	return nil
}
