// Package conversation defines the conversation key and turn records and the
// helpers that derive and validate them.
package conversation

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Key binds a principal to a preset and a model for the life of a
// conversation. Only Saved and DeletedAt change after creation.
type Key struct {
	// Key is the opaque, unguessable conversation identifier.
	Key string `json:"conversation_key"`

	// UserID is the principal that owns the conversation.
	UserID string `json:"user_id"`

	// Preset is the name of the preset the conversation was issued with.
	Preset string `json:"preset"`

	// Model is the model identifier the provider router dispatches on.
	Model string `json:"model"`

	// Topic is the resolved preset instruction text.
	Topic string `json:"-"`

	// Title is a human readable label for listings.
	Title string `json:"title"`

	Saved     bool       `json:"saved"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"-"`
}

// Deleted reports whether the key was soft-deleted.
func (k *Key) Deleted() bool {
	return k.DeletedAt != nil
}

// Turn is one question/response exchange. The first turn of every
// conversation is the handshake that carries the preset instructions.
type Turn struct {
	ID              int64     `json:"id"`
	ConversationKey string    `json:"conversation_key"`
	Question        string    `json:"question"`
	Response        string    `json:"response"`
	Saved           bool      `json:"saved"`
	CreatedAt       time.Time `json:"created_at"`
}

// Answered reports whether the turn's response has been filled.
func (t *Turn) Answered() bool {
	return t.Response != ""
}

// keyEntropy is the number of random bytes mixed into every key.
const keyEntropy = 32

// NewKey derives a fresh conversation key. The key is the hex encoded
// SHA-256 of random bytes and the binding it was issued for; the binding
// only salts the hash; uniqueness comes from the random bytes.
func NewKey(userID, model, preset string) (string, error) {
	nonce := make([]byte, keyEntropy)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}

	h := sha256.New()
	h.Write(nonce)
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(preset))

	return hex.EncodeToString(h.Sum(nil)), nil
}

// DefaultTitle is the title given to a key issued without one, where n is
// the number of keys the principal already holds.
func DefaultTitle(n int) string {
	return fmt.Sprintf("Unnamed %d", n+1)
}
