package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after a turn's response is persisted.
	EventTypeTurnCompleted = "parley.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for an answered turn.
type TurnCompletedEvent struct {
	SchemaVersion int              `json:"schema_version"`
	EventType     string           `json:"event_type"`
	EventID       string           `json:"event_id"`
	EmittedAt     time.Time        `json:"emitted_at"`
	Source        EventSource      `json:"source"`
	Conversation  ConversationMeta `json:"conversation"`
	RequestMeta   TurnRequestMeta  `json:"request_meta"`
	Turn          TurnPayload      `json:"turn"`
}

// EventSource identifies which model and adapter answered the turn.
type EventSource struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	UpstreamModel string `json:"upstream_model,omitempty"`
	Preset        string `json:"preset,omitempty"`
}

// ConversationMeta identifies the conversation the turn belongs to.
type ConversationMeta struct {
	Key    string `json:"conversation_key"`
	UserID string `json:"user_id"`
	TurnID int64  `json:"turn_id"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMs   int64     `json:"duration_ms"`
	PromptTokens int       `json:"prompt_tokens,omitempty"`
	HistoryLen   int       `json:"history_len"`
	Structured   bool      `json:"structured"`
}

// TurnPayload is the exchange itself.
type TurnPayload struct {
	Question string `json:"question"`
	Response string `json:"response"`
}

// NewTurnCompletedEvent stamps a fresh event id, type and schema version.
func NewTurnCompletedEvent(now time.Time) *TurnCompletedEvent {
	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     now.UTC(),
	}
}
