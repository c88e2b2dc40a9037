package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/contract"
	"github.com/papercomputeco/parley/pkg/conversation"
	"github.com/papercomputeco/parley/pkg/eventstream"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/router"
	"github.com/papercomputeco/parley/pkg/storage"
)

// AskRequest is the next question of a conversation.
type AskRequest struct {
	// Key is the conversation key.
	Key string

	// UserID must own the key and match the authenticated principal.
	// Empty means the principal.
	UserID string

	// Question is text or any JSON-encodable value.
	Question any

	// Structured resolves the reply against the response contract.
	Structured bool
}

// AskResult is the answer to a question.
type AskResult struct {
	// History is the replayed conversation without the handshake, most
	// recent entry first.
	History []llm.Message `json:"history"`

	// Reply is the resolved reply.
	Reply contract.Reply `json:"reply"`

	// TurnID identifies the stored turn.
	TurnID int64 `json:"turn_id"`
}

// authorizeKey loads a live key and checks that both the claimed user id
// and the authenticated principal own it. Every failure is reported as an
// invalid key so callers cannot probe for other users' keys.
func (o *Orchestrator) authorizeKey(ctx context.Context, key, claimed string) (*conversation.Key, error) {
	userID, err := principal(ctx, claimed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConversationKey, err)
	}

	k, err := o.driver.GetKey(ctx, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConversationKey, err)
		}
		return nil, fmt.Errorf("loading conversation key: %w", err)
	}

	if k.UserID != userID {
		return nil, fmt.Errorf("%w: key not owned by principal", ErrInvalidConversationKey)
	}
	return k, nil
}

// Ask records the question as a pending turn, replays the windowed history
// to the key's model and fills the turn with the reply. Questions on the
// same key are answered one at a time, in arrival order of the lock.
func (o *Orchestrator) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	k, err := o.authorizeKey(ctx, req.Key, req.UserID)
	if err != nil {
		return nil, err
	}

	if !o.router.Has(k.Model) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, k.Model)
	}

	question, err := conversation.SerializeQuestion(req.Question)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValueRequired, err)
	}
	if conversation.IsEmpty(question) {
		return nil, ErrValueRequired
	}

	unlock, err := o.locks.acquire(ctx, k.Key)
	if err != nil {
		return nil, fmt.Errorf("waiting for conversation: %w", err)
	}
	defer unlock()

	startedAt := o.now()
	pending, err := o.driver.CreateTurn(ctx, &conversation.Turn{
		ConversationKey: k.Key,
		Question:        question,
		CreatedAt:       startedAt,
	})
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConversationKey, err)
		}
		return nil, fmt.Errorf("storing pending turn: %w", err)
	}

	turns, err := o.driver.WindowTurns(ctx, k.Key, o.WindowSize())
	if err != nil {
		o.discard(ctx, pending)
		return nil, fmt.Errorf("loading history: %w", err)
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, o.ProviderTimeout())
	d, err := o.router.Dispatch(dispatchCtx, k.Model, turns, question)
	cancel()
	if err != nil {
		o.discard(ctx, pending)
		return nil, classifyDispatchError(err)
	}

	// A dispatched reply is persisted even if the caller has gone away.
	if err := o.driver.FillResponse(context.WithoutCancel(ctx), pending.ID, d.RawResponse); err != nil {
		o.discard(ctx, pending)
		return nil, fmt.Errorf("storing response: %w", err)
	}

	var reply contract.Reply
	if req.Structured {
		reply = contract.Resolve(d.RawResponse)
	} else {
		reply = contract.Raw(d.RawResponse)
	}

	o.logger.Debug("question answered",
		zap.String("conversation_key", k.Key),
		zap.Int64("turn_id", pending.ID),
		zap.String("provider", d.Kind),
		zap.Duration("duration", d.Duration),
		zap.Bool("structured", reply.IsStructured()),
	)

	o.publish(ctx, k, pending, d, req.Structured)

	return &AskResult{
		History: displayHistory(d.History),
		Reply:   reply,
		TurnID:  pending.ID,
	}, nil
}

func classifyDispatchError(err error) error {
	switch {
	case errors.Is(err, router.ErrUnsupportedModel):
		return fmt.Errorf("%w: %w", ErrUnsupportedModel, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrProviderError, err)
}

// discard removes a pending turn whose question was never answered.
func (o *Orchestrator) discard(ctx context.Context, pending *conversation.Turn) {
	if err := o.driver.DeleteTurn(context.WithoutCancel(ctx), pending.ID); err != nil {
		o.logger.Warn("failed to remove pending turn",
			zap.String("conversation_key", pending.ConversationKey),
			zap.Int64("turn_id", pending.ID),
			zap.Error(err),
		)
	}
}

// displayHistory drops the handshake pair once a conversation has more than
// that and orders the rest most recent first.
func displayHistory(history []llm.Message) []llm.Message {
	out := slices.Clone(history)
	if len(out) > 2 {
		out = out[2:]
	}
	slices.Reverse(out)
	return out
}

func (o *Orchestrator) publish(ctx context.Context, k *conversation.Key, turn *conversation.Turn, d *router.Dispatch, structured bool) {
	completedAt := o.now()

	event := eventstream.NewTurnCompletedEvent(completedAt)
	event.Source = eventstream.EventSource{
		Provider:      d.Kind,
		Model:         k.Model,
		UpstreamModel: d.UpstreamModel,
		Preset:        k.Preset,
	}
	event.Conversation = eventstream.ConversationMeta{
		Key:    k.Key,
		UserID: k.UserID,
		TurnID: turn.ID,
	}
	event.RequestMeta = eventstream.TurnRequestMeta{
		StartedAt:    turn.CreatedAt,
		CompletedAt:  completedAt,
		DurationMs:   d.Duration.Milliseconds(),
		PromptTokens: d.PromptTokens,
		HistoryLen:   len(d.History),
		Structured:   structured,
	}
	event.Turn = eventstream.TurnPayload{
		Question: turn.Question,
		Response: d.RawResponse,
	}

	if err := o.publisher.PublishTurn(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Warn("failed to publish turn event",
			zap.String("conversation_key", k.Key),
			zap.Int64("turn_id", turn.ID),
			zap.Error(err),
		)
	}
}
