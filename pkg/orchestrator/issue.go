package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/auth"
	"github.com/papercomputeco/parley/pkg/contract"
	"github.com/papercomputeco/parley/pkg/conversation"
	"github.com/papercomputeco/parley/pkg/directory"
	"github.com/papercomputeco/parley/pkg/preset"
)

// IssueRequest asks for a new conversation key.
type IssueRequest struct {
	// UserID must match the authenticated principal. Empty means the principal.
	UserID string

	// Preset is the preset name to bind the conversation to.
	Preset string

	// PreferredLang overrides the directory's preferred language.
	PreferredLang string

	// Fullname overrides the directory's full name.
	Fullname string

	// Title labels the conversation. Empty yields "Unnamed <n>".
	Title string
}

// IssueResult is a freshly issued conversation key.
type IssueResult struct {
	Key       string    `json:"conversation_key"`
	Title     string    `json:"title"`
	Preset    string    `json:"preset"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// principal returns the authenticated user id in ctx, checking it against
// an optional claimed id.
func principal(ctx context.Context, claimed string) (string, error) {
	userID, ok := auth.UserID(ctx)
	if !ok {
		return "", fmt.Errorf("%w: no authenticated principal", ErrUnauthorized)
	}
	if claimed != "" && claimed != userID {
		return "", fmt.Errorf("%w: user id does not match the authenticated principal", ErrUnauthorized)
	}
	return userID, nil
}

// Issue creates a conversation key for the principal, bound to the preset's
// model, and records the handshake turn that carries the preset instructions.
func (o *Orchestrator) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	userID, err := principal(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	user, err := o.directory.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrUserNotFound, err)
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	fullname := user.Fullname
	if req.Fullname != "" {
		fullname = req.Fullname
	}
	lang := user.PreferredLang
	if req.PreferredLang != "" {
		lang = req.PreferredLang
	}

	resolved, err := o.presets.Resolve(req.Preset, fullname, lang)
	if err != nil {
		if errors.Is(err, preset.ErrUnknownPreset) {
			return nil, fmt.Errorf("%w: %w", ErrUnknownPreset, err)
		}
		return nil, fmt.Errorf("resolving preset: %w", err)
	}

	if !o.router.Has(resolved.Model) {
		o.logger.Warn("issuing conversation for a model without a route",
			zap.String("preset", req.Preset),
			zap.String("model", resolved.Model),
		)
	}

	keyValue, err := conversation.NewKey(userID, resolved.Model, req.Preset)
	if err != nil {
		return nil, fmt.Errorf("generating conversation key: %w", err)
	}

	title := req.Title
	if title == "" {
		n, err := o.driver.CountKeys(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("counting conversation keys: %w", err)
		}
		title = conversation.DefaultTitle(n)
	}

	key := &conversation.Key{
		Key:       keyValue,
		UserID:    userID,
		Preset:    req.Preset,
		Model:     resolved.Model,
		Topic:     resolved.Topic,
		Title:     title,
		CreatedAt: o.now(),
	}
	if err := o.driver.CreateKey(ctx, key); err != nil {
		return nil, fmt.Errorf("storing conversation key: %w", err)
	}

	if _, err := o.driver.CreateTurn(ctx, &conversation.Turn{
		ConversationKey: key.Key,
		Question:        resolved.Topic,
		Response:        contract.Acknowledgment().String(),
		CreatedAt:       key.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("storing handshake turn: %w", err)
	}

	o.logger.Info("conversation issued",
		zap.String("user_id", userID),
		zap.String("preset", req.Preset),
		zap.String("model", resolved.Model),
	)

	return &IssueResult{
		Key:       key.Key,
		Title:     key.Title,
		Preset:    key.Preset,
		Model:     key.Model,
		CreatedAt: key.CreatedAt,
	}, nil
}
