// Package router maps model identifiers to provider adapters, rebuilds a
// conversation's role-tagged history from stored turns and dispatches the
// next question.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/conversation"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/llm/provider"
	"github.com/papercomputeco/parley/pkg/llm/tokens"
)

// ErrUnsupportedModel is returned when no route is registered for a model id.
var ErrUnsupportedModel = errors.New("unsupported model")

// ProviderError wraps a failed adapter call.
type ProviderError struct {
	// Model is the model id the call was routed for.
	Model string

	// Kind is the adapter kind that failed.
	Kind string

	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed for model %q: %v", e.Kind, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Route binds a model id to an adapter.
type Route struct {
	// Provider is the adapter the route dispatches to.
	Provider provider.Provider

	// UpstreamModel is the provider-side model name, for logs and events.
	UpstreamModel string

	// OmitIntermediateAssistant drops the assistant replies of every turn
	// after the handshake from the replayed history.
	OmitIntermediateAssistant bool
}

// Dispatch is the outcome of one routed call.
type Dispatch struct {
	// RawResponse is the adapter's reply text, unparsed.
	RawResponse string

	// History is the reconstructed history including the new question and
	// the reply.
	History []llm.Message

	// Kind is the adapter kind that served the call.
	Kind string

	// UpstreamModel is the provider-side model name.
	UpstreamModel string

	// PromptTokens estimates the replayed prompt size. Zero without a counter.
	PromptTokens int

	// Duration is the wall time of the adapter call.
	Duration time.Duration
}

// Option configures a Router.
type Option func(*Router)

// WithTokenCounter estimates prompt tokens for every dispatch.
func WithTokenCounter(c tokens.Counter) Option {
	return func(r *Router) {
		r.counter = c
	}
}

// Router is a registry of model id to Route. Adapters are stateless, so a
// Router is safe for concurrent dispatch.
type Router struct {
	mu      sync.RWMutex
	routes  map[string]Route
	counter tokens.Counter
	logger  *zap.Logger
}

// New creates an empty router.
func New(logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		routes: make(map[string]Route),
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces the route for modelID.
func (r *Router) Register(modelID string, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[modelID] = route
}

// Has reports whether modelID has a route.
func (r *Router) Has(modelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routes[modelID]
	return ok
}

// Models returns the sorted routed model ids.
func (r *Router) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.routes))
	for id := range r.routes {
		models = append(models, id)
	}
	sort.Strings(models)
	return models
}

func (r *Router) route(modelID string) (Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	route, ok := r.routes[modelID]
	if !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnsupportedModel, modelID)
	}
	return route, nil
}

// Reconstruct rebuilds the role-tagged history of a conversation from its
// ordered turns. The first turn is the handshake and becomes a system entry
// and its assistant acknowledgment; every later turn becomes a user entry
// followed by its assistant reply unless omitIntermediate is set.
func Reconstruct(turns []*conversation.Turn, omitIntermediate bool) []llm.Message {
	history := make([]llm.Message, 0, 2*len(turns)+2)
	for i, t := range turns {
		if i == 0 {
			history = append(history,
				llm.NewTextMessage(llm.RoleSystem, t.Question),
				llm.NewTextMessage(llm.RoleAssistant, t.Response),
			)
			continue
		}

		history = append(history, llm.NewTextMessage(llm.RoleUser, t.Question))
		if !omitIntermediate {
			history = append(history, llm.NewTextMessage(llm.RoleAssistant, t.Response))
		}
	}
	return history
}

// Dispatch rebuilds the history from turns, sends question to the adapter
// routed for modelID and returns the reply. Failures are not retried.
func (r *Router) Dispatch(ctx context.Context, modelID string, turns []*conversation.Turn, question string) (*Dispatch, error) {
	route, err := r.route(modelID)
	if err != nil {
		return nil, err
	}

	history := Reconstruct(turns, route.OmitIntermediateAssistant)
	kind := route.Provider.Name()

	promptTokens := 0
	if r.counter != nil {
		promptTokens = r.counter.Count(append(history[:len(history):len(history)], llm.NewTextMessage(llm.RoleUser, question)))
	}

	r.logger.Debug("dispatching to provider",
		zap.String("model", modelID),
		zap.String("provider", kind),
		zap.Int("history_len", len(history)),
		zap.Int("prompt_tokens", promptTokens),
	)

	start := time.Now()
	reply, err := route.Provider.SendMessage(ctx, history, question)
	duration := time.Since(start)
	if err != nil {
		r.logger.Warn("provider call failed",
			zap.String("model", modelID),
			zap.String("provider", kind),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, &ProviderError{Model: modelID, Kind: kind, Err: err}
	}

	history = append(history,
		llm.NewTextMessage(llm.RoleUser, question),
		llm.NewTextMessage(llm.RoleAssistant, reply),
	)

	return &Dispatch{
		RawResponse:   reply,
		History:       history,
		Kind:          kind,
		UpstreamModel: route.UpstreamModel,
		PromptTokens:  promptTokens,
		Duration:      duration,
	}, nil
}
