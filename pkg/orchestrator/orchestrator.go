// Package orchestrator owns the lifecycle of conversation keys and turns: it
// issues keys bound to a preset, answers questions through the provider
// router with a bounded history replay, and serves history and key
// management for the key's owner.
package orchestrator

import (
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/directory"
	"github.com/papercomputeco/parley/pkg/eventstream"
	"github.com/papercomputeco/parley/pkg/eventstream/nop"
	"github.com/papercomputeco/parley/pkg/preset"
	"github.com/papercomputeco/parley/pkg/router"
	"github.com/papercomputeco/parley/pkg/storage"
	"github.com/papercomputeco/parley/pkg/window"
)

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 60 * time.Second

// Config is the configuration for an Orchestrator.
type Config struct {
	// Driver is the conversation store.
	Driver storage.Driver

	// Router dispatches questions to provider adapters.
	Router *router.Router

	// Presets resolves preset names on issue.
	Presets *preset.Registry

	// Directory resolves principals to profiles.
	Directory directory.Directory

	// Publisher receives a turn event after every answered question.
	// Optional; events are dropped when nil.
	Publisher eventstream.Publisher

	// WindowSize is the number of turns replayed from each end of a
	// conversation (defaults to window.DefaultKeep).
	WindowSize int

	// ProviderTimeout bounds every provider call (defaults to 60s).
	ProviderTimeout time.Duration

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Orchestrator implements the conversation operations. It is safe for
// concurrent use; questions on one key are answered one at a time.
type Orchestrator struct {
	driver    storage.Driver
	router    *router.Router
	presets   *preset.Registry
	directory directory.Directory
	publisher eventstream.Publisher
	logger    *zap.Logger

	windowSize      atomic.Int64
	providerTimeout atomic.Int64

	locks *keyLocks
	now   func() time.Time
}

// New creates an Orchestrator.
func New(c *Config) (*Orchestrator, error) {
	if c == nil {
		return nil, errors.New("orchestrator config is required")
	}
	if c.Driver == nil {
		return nil, errors.New("orchestrator requires a storage driver")
	}
	if c.Router == nil {
		return nil, errors.New("orchestrator requires a router")
	}
	if c.Presets == nil {
		return nil, errors.New("orchestrator requires a preset registry")
	}
	if c.Directory == nil {
		return nil, errors.New("orchestrator requires a user directory")
	}

	publisher := c.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		driver:    c.Driver,
		router:    c.Router,
		presets:   c.Presets,
		directory: c.Directory,
		publisher: publisher,
		logger:    logger,
		locks:     newKeyLocks(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	o.Reconfigure(c.WindowSize, c.ProviderTimeout)

	return o, nil
}

// Reconfigure updates the live conversation tunables. Non-positive values
// restore the defaults. In-flight questions keep the values they started with.
func (o *Orchestrator) Reconfigure(windowSize int, providerTimeout time.Duration) {
	if windowSize < 1 {
		windowSize = window.DefaultKeep
	}
	if providerTimeout <= 0 {
		providerTimeout = DefaultProviderTimeout
	}

	o.windowSize.Store(int64(windowSize))
	o.providerTimeout.Store(int64(providerTimeout))

	o.logger.Debug("conversation tunables updated",
		zap.Int("window_size", windowSize),
		zap.Duration("provider_timeout", providerTimeout),
	)
}

// WindowSize returns the current window size.
func (o *Orchestrator) WindowSize() int {
	return int(o.windowSize.Load())
}

// ProviderTimeout returns the current provider timeout.
func (o *Orchestrator) ProviderTimeout() time.Duration {
	return time.Duration(o.providerTimeout.Load())
}

// Presets returns the preset names that can be issued.
func (o *Orchestrator) Presets() []string {
	return o.presets.Names()
}

// Models returns the routed model ids.
func (o *Orchestrator) Models() []string {
	return o.router.Models()
}
