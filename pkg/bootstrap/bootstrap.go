// Package bootstrap builds the conversation service from a decoded config:
// storage driver, provider routes, presets, user directory, token verifier,
// turn event publisher and the orchestrator that ties them together.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/auth"
	"github.com/papercomputeco/parley/pkg/config"
	"github.com/papercomputeco/parley/pkg/directory"
	"github.com/papercomputeco/parley/pkg/eventstream"
	"github.com/papercomputeco/parley/pkg/eventstream/kafka"
	"github.com/papercomputeco/parley/pkg/eventstream/nop"
	"github.com/papercomputeco/parley/pkg/eventstream/worker"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/llm/provider"
	"github.com/papercomputeco/parley/pkg/llm/tokens"
	"github.com/papercomputeco/parley/pkg/orchestrator"
	"github.com/papercomputeco/parley/pkg/preset"
	"github.com/papercomputeco/parley/pkg/router"
	"github.com/papercomputeco/parley/pkg/storage"
	storageutils "github.com/papercomputeco/parley/pkg/storage/utils"
)

// Service is a fully wired conversation service.
type Service struct {
	Orchestrator *orchestrator.Orchestrator
	Verifier     *auth.StaticVerifier
	Directory    *directory.Static
	Presets      *preset.Registry

	driver    storage.Driver
	publisher eventstream.Publisher
	logger    *zap.Logger
}

// Options overrides parts of the wiring, mostly for tests.
type Options struct {
	// Driver replaces the configured storage driver. The caller keeps
	// ownership; Close does not close it.
	Driver storage.Driver

	// Router replaces the router built from the [models] table.
	Router *router.Router
}

// New wires a Service from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts *Options) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap requires a config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts == nil {
		opts = &Options{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	timeout, err := cfg.Conversation.Timeout()
	if err != nil {
		return nil, err
	}

	s := &Service{
		Verifier:  NewVerifier(cfg),
		Directory: NewDirectory(cfg),
		logger:    logger,
	}

	s.Presets, err = NewPresets(cfg)
	if err != nil {
		return nil, err
	}

	rt := opts.Router
	if rt == nil {
		rt, err = NewRouter(cfg, logger, promptCounter(logger))
		if err != nil {
			return nil, err
		}
	}

	driver := opts.Driver
	if driver == nil {
		driver, err = storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
			DriverType:  cfg.Storage.Driver,
			SQLitePath:  cfg.Storage.SQLitePath,
			PostgresDSN: cfg.Storage.PostgresDSN,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		s.driver = driver
	}

	s.publisher, err = NewPublisher(cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Orchestrator, err = orchestrator.New(&orchestrator.Config{
		Driver:          driver,
		Router:          rt,
		Presets:         s.Presets,
		Directory:       s.Directory,
		Publisher:       s.publisher,
		WindowSize:      cfg.Conversation.WindowSize,
		ProviderTimeout: timeout,
		Logger:          logger,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	return s, nil
}

// Apply hands a reloaded config to the running service. Conversation
// tunables and preset model bindings change in place; users and tokens are
// added or updated but never removed. Storage, routes and Kafka settings
// need a restart.
func (s *Service) Apply(cfg *config.Config) {
	timeout, err := cfg.Conversation.Timeout()
	if err != nil {
		s.logger.Warn("keeping provider timeout", zap.Error(err))
		timeout = s.Orchestrator.ProviderTimeout()
	}
	s.Orchestrator.Reconfigure(cfg.Conversation.WindowSize, timeout)

	for _, name := range s.Presets.Names() {
		model := ""
		if p, ok := cfg.Presets[name]; ok {
			model = p.Model
		}
		if err := s.Presets.BindModel(name, model); err != nil {
			s.logger.Warn("failed to rebind preset", zap.String("preset", name), zap.Error(err))
		}
	}

	for _, u := range cfg.Users {
		s.Directory.Put(toUser(u))
		if u.Token != "" {
			s.Verifier.Add(u.Token, u.ID)
		}
	}
}

// Close releases the storage driver and the publisher.
func (s *Service) Close() error {
	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.driver != nil {
		errs = append(errs, s.driver.Close())
	}
	return errors.Join(errs...)
}

// promptCounter prefers the tiktoken encoding and approximates when its
// ranks cannot be loaded.
func promptCounter(logger *zap.Logger) tokens.Counter {
	tc, err := tokens.NewTiktokenCounter(tokens.DefaultEncoding)
	if err != nil {
		logger.Debug("tiktoken unavailable, approximating prompt tokens", zap.Error(err))
		return tokens.ApproxCounter{}
	}
	return tc
}

// NewRouter registers one route per [models] entry. A route whose API key is
// missing is skipped with a warning so the other routes still serve; asks on
// it fail UnsupportedModel.
func NewRouter(cfg *config.Config, logger *zap.Logger, counter tokens.Counter) (*router.Router, error) {
	rt := router.New(logger, router.WithTokenCounter(counter))

	ids := make([]string, 0, len(cfg.Models))
	for id := range cfg.Models {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		m := cfg.Models[id]

		sampling, err := llm.SamplingProfile(m.Sampling)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", id, err)
		}

		upstream := m.UpstreamModel
		if upstream == "" {
			upstream = id
		}

		key := provider.ResolveAPIKey(m.Provider, "", m.APIKeyEnv)
		if key == "" && provider.RequiresAPIKey(m.Provider) {
			logger.Warn("model not routed, API key missing",
				zap.String("model", id),
				zap.String("provider", m.Provider),
				zap.String("api_key_env", m.APIKeyEnv),
			)
			continue
		}

		p, err := provider.New(m.Provider, provider.Config{
			Model:    upstream,
			BaseURL:  m.BaseURL,
			APIKey:   key,
			Sampling: sampling,
		})
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", id, err)
		}

		rt.Register(id, router.Route{
			Provider:                  p,
			UpstreamModel:             upstream,
			OmitIntermediateAssistant: m.OmitIntermediateAssistant,
		})
		logger.Debug("model routed",
			zap.String("model", id),
			zap.String("provider", m.Provider),
			zap.String("upstream_model", upstream),
		)
	}

	return rt, nil
}

// NewPresets returns the built-in presets with the configured model bindings.
func NewPresets(cfg *config.Config) (*preset.Registry, error) {
	reg := preset.NewRegistry()
	for name, p := range cfg.Presets {
		if p.Model == "" {
			continue
		}
		if err := reg.BindModel(name, p.Model); err != nil {
			return nil, fmt.Errorf("presets.%s: %w", name, err)
		}
	}
	return reg, nil
}

// NewDirectory seeds a static directory from [[users]].
func NewDirectory(cfg *config.Config) *directory.Static {
	users := make([]directory.User, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		users = append(users, toUser(u))
	}
	return directory.NewStatic(users...)
}

// NewVerifier maps every configured user token to its user.
func NewVerifier(cfg *config.Config) *auth.StaticVerifier {
	toks := make(map[string]string, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Token != "" {
			toks[u.Token] = u.ID
		}
	}
	return auth.NewStaticVerifier(toks)
}

// NewPublisher returns a Kafka publisher behind an async worker pool when
// brokers are configured and a dropping publisher otherwise. A single worker
// keeps the turns of a conversation in order.
func NewPublisher(cfg *config.Config, logger *zap.Logger) (eventstream.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	pool, err := worker.NewPool(&worker.Config{
		Publisher:  p,
		NumWorkers: 1,
		Logger:     logger,
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("creating event worker pool: %w", err)
	}

	logger.Info("publishing turn events",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	return pool, nil
}

func toUser(u config.UserConfig) directory.User {
	return directory.User{
		ID:            u.ID,
		Fullname:      u.Fullname,
		PreferredLang: u.PreferredLang,
	}
}
