package provider

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/parley/pkg/llm/provider/langchain"
	"github.com/papercomputeco/parley/pkg/llm/provider/ollama"
	"github.com/papercomputeco/parley/pkg/llm/provider/openai"
)

// Supported provider kind constants
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Ollama    = "ollama"
	LangChain = "langchain"
)

// Config carries what an adapter needs to reach its upstream.
type Config struct {
	// Model is the upstream model name (e.g., "gpt-4o-mini", "grok-2-latest").
	Model string

	// BaseURL overrides the adapter's default endpoint.
	BaseURL string

	// APIKey authenticates against the upstream. Ollama ignores it.
	APIKey string

	// Sampling holds the generation parameters sent with every request.
	Sampling llm.Sampling
}

// Constructor builds an adapter of one kind.
type Constructor func(cfg Config) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{
		OpenAI: func(cfg Config) (Provider, error) {
			return openai.New(cfg.Model, cfg.BaseURL, cfg.APIKey, cfg.Sampling), nil
		},
		Anthropic: func(cfg Config) (Provider, error) {
			return anthropic.New(cfg.Model, cfg.BaseURL, cfg.APIKey, cfg.Sampling), nil
		},
		Ollama: func(cfg Config) (Provider, error) {
			return ollama.New(cfg.Model, cfg.BaseURL, cfg.Sampling), nil
		},
		LangChain: func(cfg Config) (Provider, error) {
			return langchain.New(cfg.Model, cfg.BaseURL, cfg.APIKey, cfg.Sampling)
		},
	}
)

// providerEnvVars maps adapter kinds to the environment variable consulted
// when a route names none. LangChain routes front other vendors and have no
// conventional variable.
var providerEnvVars = map[string]string{
	OpenAI:    "OPENAI_API_KEY",
	Anthropic: "ANTHROPIC_API_KEY",
}

// keyless lists the adapter kinds that reach their upstream without an API key.
var keyless = map[string]bool{
	Ollama: true,
}

// RequiresAPIKey reports whether an adapter of kind needs an API key.
func RequiresAPIKey(kind string) bool {
	return !keyless[kind]
}

// Register adds or replaces the constructor for kind. Adding a provider is a
// registration, never a new branch at the call sites.
func Register(kind string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = c
}

// SupportedProviders returns the sorted list of registered adapter kinds.
func SupportedProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// New creates an adapter of the given kind.
// Returns an error if the kind is not registered.
func New(kind string, cfg Config) (Provider, error) {
	registryMu.RLock()
	c, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", kind, SupportedProviders())
	}

	p, err := c(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", kind, err)
	}
	return p, nil
}

// ResolveAPIKey resolves the API key for an adapter.
// Resolution order:
//  1. Explicit key
//  2. Named environment variable (envVar)
//  3. The kind's conventional environment variable (OPENAI_API_KEY / ANTHROPIC_API_KEY),
//     only when envVar is empty so one vendor's key never reaches another
func ResolveAPIKey(kind, explicit, envVar string) string {
	if explicit != "" {
		return explicit
	}
	if envVar != "" {
		return os.Getenv(envVar)
	}
	if conventional, ok := providerEnvVars[kind]; ok {
		return os.Getenv(conventional)
	}
	return ""
}
