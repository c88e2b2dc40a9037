package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent parley configuration stored as config.toml
// in the .parley/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version      int                     `toml:"version"`
	Server       ServerConfig            `toml:"server"`
	Client       ClientConfig            `toml:"client"`
	Storage      StorageConfig           `toml:"storage"`
	Conversation ConversationConfig      `toml:"conversation"`
	Kafka        KafkaConfig             `toml:"kafka"`
	Models       map[string]ModelConfig  `toml:"models,omitempty"`
	Presets      map[string]PresetConfig `toml:"presets,omitempty"`
	Users        []UserConfig            `toml:"users,omitempty"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running
// parley server (e.g. parley chat). APITarget is a full URL.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
	Token     string `toml:"token,omitempty"`
}

// StorageConfig selects the conversation store.
// Driver is one of "memory", "sqlite" or "postgres".
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ConversationConfig holds the conversation tunables. Both can be changed
// while the server runs.
type ConversationConfig struct {
	WindowSize      int    `toml:"window_size,omitempty"`
	ProviderTimeout string `toml:"provider_timeout,omitempty"`
}

// Timeout parses ProviderTimeout. An empty value yields zero.
func (c ConversationConfig) Timeout() (time.Duration, error) {
	if c.ProviderTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ProviderTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid conversation.provider_timeout: %w", err)
	}
	return d, nil
}

// KafkaConfig enables turn events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// ModelConfig routes a model id to a provider adapter.
type ModelConfig struct {
	// Provider is the adapter kind (openai, anthropic, ollama, langchain).
	Provider string `toml:"provider"`

	// UpstreamModel is the model name sent upstream. Empty uses the model id.
	UpstreamModel string `toml:"upstream_model,omitempty"`

	BaseURL string `toml:"base_url,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `toml:"api_key_env,omitempty"`

	// Sampling is a named sampling profile.
	Sampling string `toml:"sampling,omitempty"`

	// OmitIntermediateAssistant replays only the handshake acknowledgment
	// and drops every later assistant reply.
	OmitIntermediateAssistant bool `toml:"omit_intermediate_assistant,omitempty"`
}

// PresetConfig overrides a built-in preset.
type PresetConfig struct {
	Model string `toml:"model,omitempty"`
}

// UserConfig seeds the static user directory and its bearer token.
type UserConfig struct {
	ID            string `toml:"id"`
	Fullname      string `toml:"fullname,omitempty"`
	PreferredLang string `toml:"preferred_lang,omitempty"`
	Token         string `toml:"token,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
// reloads marks keys a running server applies without a restart; secret
// marks values that are masked when listed.
type configKeyInfo struct {
	get     func(c *Config) string
	set     func(c *Config, v string) error
	reloads bool
	secret  bool
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"client.token": {
		get:    func(c *Config) string { return c.Client.Token },
		set:    func(c *Config, v string) error { c.Client.Token = v; return nil },
		secret: true,
	},
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			switch v {
			case StorageMemory, StorageSQLite, StoragePostgres:
				c.Storage.Driver = v
				return nil
			}
			return fmt.Errorf("invalid value for storage.driver: %q (available: %s, %s, %s)", v, StorageMemory, StorageSQLite, StoragePostgres)
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"conversation.window_size": {
		get: func(c *Config) string {
			if c.Conversation.WindowSize == 0 {
				return ""
			}
			return strconv.Itoa(c.Conversation.WindowSize)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for conversation.window_size: %w", err)
			}
			if n < 1 {
				return fmt.Errorf("invalid value for conversation.window_size: must be at least 1, got %d", n)
			}
			c.Conversation.WindowSize = n
			return nil
		},
		reloads: true,
	},
	"conversation.provider_timeout": {
		get: func(c *Config) string { return c.Conversation.ProviderTimeout },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for conversation.provider_timeout: %w", err)
			}
			if d <= 0 {
				return fmt.Errorf("invalid value for conversation.provider_timeout: must be positive, got %s", v)
			}
			c.Conversation.ProviderTimeout = v
			return nil
		},
		reloads: true,
	},
	"kafka.brokers": {
		get: func(c *Config) string { return strings.Join(c.Kafka.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Kafka.Brokers = nil
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.Kafka.Brokers = append(c.Kafka.Brokers, b)
				}
			}
			return nil
		},
	},
	"kafka.topic": {
		get: func(c *Config) string { return c.Kafka.Topic },
		set: func(c *Config, v string) error { c.Kafka.Topic = v; return nil },
	},
}
