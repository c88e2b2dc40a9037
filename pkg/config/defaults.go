package config

import (
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/llm/provider"
	"github.com/papercomputeco/parley/pkg/window"
)

// Storage driver names.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

const (
	defaultListen          = ":8090"
	defaultClientAPITarget = "http://localhost:8090"

	defaultStorageDriver = StorageMemory

	defaultProviderTimeout = "60s"

	defaultKafkaTopic = "parley.turns"
)

// defaultModels routes the models the built-in presets bind to. Both speak
// the OpenAI chat completions protocol.
func defaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		"grok": {
			Provider:      provider.LangChain,
			UpstreamModel: "grok-2-latest",
			BaseURL:       "https://api.x.ai/v1",
			APIKeyEnv:     "XAI_API_KEY",
			Sampling:      llm.ProfileDataCleaning,
		},
		"deepseek": {
			Provider:      provider.LangChain,
			UpstreamModel: "deepseek-chat",
			BaseURL:       "https://api.deepseek.com/v1",
			APIKeyEnv:     "DEEPSEEK_API_KEY",
			Sampling:      llm.ProfileGeneralConversation,
		},
	}
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Conversation: ConversationConfig{
			WindowSize:      window.DefaultKeep,
			ProviderTimeout: defaultProviderTimeout,
		},
		Kafka: KafkaConfig{
			Topic: defaultKafkaTopic,
		},
		Models: defaultModels(),
	}
}
