package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			data := `version = 0

[server]
listen = ":9000"

[client]
api_target = "http://remote:9000"
token = "secret"

[storage]
driver = "sqlite"
sqlite_path = "/tmp/parley.sqlite"

[conversation]
window_size = 3
provider_timeout = "15s"

[kafka]
brokers = ["kafka-1:9092", "kafka-2:9092"]
topic = "turns"

[models.gpt]
provider = "openai"
upstream_model = "gpt-4o-mini"
api_key_env = "MY_OPENAI_KEY"
sampling = "coding_and_math"
omit_intermediate_assistant = true

[presets.assistant]
model = "gpt"

[[users]]
id = "u1"
fullname = "Ada Lovelace"
preferred_lang = "English"
token = "tok-1"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.Listen).To(Equal(":9000"))
			Expect(cfg.Client.APITarget).To(Equal("http://remote:9000"))
			Expect(cfg.Client.Token).To(Equal("secret"))
			Expect(cfg.Storage.Driver).To(Equal("sqlite"))
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/parley.sqlite"))
			Expect(cfg.Conversation.WindowSize).To(Equal(3))
			Expect(cfg.Conversation.Timeout()).To(Equal(15 * time.Second))
			Expect(cfg.Kafka.Brokers).To(Equal([]string{"kafka-1:9092", "kafka-2:9092"}))
			Expect(cfg.Kafka.Topic).To(Equal("turns"))
			Expect(cfg.Models).To(HaveLen(1))
			Expect(cfg.Models["gpt"]).To(Equal(config.ModelConfig{
				Provider:                  "openai",
				UpstreamModel:             "gpt-4o-mini",
				APIKeyEnv:                 "MY_OPENAI_KEY",
				Sampling:                  "coding_and_math",
				OmitIntermediateAssistant: true,
			}))
			Expect(cfg.Presets["assistant"].Model).To(Equal("gpt"))
			Expect(cfg.Users).To(Equal([]config.UserConfig{
				{ID: "u1", Fullname: "Ada Lovelace", PreferredLang: "English", Token: "tok-1"},
			}))
			Expect(cfg.Validate()).To(Succeed())
		})

		It("fills in defaults for unset fields in a partial config", func() {
			data := `[storage]
driver = "postgres"
postgres_dsn = "postgres://localhost/parley"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Storage.Driver).To(Equal("postgres"))
			Expect(cfg.Server.Listen).To(Equal(defaults.Server.Listen))
			Expect(cfg.Client.APITarget).To(Equal(defaults.Client.APITarget))
			Expect(cfg.Conversation).To(Equal(defaults.Conversation))
			Expect(cfg.Kafka.Topic).To(Equal(defaults.Kafka.Topic))
			Expect(cfg.Models).To(Equal(defaults.Models))
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not valid [[[toml"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing config TOML"))
		})

		It("returns error for unsupported config version", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("version = 999\n"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version 999"))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk and round-trips", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Storage.Driver = config.StorageSQLite
			cfg.Storage.SQLitePath = "/data/parley.db"
			cfg.Users = []config.UserConfig{{ID: "u1", Token: "tok-1"}}
			cfg.Presets = map[string]config.PresetConfig{"assistant": {Model: "grok"}}
			Expect(c.SaveConfig(cfg)).To(Succeed())

			_, err = os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SaveConfig(nil)).To(MatchError(ContainSubstring("nil config")))
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string config key", func() {
			Expect(c.SetConfigValue("server.listen", ":9999")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.Listen).To(Equal(":9999"))
		})

		It("sets an integer config key", func() {
			Expect(c.SetConfigValue("conversation.window_size", "4")).To(Succeed())

			v, err := c.GetConfigValue("conversation.window_size")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("4"))
		})

		It("splits broker lists", func() {
			Expect(c.SetConfigValue("kafka.brokers", "a:9092, b:9092,")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Kafka.Brokers).To(Equal([]string{"a:9092", "b:9092"}))
		})

		DescribeTable("rejects invalid values",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(MatchError(ContainSubstring("invalid value for " + key)))
			},
			Entry("non-numeric window", "conversation.window_size", "many"),
			Entry("zero window", "conversation.window_size", "0"),
			Entry("unparsable timeout", "conversation.provider_timeout", "soon"),
			Entry("negative timeout", "conversation.provider_timeout", "-1s"),
			Entry("unknown driver", "storage.driver", "redis"),
		)

		It("returns error for unknown key", func() {
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("storage.driver", "sqlite")).To(Succeed())
			Expect(c.SetConfigValue("storage.sqlite_path", "/tmp/p.db")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Driver).To(Equal("sqlite"))
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/p.db"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default value when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("conversation.provider_timeout")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("60s"))
		})

		It("returns empty string for key with no default", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("storage.postgres_dsn")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeEmpty())
		})
	})

	Describe("ValidConfigKeys", func() {
		It("returns every key in stable order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(HaveLen(10))
			Expect(keys[0]).To(Equal("server.listen"))
			Expect(keys).To(Equal(config.ValidConfigKeys()))
			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue())
			}
		})

		It("rejects unknown keys", func() {
			Expect(config.IsValidConfigKey("api.listen")).To(BeFalse())
		})
	})

	Describe("key attributes", func() {
		It("marks only the conversation tunables as reloadable", func() {
			var reloadable []string
			for _, k := range config.ValidConfigKeys() {
				if config.IsReloadable(k) {
					reloadable = append(reloadable, k)
				}
			}
			Expect(reloadable).To(ConsistOf("conversation.window_size", "conversation.provider_timeout"))
			Expect(config.IsReloadable("nope")).To(BeFalse())
		})

		It("marks the client token as secret", func() {
			Expect(config.IsSecret("client.token")).To(BeTrue())
			Expect(config.IsSecret("client.api_target")).To(BeFalse())
		})

		It("masks all but the tail of a secret", func() {
			Expect(config.MaskSecret("")).To(BeEmpty())
			Expect(config.MaskSecret("abc")).To(Equal("***"))
			Expect(config.MaskSecret("tok-alice-1234")).To(Equal("********1234"))
		})

		It("reads values from a loaded config", func() {
			cfg := config.NewDefaultConfig()
			cfg.Kafka.Topic = "turns"

			v, err := config.KeyValue(cfg, "kafka.topic")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("turns"))

			_, err = config.KeyValue(cfg, "kafka.partitions")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})
})

var _ = Describe("Validate", func() {
	It("accepts the defaults", func() {
		Expect(config.NewDefaultConfig().Validate()).To(Succeed())
	})

	It("requires a path for sqlite", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Driver = config.StorageSQLite
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("storage.sqlite_path")))
	})

	It("requires a dsn for postgres", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Driver = config.StoragePostgres
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("storage.postgres_dsn")))
	})

	It("rejects unknown providers and sampling profiles", func() {
		cfg := config.NewDefaultConfig()
		cfg.Models["bad"] = config.ModelConfig{Provider: "carrier-pigeon", Sampling: "loud"}

		err := cfg.Validate()
		Expect(err).To(MatchError(ContainSubstring(`unknown provider "carrier-pigeon"`)))
		Expect(err).To(MatchError(ContainSubstring(`unknown sampling profile: "loud"`)))
	})

	It("rejects duplicate and anonymous users", func() {
		cfg := config.NewDefaultConfig()
		cfg.Users = []config.UserConfig{{ID: "u1"}, {ID: "u1"}, {}}

		err := cfg.Validate()
		Expect(err).To(MatchError(ContainSubstring(`duplicate id "u1"`)))
		Expect(err).To(MatchError(ContainSubstring("users[2]: id is required")))
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).NotTo(BeNil())

		defaults := config.NewDefaultConfig()
		Expect(v.GetString("server.listen")).To(Equal(defaults.Server.Listen))
		Expect(v.GetString("storage.driver")).To(Equal(defaults.Storage.Driver))
		Expect(v.GetInt("conversation.window_size")).To(Equal(defaults.Conversation.WindowSize))
		Expect(v.GetString("client.api_target")).To(Equal(defaults.Client.APITarget))
	})

	It("reads config file values over defaults", func() {
		data := `[storage]
driver = "sqlite"
sqlite_path = "/tmp/p.db"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("storage.driver")).To(Equal("sqlite"))
		Expect(v.GetString("storage.sqlite_path")).To(Equal("/tmp/p.db"))
		// Unset fields should still get defaults
		Expect(v.GetString("server.listen")).To(Equal(config.NewDefaultConfig().Server.Listen))
	})

	It("env vars take precedence over config file values", func() {
		data := `[server]
listen = ":7000"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		GinkgoT().Setenv("PARLEY_SERVER_LISTEN", ":7001")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("server.listen")).To(Equal(":7001"))
	})
})

var _ = Describe("Decode", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("decodes file, env and defaults into a Config", func() {
		data := `[conversation]
window_size = 5

[models.local]
provider = "ollama"
base_url = "http://localhost:11434"

[[users]]
id = "u1"
token = "tok-1"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		GinkgoT().Setenv("PARLEY_CONVERSATION_PROVIDER_TIMEOUT", "5s")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.Decode(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Conversation.WindowSize).To(Equal(5))
		Expect(cfg.Conversation.Timeout()).To(Equal(5 * time.Second))
		Expect(cfg.Models).To(HaveKey("local"))
		Expect(cfg.Models).NotTo(HaveKey("grok"))
		Expect(cfg.Models["local"].BaseURL).To(Equal("http://localhost:11434"))
		Expect(cfg.Users).To(Equal([]config.UserConfig{{ID: "u1", Token: "tok-1"}}))
		Expect(cfg.Server.Listen).To(Equal(config.NewDefaultConfig().Server.Listen))
	})

	It("falls back to the default model routes", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.Decode(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Models).To(HaveKey("grok"))
		Expect(cfg.Models).To(HaveKey("deepseek"))
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)

		// Simulate flag being set by user
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})

		Expect(v.GetString("server.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		data := `[server]
listen = ":5555"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)

		// Do NOT set the flag -- should fall through to config file value
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})

		Expect(v.GetString("server.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{"nonexistent"})

		Expect(v.GetString("server.listen")).To(Equal(config.NewDefaultConfig().Server.Listen))
	})

	It("AddStringFlag pulls name, shorthand, default and description from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &target)

		f := cmd.Flags().Lookup("api-target")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("a"))
		Expect(f.Usage).To(Equal("Parley API server URL"))
		Expect(f.DefValue).To(Equal(config.NewDefaultConfig().Client.APITarget))
	})

	It("AddUintFlag works for window-size", func() {
		cmd := &cobra.Command{Use: "test"}
		var window uint
		config.AddUintFlag(cmd, config.Flags, config.FlagWindowSize, &window)

		f := cmd.Flags().Lookup("window-size")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("2"))
	})
})
