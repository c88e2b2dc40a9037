// Package configcmder provides the config command for managing persistent
// parley configuration stored in the .parley/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent parley configuration.

Configuration is stored as config.toml in the .parley/ directory (or the
directory named by --config-dir or $PARLEY_DIR) and provides default values
for command flags. CLI flags and PARLEY_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, client.api_target, client.token,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  conversation.window_size, conversation.provider_timeout,
  kafka.brokers, kafka.topic

Model routes, preset bindings and users are tables; edit them in
config.toml directly.

Use subcommands to get, set, or list configuration values:
  parley config set <key> <value>    Set a configuration value
  parley config get <key>            Get a configuration value
  parley config list                 List all configuration values

Examples:
  parley config set storage.driver sqlite
  parley config set conversation.window_size 3
  parley config get storage.driver
  parley config list`

const configShortDesc string = "Manage persistent parley configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
