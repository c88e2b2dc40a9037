// Package parleycmder
package parleycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/parley/cmd/parley/chat"
	configcmder "github.com/papercomputeco/parley/cmd/parley/config"
	mcpcmder "github.com/papercomputeco/parley/cmd/parley/mcp"
	servecmder "github.com/papercomputeco/parley/cmd/parley/serve"
	versioncmder "github.com/papercomputeco/parley/cmd/version"
)

const parleyLongDesc string = `Parley holds preset-bound conversations with LLM providers.

Each conversation key is bound to a preset (json_generator or assistant) and
the model the preset names. Questions are answered with a bounded window of
the conversation's history replayed to the model.

Run services using:
  parley serve      Run the API server
  parley mcp        Serve the conversation tools over MCP stdio
  parley chat       Chat through a running API server`

const parleyShortDesc string = "Parley - preset-bound LLM conversations"

func NewParleyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "parley",
		Short:        parleyShortDesc,
		Long:         parleyLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .parley/ configuration directory (default $PARLEY_DIR, ./.parley, ~/.parley)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(mcpcmder.NewMCPCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
