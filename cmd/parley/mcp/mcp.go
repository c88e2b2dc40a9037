// Package mcpcmder provides the mcp command that serves the conversation
// tools over stdio.
package mcpcmder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/parley/api/mcp"
	"github.com/papercomputeco/parley/pkg/bootstrap"
	"github.com/papercomputeco/parley/pkg/config"
	"github.com/papercomputeco/parley/pkg/logger"
)

type mcpCommander struct {
	token         string
	storageDriver string
	sqlitePath    string
	postgresDSN   string

	debug     bool
	configDir string
	viper     *viper.Viper
}

var mcpFlags = []string{
	config.FlagToken,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
}

const mcpLongDesc string = `Serve the parley conversation tools over stdio using the Model Context
Protocol.

The tools (issue_conversation, ask, history) act as the user the bearer
token was issued to. Point an MCP client at this command; logs go to stderr.
Use a shared sqlite or postgres store to see conversations held through
"parley serve".

Examples:
  parley mcp --token $PARLEY_CLIENT_TOKEN
  parley mcp --token secret --storage sqlite --sqlite ./parley.db`

const mcpShortDesc string = "Serve conversation tools over MCP stdio"

func NewMCPCmd() *cobra.Command {
	cmder := &mcpCommander{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, mcpFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagToken, &cmder.token)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)

	return cmd
}

func (c *mcpCommander) run(cmd *cobra.Command) error {
	// Stdout carries the protocol.
	log := logger.NewLoggerWithWriters(c.debug, os.Stderr)
	defer func() { _ = log.Sync() }()

	cfg, err := config.Decode(c.viper)
	if err != nil {
		return err
	}
	if cfg.Client.Token == "" {
		return fmt.Errorf("a bearer token is required: pass --token or set client.token")
	}

	ctx := cmd.Context()
	svc, err := bootstrap.New(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	server, err := mcp.NewServer(mcp.Config{
		Orchestrator: svc.Orchestrator,
		Verifier:     svc.Verifier,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	return server.RunStdio(ctx, cfg.Client.Token)
}
