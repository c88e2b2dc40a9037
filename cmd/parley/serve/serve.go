// Package servecmder provides the serve command that runs the parley API
// server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/api"
	"github.com/papercomputeco/parley/api/mcp"
	"github.com/papercomputeco/parley/pkg/bootstrap"
	"github.com/papercomputeco/parley/pkg/config"
	"github.com/papercomputeco/parley/pkg/logger"
)

type serveCommander struct {
	listen          string
	storageDriver   string
	sqlitePath      string
	postgresDSN     string
	windowSize      uint
	providerTimeout string
	kafkaTopic      string
	noMCP           bool

	debug     bool
	configDir string
	viper     *viper.Viper
	logger    *zap.Logger
}

// serveFlags are the registry flags bound into the viper precedence chain.
var serveFlags = []string{
	config.FlagListen,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagWindowSize,
	config.FlagProviderTimeout,
	config.FlagKafkaTopic,
}

const serveLongDesc string = `Run the parley API server.

The server issues conversation keys bound to a preset and answers questions
through the configured model routes, replaying a bounded window of each
conversation's history. Every /v1 route requires a bearer token from the
[[users]] table of config.toml. MCP tools are served at /mcp unless --no-mcp
is given.

Settings resolve in order: flags, PARLEY_* environment variables,
config.toml, defaults. Changes to config.toml are picked up while running
for the window size, provider timeout, preset bindings and users.

Examples:
  parley serve
  parley serve --listen :9000 --storage sqlite --sqlite ./parley.db
  parley serve --storage postgres --postgres-dsn postgres://localhost/parley
  PARLEY_KAFKA_BROKERS=localhost:9092 parley serve`

const serveShortDesc string = "Run the parley API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddUintFlag(cmd, config.Flags, config.FlagWindowSize, &cmder.windowSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagProviderTimeout, &cmder.providerTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not serve MCP tools at /mcp")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cfg, err := config.Decode(c.viper)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.New(ctx, cfg, c.logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			c.logger.Warn("closing service", zap.Error(err))
		}
	}()

	config.Watch(c.viper, c.logger, svc.Apply)

	apiConfig := api.Config{
		ListenAddr: cfg.Server.Listen,
	}
	if !c.noMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Orchestrator: svc.Orchestrator,
			Verifier:     svc.Verifier,
			Logger:       c.logger,
		})
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}
		apiConfig.MCPHandler = mcpServer.Handler()
	}

	server := api.NewServer(apiConfig, svc.Orchestrator, svc.Verifier, c.logger)

	c.logger.Info("serving conversations",
		zap.String("listen", cfg.Server.Listen),
		zap.String("storage", cfg.Storage.Driver),
		zap.Strings("models", svc.Orchestrator.Models()),
		zap.Int("users", len(cfg.Users)),
		zap.Bool("mcp", !c.noMCP),
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		if err := server.Shutdown(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shutting down API server: %w", err)
		}
		return nil
	}
}
