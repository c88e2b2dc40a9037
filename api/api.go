package api

import (
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/auth"
	"github.com/papercomputeco/parley/pkg/orchestrator"
)

// Server is the API server in front of the conversation orchestrator.
type Server struct {
	config   Config
	orch     *orchestrator.Orchestrator
	verifier auth.Verifier
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new API server. Every route except /ping requires a
// bearer token the verifier accepts.
func NewServer(config Config, orch *orchestrator.Orchestrator, verifier auth.Verifier, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
	})

	s := &Server{
		config:   config,
		orch:     orch,
		verifier: verifier,
		logger:   logger,
		app:      app,
	}

	app.Use(recover.New())

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1", s.requireBearer)
	v1.Post("/conversations", s.handleIssue)
	v1.Get("/conversations", s.handleList)
	v1.Post("/conversations/:key/ask", s.handleAsk)
	v1.Get("/conversations/:key/history", s.handleHistory)
	v1.Put("/conversations/:key/saved", s.handleSave)
	v1.Delete("/conversations/:key", s.handleDelete)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Serve runs the API server on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting API server",
		zap.String("listen", ln.Addr().String()),
	)
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
