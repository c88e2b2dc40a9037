// Package mcp provides an MCP (Model Context Protocol) server that holds
// parley conversations on behalf of an authenticated principal.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/auth"
	"github.com/papercomputeco/parley/pkg/orchestrator"
	"github.com/papercomputeco/parley/pkg/utils"
)

type Config struct {
	// Orchestrator answers every tool call
	Orchestrator *orchestrator.Orchestrator

	// Verifier authenticates bearer tokens for stdio sessions and HTTP requests
	Verifier auth.Verifier

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config  Config
	handler http.Handler
}

// NewServer creates a new MCP server with the conversation tools.
func NewServer(c Config) (*Server, error) {
	if c.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if c.Verifier == nil {
		return nil, errors.New("verifier is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{
		config: c,
	}

	// Create a streamable HTTP net/http handler for stateless operations.
	// Each request gets a server bound to the principal its token names.
	streamable := mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server {
			userID, ok := auth.UserID(r.Context())
			if !ok {
				return nil
			}
			return s.Bind(userID)
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)
	s.handler = s.requireBearer(streamable)

	return s, nil
}

// Bind returns an MCP server whose tools act as userID.
func (s *Server) Bind(userID string) *mcp.Server {
	b := &binding{
		orch:   s.config.Orchestrator,
		userID: userID,
		logger: s.config.Logger.With(zap.String("user_id", userID)),
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "parley",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        issueToolName,
		Description: issueDescription,
	}, b.handleIssue)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        askToolName,
		Description: askDescription,
	}, b.handleAsk)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        historyToolName,
		Description: historyDescription,
	}, b.handleHistory)

	return mcpServer
}

// RunStdio verifies token and serves the tools over stdin/stdout until ctx
// is done or the client disconnects.
func (s *Server) RunStdio(ctx context.Context, token string) error {
	userID, err := s.config.Verifier.Verify(ctx, token)
	if err != nil {
		return fmt.Errorf("verifying token: %w", err)
	}

	s.config.Logger.Info("serving MCP over stdio", zap.String("user_id", userID))
	return s.Bind(userID).Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err == nil {
			var userID string
			userID, err = s.config.Verifier.Verify(r.Context(), token)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
				return
			}
		}

		s.config.Logger.Debug("rejected MCP request", zap.Error(err))
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, err.Error(), http.StatusUnauthorized)
	})
}

// binding carries the principal every tool call runs as.
type binding struct {
	orch   *orchestrator.Orchestrator
	userID string
	logger *zap.Logger
}

func (b *binding) context(ctx context.Context) context.Context {
	return auth.WithUserID(ctx, b.userID)
}

// toolError reports a failed call to the client. Only the error kind and its
// public message are returned.
func (b *binding) toolError(tool string, err error) *mcp.CallToolResult {
	kind := orchestrator.Kind(err)
	if kind == orchestrator.KindInternal {
		b.logger.Error("MCP tool failed", zap.String("tool", tool), zap.Error(err))
	} else {
		b.logger.Debug("MCP tool rejected", zap.String("tool", tool), zap.String("kind", kind), zap.Error(err))
	}

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %s", kind, orchestrator.Message(err))},
		},
	}
}
