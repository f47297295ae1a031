// Package mcp provides an MCP (Model Context Protocol) server for alliance.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/alliance/internal/logging"
	"github.com/nvandessel/alliance/internal/ratelimit"
	"github.com/nvandessel/alliance/internal/session"
)

// Server wraps the MCP SDK server and exposes the simulation operations as tools.
type Server struct {
	server      *sdk.Server
	svc         *session.Service
	limits      ratelimit.Limits
	auditLogger *AuditLogger
	logger      *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "alliance")
	Version string // Server version

	// Service runs the simulations. Required.
	Service *session.Service

	// Limits caps tool calls per simulation. Nil disables limiting.
	Limits ratelimit.Limits

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string

	Logger *slog.Logger
}

// NewServer creates a new MCP server with alliance tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("mcp server requires a session service")
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{})

	s := &Server{
		server: mcpServer,
		svc:    cfg.Service,
		limits: cfg.Limits,
		logger: cfg.Logger,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.RunTransport(ctx, &sdk.StdioTransport{})
}

// RunTransport serves a single client over t until it disconnects or ctx is
// cancelled.
func (s *Server) RunTransport(ctx context.Context, t sdk.Transport) error {
	s.logger.Info("mcp server starting")
	err := s.server.Run(ctx, t)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the audit log.
func (s *Server) Close() error {
	return s.auditLogger.Close()
}
