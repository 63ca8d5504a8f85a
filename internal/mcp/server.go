// Package mcp serves owera's generation tools over the Model Context
// Protocol.
//
// This implementation uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and calls the run pipeline in internal/services directly.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/extraction"
	"github.com/fyrsmithlabs/owera/internal/logging"
	"github.com/fyrsmithlabs/owera/internal/services"
)

// Server exposes the run pipeline as MCP tools.
type Server struct {
	mcp     *mcp.Server
	reg     services.Registry
	engine  *extraction.Engine
	metrics *Metrics
	logger  *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "owera")
	Name string

	// Version is the server version (default: "dev")
	Version string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "owera",
		Version: "dev",
	}
}

// NewServer creates a new MCP server over reg.
func NewServer(cfg *Config, reg services.Registry) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if reg == nil {
		return nil, fmt.Errorf("service registry is required")
	}

	logger := reg.Logger().Named("mcp")
	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		reg:     reg,
		engine:  extraction.NewEngine(extraction.Config{}),
		metrics: NewMetrics(reg.Meter(), logger.Underlying()),
		logger:  logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves on the stdio transport until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves one session on t. Tests use it with in-memory transports.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

// observe wraps a tool call with metrics and a debug log.
func (s *Server) observe(ctx context.Context, tool string) func(error) {
	start := s.metrics.begin(ctx, tool)
	return func(err error) {
		s.metrics.end(ctx, tool, start, err)
		if err != nil {
			s.logger.Warn(ctx, "tool failed", zap.String("tool", tool), zap.Error(err))
			return
		}
		s.logger.Debug(ctx, "tool finished", zap.String("tool", tool))
	}
}
