// Package mcp exposes the billing tool catalog over the Model Context
// Protocol. Every call runs the same pipeline: validate, authenticate,
// authorize, execute, sanitize.
package mcp

import (
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	otelmetrics "github.com/costscope/costscope/internal/adapter/otel"
	"github.com/costscope/costscope/internal/port/costapi"
	"github.com/costscope/costscope/internal/service"
	"github.com/costscope/costscope/internal/validate"
)

// ServerConfig identifies the MCP server instance.
type ServerConfig struct {
	Name    string
	Version string
}

// ServerDeps are the collaborators every tool call runs through.
type ServerDeps struct {
	Access    *service.AccessService
	Engine    *service.Engine
	API       costapi.Client
	Validator *validate.Validator
	Metrics   *otelmetrics.Metrics // optional
	Health    func() string        // optional; reports circuit state
	Log       *slog.Logger
}

// Server hosts the MCP tool catalog.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	catalog   map[string]toolSpec
}

// NewServer creates the MCP server and registers the full tool catalog.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithResourceCapabilities(false, true),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable-HTTP handler for mounting on a router.
// The HTTP request context (carrying the caller's bearer credential) flows
// into tool handlers.
func (s *Server) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithHTTPContextFunc(WithBearerFromRequest),
	)
}
