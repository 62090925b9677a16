// Package mcp exposes the bus to AI agents over the Model Context
// Protocol: mailbox tools, task lookup, and capability discovery.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/arbiterhq/Switchboard/internal/domain/agent"
	"github.com/arbiterhq/Switchboard/internal/domain/message"
	"github.com/arbiterhq/Switchboard/internal/domain/task"
)

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// Mailer is the slice of the bus the MCP tools need.
type Mailer interface {
	Send(ctx context.Context, env *message.Envelope) (*message.Envelope, error)
	Pending(ctx context.Context, agentID string) []*message.Envelope
	Acknowledge(ctx context.Context, agentID, messageID string) error
}

// TaskReader reads tasks from the delegation ledger.
type TaskReader interface {
	Get(ctx context.Context, taskID string) (*task.Task, error)
}

// Finder answers capability discovery questions.
type Finder interface {
	Lookup(ctx context.Context, agentID string) (*agent.Capabilities, error)
	FindByService(ctx context.Context, service string) ([]string, error)
}

// AgentLister lists directory entries for the agents resource.
type AgentLister interface {
	List(ctx context.Context) ([]agent.Record, error)
}

// ServerDeps holds the service dependencies for tools and resources.
// Nil members disable their tools with a typed error result.
type ServerDeps struct {
	Mailer      Mailer
	TaskReader  TaskReader
	Finder      Finder
	AgentLister AgentLister
}

// Server wraps an MCP server and its HTTP transport.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	httpSrv   *mcpserver.StreamableHTTPServer
}

// NewServer creates an MCP server with all tools and resources registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server for tests and embedding.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves the MCP protocol over streamable HTTP. It returns
// immediately; serve errors are logged.
func (s *Server) Start() error {
	s.httpSrv = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpSrv.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP transport.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// toolResultJSON wraps a JSON string in a text content result.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
