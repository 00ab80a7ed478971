package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/tools"
)

// MCPExecutor implements tools.ToolExecutor for MCP server tools.
// It manages connections to multiple MCP servers, discovers their tools,
// and routes tool calls to the appropriate server.
type MCPExecutor struct {
	mu sync.RWMutex

	// clients holds the servers in configuration order.
	clients []*MCPClient

	// toolToServer maps tool name to the client that provides it.
	toolToServer map[string]*MCPClient

	// resolved marks servers whose tools have been discovered. Servers
	// that failed are retried on the next call.
	resolved map[*MCPClient]bool
}

var _ tools.ToolExecutor = (*MCPExecutor)(nil)

// NewMCPExecutor creates a new MCPExecutor over the given clients.
func NewMCPExecutor(clients ...*MCPClient) *MCPExecutor {
	return &MCPExecutor{
		clients:      clients,
		toolToServer: make(map[string]*MCPClient),
		resolved:     make(map[*MCPClient]bool),
	}
}

// NewFromConfig creates an executor with one lazily connected client per
// server. Connections are opened on first discovery or call.
func NewFromConfig(servers []ServerConfig) (*MCPExecutor, error) {
	var errs []error
	clients := make([]*MCPClient, 0, len(servers))
	for i, s := range servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("mcp server %d: name is required", i))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp server %q: url is required", s.Name))
		}
		if err := s.Auth.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("mcp server %q: %w", s.Name, err))
		}
		clients = append(clients, NewMCPClient(s))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return NewMCPExecutor(clients...), nil
}

// Kind returns ToolKindMCP.
func (e *MCPExecutor) Kind() tools.ToolKind {
	return tools.ToolKindMCP
}

// Tools returns the tools discovered on every reachable server, in server
// order. It fails only when no server could be reached.
func (e *MCPExecutor) Tools(ctx context.Context) ([]api.ToolDefinition, error) {
	failed := e.ensureDiscovered(ctx)

	e.mu.RLock()
	defer e.mu.RUnlock()

	var allTools []api.ToolDefinition
	for _, client := range e.clients {
		if !e.resolved[client] {
			continue
		}
		client.mu.Lock()
		allTools = append(allTools, client.cachedTools...)
		client.mu.Unlock()
	}
	if len(e.clients) > 0 && failed == len(e.clients) {
		return nil, fmt.Errorf("no MCP server reachable")
	}
	return allTools, nil
}

// CanExecute returns true if any connected MCP server provides the named tool.
func (e *MCPExecutor) CanExecute(ctx context.Context, toolName string) bool {
	e.ensureDiscovered(ctx)

	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.toolToServer[toolName]
	return ok
}

// Execute routes the tool call to the correct MCP server and returns the result.
func (e *MCPExecutor) Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	e.ensureDiscovered(ctx)

	e.mu.RLock()
	client, ok := e.toolToServer[call.Name]
	e.mu.RUnlock()
	if !ok {
		return nil, &tools.ArgumentError{Message: "Unknown tool: " + call.Name}
	}

	return client.CallTool(ctx, call)
}

// Close closes all MCP client connections.
func (e *MCPExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var lastErr error
	for _, client := range e.clients {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close MCP client", "server", client.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// ensureDiscovered discovers the tools of every server not yet resolved
// and returns how many servers remain unresolved.
func (e *MCPExecutor) ensureDiscovered(ctx context.Context) int {
	e.mu.RLock()
	pending := len(e.resolved) < len(e.clients)
	e.mu.RUnlock()
	if !pending {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	failed := 0
	for _, client := range e.clients {
		if e.resolved[client] {
			continue
		}
		toolDefs, err := client.DiscoverTools(ctx)
		if err != nil {
			slog.Error("failed to discover tools from MCP server",
				"server", client.Name(),
				"error", err,
			)
			failed++
			continue
		}

		for _, td := range toolDefs {
			if owner, exists := e.toolToServer[td.Name]; exists {
				slog.Warn("duplicate MCP tool name, using first provider",
					"tool", td.Name,
					"server", client.Name(),
					"winner", owner.Name(),
				)
				continue
			}
			e.toolToServer[td.Name] = client
		}
		e.resolved[client] = true

		slog.Info("discovered MCP tools",
			"server", client.Name(),
			"count", len(toolDefs),
		)
	}
	return failed
}
