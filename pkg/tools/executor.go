package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rhuss/weiche/pkg/api"
)

// ToolKind classifies how a tool is hosted and executed.
type ToolKind int

const (
	// ToolKindBuiltin is a tool the gateway executes itself by calling a
	// hosted web API (Jina Reader, Jina Search, SearXNG).
	ToolKindBuiltin ToolKind = iota

	// ToolKindMCP is a tool discovered on a configured MCP server. Calls
	// are forwarded over the Model Context Protocol.
	ToolKindMCP
)

func (k ToolKind) String() string {
	switch k {
	case ToolKindBuiltin:
		return "builtin"
	case ToolKindMCP:
		return "mcp"
	default:
		return "unknown"
	}
}

// ToolExecutor lists and executes a family of tools.
type ToolExecutor interface {
	// Kind returns the type of tools this executor handles.
	Kind() ToolKind

	// Tools returns the definitions of every tool this executor offers.
	Tools(ctx context.Context) ([]api.ToolDefinition, error)

	// CanExecute checks if this executor can handle the given tool name.
	CanExecute(ctx context.Context, toolName string) bool

	// Execute runs the tool. A failure reported by the tool backend is
	// returned as a *ToolError, a problem with the arguments as an
	// *ArgumentError.
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)
}

// ToolCall is a request to run one tool.
type ToolCall struct {
	// Name is the tool function name.
	Name string

	// Arguments is the JSON object of arguments.
	Arguments json.RawMessage
}

// DecodeArguments unmarshals the call arguments into v.
func (c ToolCall) DecodeArguments(v any) error {
	if len(c.Arguments) == 0 {
		return &ArgumentError{Message: c.Name + " requires arguments"}
	}
	if err := json.Unmarshal(c.Arguments, v); err != nil {
		return &ArgumentError{Message: fmt.Sprintf("invalid arguments for %s: %v", c.Name, err)}
	}
	return nil
}

// ToolResult is the output of a successful tool execution. JSON, when set,
// is returned to the caller verbatim; otherwise Output is wrapped as
// {"output": text}.
type ToolResult struct {
	JSON   json.RawMessage
	Output string

	// IsError marks output the tool itself flagged as an error.
	IsError bool
}

// ArgumentError reports arguments a tool cannot work with.
type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string { return e.Message }

// ToolError reports a failure of the tool backend. Status is the upstream
// HTTP status, 0 when none is known.
type ToolError struct {
	Status  int
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return e.Message
}

func (e *ToolError) Unwrap() error { return e.Err }

// HTTPStatus returns the status to report to the caller, 500 when the
// backend gave none.
func (e *ToolError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}
