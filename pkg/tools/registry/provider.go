// Package registry aggregates built-in tool providers. A FunctionProvider
// contributes a set of tools the gateway executes itself, along with
// Prometheus collectors for provider-specific metrics.
//
// The FunctionRegistry implements tools.ToolExecutor so the tool proxy can
// treat all built-in providers as one executor.
package registry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/tools"
)

// FunctionProvider is a pluggable built-in tool provider.
type FunctionProvider interface {
	// Name returns a unique identifier for this provider (e.g., "jina").
	Name() string

	// Tools returns the tool definitions this provider contributes.
	Tools() []api.ToolDefinition

	// CanExecute reports whether this provider handles the named tool.
	CanExecute(name string) bool

	// Execute runs a tool call and returns the result.
	Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error)

	// Collectors returns Prometheus collectors for provider-specific metrics.
	Collectors() []prometheus.Collector

	// Close releases any resources held by the provider.
	Close() error
}
