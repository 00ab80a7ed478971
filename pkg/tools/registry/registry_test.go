package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/tools"
)

// mockProvider implements FunctionProvider for testing.
type mockProvider struct {
	name       string
	toolDefs   []api.ToolDefinition
	execFn     func(context.Context, tools.ToolCall) (*tools.ToolResult, error)
	collectors []prometheus.Collector
	closed     bool
}

func (m *mockProvider) Name() string                       { return m.name }
func (m *mockProvider) Tools() []api.ToolDefinition        { return m.toolDefs }
func (m *mockProvider) Collectors() []prometheus.Collector { return m.collectors }

func (m *mockProvider) CanExecute(name string) bool {
	for _, td := range m.toolDefs {
		if td.Name == name {
			return true
		}
	}
	return false
}

func (m *mockProvider) Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	if m.execFn != nil {
		return m.execFn(ctx, call)
	}
	return &tools.ToolResult{Output: "default"}, nil
}

func (m *mockProvider) Close() error {
	m.closed = true
	return nil
}

var _ FunctionProvider = (*mockProvider)(nil)

func TestRegistry_DiscoverTools(t *testing.T) {
	reg := New()

	reg.Register(&mockProvider{
		name: "test-provider",
		toolDefs: []api.ToolDefinition{
			{Type: "function", Name: "tool_a", Description: "Tool A"},
			{Type: "function", Name: "tool_b", Description: "Tool B"},
		},
	})

	discovered, err := reg.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools() error: %v", err)
	}
	if len(discovered) != 2 {
		t.Fatalf("Tools() returned %d tools, want 2", len(discovered))
	}
	if discovered[0].Name != "tool_a" || discovered[1].Name != "tool_b" {
		t.Errorf("names = %q, %q, want tool_a, tool_b", discovered[0].Name, discovered[1].Name)
	}
}

func TestRegistry_CanExecute(t *testing.T) {
	reg := New()
	reg.Register(&mockProvider{
		name:     "test-provider",
		toolDefs: []api.ToolDefinition{{Type: "function", Name: "known_tool"}},
	})

	ctx := context.Background()
	if !reg.CanExecute(ctx, "known_tool") {
		t.Error("expected CanExecute(known_tool) = true")
	}
	if reg.CanExecute(ctx, "unknown_tool") {
		t.Error("expected CanExecute(unknown_tool) = false")
	}
}

func TestRegistry_Execute(t *testing.T) {
	reg := New()
	reg.Register(&mockProvider{
		name:     "calc",
		toolDefs: []api.ToolDefinition{{Type: "function", Name: "add"}},
		execFn: func(_ context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
			var args struct {
				A, B int
			}
			json.Unmarshal(call.Arguments, &args)
			return &tools.ToolResult{Output: fmt.Sprintf("%d", args.A+args.B)}, nil
		},
	})

	before := testutil.ToFloat64(builtinToolExecutions.WithLabelValues("calc", "add", "success"))

	result, err := reg.Execute(context.Background(), tools.ToolCall{
		Name:      "add",
		Arguments: json.RawMessage(`{"A":3,"B":4}`),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Output != "7" {
		t.Errorf("Output = %q, want %q", result.Output, "7")
	}

	after := testutil.ToFloat64(builtinToolExecutions.WithLabelValues("calc", "add", "success"))
	if after-before != 1 {
		t.Errorf("success counter delta = %v, want 1", after-before)
	}
}

func TestRegistry_Execute_UnknownTool(t *testing.T) {
	reg := New()

	_, err := reg.Execute(context.Background(), tools.ToolCall{Name: "nonexistent"})
	var toolErr *tools.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("err = %v, want *tools.ToolError", err)
	}
}

func TestRegistry_ToolNameConflict(t *testing.T) {
	reg := New()

	reg.Register(&mockProvider{
		name:     "provider-1",
		toolDefs: []api.ToolDefinition{{Type: "function", Name: "shared_tool"}},
		execFn: func(context.Context, tools.ToolCall) (*tools.ToolResult, error) {
			return &tools.ToolResult{Output: "from-p1"}, nil
		},
	})
	reg.Register(&mockProvider{
		name:     "provider-2",
		toolDefs: []api.ToolDefinition{{Type: "function", Name: "shared_tool"}},
		execFn: func(context.Context, tools.ToolCall) (*tools.ToolResult, error) {
			return &tools.ToolResult{Output: "from-p2"}, nil
		},
	})

	result, err := reg.Execute(context.Background(), tools.ToolCall{Name: "shared_tool"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Output != "from-p1" {
		t.Errorf("Output = %q, want %q (first provider should win)", result.Output, "from-p1")
	}
}

func TestRegistry_PanicRecovery(t *testing.T) {
	reg := New()
	reg.Register(&mockProvider{
		name:     "panicky",
		toolDefs: []api.ToolDefinition{{Type: "function", Name: "crash_tool"}},
		execFn: func(context.Context, tools.ToolCall) (*tools.ToolResult, error) {
			panic("something went terribly wrong")
		},
	})

	result, err := reg.Execute(context.Background(), tools.ToolCall{Name: "crash_tool"})
	if result != nil {
		t.Errorf("result = %+v, want nil after panic", result)
	}
	var toolErr *tools.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("err = %v, want *tools.ToolError", err)
	}
	if toolErr.HTTPStatus() != 500 {
		t.Errorf("status = %d, want 500", toolErr.HTTPStatus())
	}
}

func TestRegistry_EmptyRegistry(t *testing.T) {
	reg := New()

	if discovered := reg.DiscoveredTools(); len(discovered) != 0 {
		t.Errorf("DiscoveredTools() returned %d tools, want 0", len(discovered))
	}
	if reg.CanExecute(context.Background(), "any_tool") {
		t.Error("expected CanExecute = false for empty registry")
	}
	if reg.HasProviders() {
		t.Error("expected HasProviders() = false for empty registry")
	}
	if err := reg.Close(); err != nil {
		t.Errorf("Close() on empty registry failed: %v", err)
	}
}

func TestRegistry_Kind(t *testing.T) {
	if New().Kind() != tools.ToolKindBuiltin {
		t.Errorf("Kind() = %v, want builtin", New().Kind())
	}
}

func TestRegistry_Close(t *testing.T) {
	reg := New()

	p1 := &mockProvider{name: "p1", toolDefs: []api.ToolDefinition{{Type: "function", Name: "t1"}}}
	p2 := &mockProvider{name: "p2", toolDefs: []api.ToolDefinition{{Type: "function", Name: "t2"}}}
	reg.Register(p1)
	reg.Register(p2)

	if err := reg.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !p1.closed || !p2.closed {
		t.Errorf("closed = %v, %v, want both closed", p1.closed, p2.closed)
	}
}

func TestRegistry_ExecuteError(t *testing.T) {
	reg := New()
	reg.Register(&mockProvider{
		name:     "error-provider",
		toolDefs: []api.ToolDefinition{{Type: "function", Name: "fail_tool"}},
		execFn: func(context.Context, tools.ToolCall) (*tools.ToolResult, error) {
			return nil, &tools.ToolError{Status: 503, Message: "upstream down"}
		},
	})

	before := testutil.ToFloat64(builtinToolExecutions.WithLabelValues("error-provider", "fail_tool", "error"))

	_, err := reg.Execute(context.Background(), tools.ToolCall{Name: "fail_tool"})
	var toolErr *tools.ToolError
	if !errors.As(err, &toolErr) || toolErr.Status != 503 {
		t.Fatalf("err = %v, want ToolError with status 503", err)
	}

	after := testutil.ToFloat64(builtinToolExecutions.WithLabelValues("error-provider", "fail_tool", "error"))
	if after-before != 1 {
		t.Errorf("error counter delta = %v, want 1", after-before)
	}
}

func TestRegistry_RegistersCollectors(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weiche_registry_test_collector_total",
		Help: "test",
	})
	reg := New()
	reg.Register(&mockProvider{name: "c", collectors: []prometheus.Collector{counter}})
	// A second registration of the same collector is tolerated.
	reg.Register(&mockProvider{name: "c2", collectors: []prometheus.Collector{counter}})

	if !reg.HasProviders() {
		t.Error("expected HasProviders() = true")
	}
}
