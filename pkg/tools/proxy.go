package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/observability"
)

// Error codes of the tool proxy's flat error body.
const (
	CodeInvalidRequest = "invalid_request"
	CodeToolError      = "tool_error"
)

const maxExecuteBody = 1 << 20

// Proxy serves the tool list and tool execution endpoints over a set of
// executors. Executors are consulted in order; the first one that can run
// a tool name owns it.
type Proxy struct {
	executors []ToolExecutor
	filter    Filter
}

// NewProxy creates a Proxy over the given executors.
func NewProxy(filter Filter, executors ...ToolExecutor) *Proxy {
	return &Proxy{executors: executors, filter: filter}
}

// ServeHTTP answers GET with the tool list and POST with an execution.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		p.handleList(w, r)
	case http.MethodPost:
		p.handleExecute(w, r)
	default:
		writeToolError(w, http.StatusMethodNotAllowed, CodeInvalidRequest, "Method not allowed")
	}
}

type toolList struct {
	Object string      `json:"object"`
	Data   []toolEntry `json:"data"`
}

type toolEntry struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Definitions returns every tool offered by the executors that passes the
// filter. Tool names already offered by an earlier executor are skipped.
// An executor that cannot list its tools is logged and left out.
func (p *Proxy) Definitions(ctx context.Context) []api.ToolDefinition {
	seen := make(map[string]bool)
	var defs []api.ToolDefinition
	for _, e := range p.executors {
		list, err := e.Tools(ctx)
		if err != nil {
			slog.Warn("listing tools failed", "kind", e.Kind().String(), "error", err)
			continue
		}
		for _, d := range p.filter.Definitions(list) {
			if seen[d.Name] {
				debug.Log("tools", "duplicate tool name, keeping first", "tool", d.Name, "kind", e.Kind().String())
				continue
			}
			seen[d.Name] = true
			defs = append(defs, d)
		}
	}
	return defs
}

func (p *Proxy) handleList(w http.ResponseWriter, r *http.Request) {
	defs := p.Definitions(r.Context())
	list := toolList{Object: "list", Data: make([]toolEntry, 0, len(defs))}
	for _, d := range defs {
		list.Data = append(list.Data, toolEntry{
			ID:   d.Name,
			Type: "function",
			Function: toolFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	writeJSON(w, http.StatusOK, list)
}

type executeRequest struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

func (p *Proxy) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExecuteBody)).Decode(&req); err != nil {
		writeToolError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.Tool == "" || len(req.Arguments) == 0 || string(req.Arguments) == "null" {
		writeToolError(w, http.StatusBadRequest, CodeInvalidRequest, "Missing tool or arguments")
		return
	}

	exec := p.executorFor(r.Context(), req.Tool)
	if exec == nil {
		writeToolError(w, http.StatusBadRequest, CodeInvalidRequest, "Unknown tool: "+req.Tool)
		return
	}

	start := time.Now()
	result, err := exec.Execute(r.Context(), ToolCall{Name: req.Tool, Arguments: req.Arguments})
	debug.Log("tools", "tool executed",
		"tool", req.Tool,
		"kind", exec.Kind().String(),
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)

	if err != nil {
		var argErr *ArgumentError
		var toolErr *ToolError
		switch {
		case errors.As(err, &argErr):
			observability.ToolExecutionsTotal.WithLabelValues(req.Tool, "invalid_arguments").Inc()
			writeToolError(w, http.StatusBadRequest, CodeInvalidRequest, argErr.Message)
		case errors.As(err, &toolErr):
			observability.ToolExecutionsTotal.WithLabelValues(req.Tool, "error").Inc()
			writeToolError(w, toolErr.HTTPStatus(), CodeToolError, toolErr.Message)
		default:
			observability.ToolExecutionsTotal.WithLabelValues(req.Tool, "error").Inc()
			writeToolError(w, http.StatusInternalServerError, CodeToolError, err.Error())
		}
		return
	}

	if result.IsError {
		observability.ToolExecutionsTotal.WithLabelValues(req.Tool, "error").Inc()
		writeToolError(w, http.StatusInternalServerError, CodeToolError, result.Output)
		return
	}

	observability.ToolExecutionsTotal.WithLabelValues(req.Tool, "success").Inc()
	if len(result.JSON) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(result.JSON)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": result.Output})
}

func (p *Proxy) executorFor(ctx context.Context, name string) ToolExecutor {
	if !p.filter.Allows(name) {
		return nil
	}
	for _, e := range p.executors {
		if e.CanExecute(ctx, name) {
			return e
		}
	}
	return nil
}

type toolErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeToolError(w http.ResponseWriter, status int, code, msg string) {
	if msg == "" {
		msg = fmt.Sprintf("tool failed with HTTP %d", status)
	}
	writeJSON(w, status, toolErrorBody{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
