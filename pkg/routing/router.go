package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/observability"
	"github.com/rhuss/weiche/pkg/provider"
)

// Router resolves model names and runs the fallback cascade.
type Router struct {
	source  Source
	rotator *Rotator
}

// NewRouter creates a Router reading routes from source.
func NewRouter(source Source, rotator *Rotator) *Router {
	if rotator == nil {
		rotator = NewRotator(RotatorOptions{})
	}
	return &Router{source: source, rotator: rotator}
}

// Result is a successful dispatch.
type Result struct {
	Outcome *provider.Outcome
	Route   string

	// Provider is the backend that succeeded.
	Provider ProviderConfig

	// Attempts counts adapter calls across all backends tried.
	Attempts int
}

// Table parses the current routes. A parse failure is a server_error.
func (r *Router) Table() (*Table, error) {
	raw, err := r.source.Routes()
	if err == nil {
		var t *Table
		if t, err = ParseTable(raw); err == nil {
			return t, nil
		}
	}
	slog.Error("invalid routes configuration", "error", err)
	return nil, api.NewServerError("invalid routes configuration")
}

// Resolve parses the current routes and resolves model.
func (r *Router) Resolve(model string) (*Resolution, error) {
	t, err := r.Table()
	if err != nil {
		return nil, err
	}
	return t.Resolve(model)
}

// Models lists the current routes.
func (r *Router) Models() (*api.ModelList, error) {
	t, err := r.Table()
	if err != nil {
		return nil, err
	}
	return t.Models(), nil
}

// Execute dispatches req to the first backend of its route that
// succeeds. Backends are tried strictly in configured order and the
// cascade stops at the first success. When all fail, the error carries
// the last backend's message and upstream status.
func (r *Router) Execute(ctx context.Context, req *api.CreateResponseRequest) (*Result, error) {
	if req.Model == "" {
		return nil, api.NewInvalidRequestError("model", "Model name is required")
	}

	res, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	hint := provider.Hint{
		Route:           res.Route,
		ReasoningEffort: res.Entry.Effort(),
		Metadata:        res.Entry.Metadata,
	}
	if effort := req.ReasoningEffort(); effort != "" {
		hint.ReasoningEffort = effort
	}
	call := provider.Call{Request: req, Hint: hint}

	var (
		lastErr     error
		lastBackend string
		attempts    int
	)
	for i, pc := range res.Providers {
		if i > 0 {
			observability.FallbacksTotal.WithLabelValues(res.Route).Inc()
		}
		debug.Log("routing", "trying provider",
			"route", res.Route,
			"backend", pc.Backend(),
			"position", i+1,
			"of", len(res.Providers),
		)

		rot, err := r.rotator.Execute(ctx, pc, call)
		attempts += rot.Attempts
		if err == nil {
			slog.Debug("provider succeeded", "route", res.Route, "backend", pc.Backend(), "attempts", attempts)
			return &Result{Outcome: rot.Outcome, Route: res.Route, Provider: pc, Attempts: attempts}, nil
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, err
		}

		slog.Warn("provider failed", "route", res.Route, "backend", pc.Backend(), "error", err.Error())
		lastErr = err
		lastBackend = pc.Backend()
	}

	return nil, allFailed(lastBackend, lastErr)
}

func allFailed(backend string, last error) *api.APIError {
	msg := "Unknown error"
	var f *provider.Failure
	if errors.As(last, &f) {
		msg = f.Message
	} else if last != nil {
		msg = last.Error()
	}
	return api.NewAllProvidersFailedError(
		provider.StatusOf(last),
		fmt.Sprintf("All providers failed. Last error (%s): %s", backend, msg),
	)
}
