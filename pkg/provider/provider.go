package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/rhuss/weiche/pkg/api"
)

// Adapter abstracts one LLM backend family. Each adapter translates the
// canonical request into its backend's native request, issues exactly one
// outbound call and translates the answer back. Adapters never retry;
// credential rotation and fallback live in the routing package.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Adapter interface {
	// Kind returns the backend kind tag (e.g. "anthropic", "openai").
	Kind() string

	// Model returns the backend model identifier this adapter targets.
	Model() string

	// Chat performs one call. A non-nil error is always a *Failure.
	Chat(ctx context.Context, call *Call) (*Outcome, error)
}

// Hint carries route-level metadata into every adapter call for a route.
type Hint struct {
	// Route is the resolved route name.
	Route string

	// ReasoningEffort is "", "low", "medium", "high" or "xhigh". The
	// request's own reasoning.effort takes precedence over the route's.
	ReasoningEffort string

	// Metadata is the route's opaque metadata.
	Metadata map[string]any
}

// Call is a single adapter invocation.
type Call struct {
	Request    *api.CreateResponseRequest
	Credential string
	Hint       Hint
}

// Outcome is a successful adapter call: exactly one of Response or
// Stream is set. Stream is closed by the adapter once the backend stream
// ends, fails or ctx is cancelled.
type Outcome struct {
	Response *api.Response
	Stream   <-chan Event
}

// Config describes one backend as constructed from a route's provider entry.
type Config struct {
	Kind    string
	Model   string
	BaseURL string

	// Timeout bounds non-streaming calls. Streaming calls are bounded by
	// the caller's context only.
	Timeout time.Duration

	// HTTPClient overrides the client used for outbound calls.
	HTTPClient *http.Client
}

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 120 * time.Second

// Clients returns the client for non-streaming calls and the client for
// streams. The streaming client shares the transport but has no timeout,
// since a stream can legitimately outlive any fixed budget.
func (c Config) Clients() (call *http.Client, stream *http.Client) {
	base := c.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	call = &http.Client{Transport: base.Transport, Timeout: timeout}
	stream = &http.Client{Transport: base.Transport}
	return call, stream
}

// BaseURLOr returns the configured base URL without a trailing slash, or
// def when none is configured.
func (c Config) BaseURLOr(def string) string {
	u := c.BaseURL
	if u == "" {
		u = def
	}
	for len(u) > 0 && u[len(u)-1] == '/' {
		u = u[:len(u)-1]
	}
	return u
}
