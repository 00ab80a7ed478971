package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/observability"
	"github.com/rhuss/weiche/pkg/transport"
)

// ServiceName is reported by the health endpoints.
const ServiceName = "weiche"

// Adapter serves the gateway front door over HTTP: response creation,
// model listing, health, cancellation, relay, tools and metrics.
type Adapter struct {
	creator  transport.ResponseCreator
	models   transport.ModelLister
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// RelayAllowedHosts lists the host[:port] values /relay may forward
	// to. An empty list rejects every relay target.
	RelayAllowedHosts []string
	RelayTimeout      time.Duration

	// Tools serves GET /tools and POST /tools/execute. Nil disables both.
	Tools http.Handler

	// Metrics enables request metrics and GET /metrics.
	Metrics bool

	// Auth wraps the mux after CORS, metrics and request ids. Nil leaves
	// every route open.
	Auth func(http.Handler) http.Handler
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:  10 << 20, // 10 MB
		RelayTimeout: 60 * time.Second,
		Metrics:      true,
	}
}

// NewAdapter creates an HTTP adapter. models may be nil, in which case the
// model list endpoints answer with an empty list. Middleware is applied to
// the ResponseCreator in the given order.
func NewAdapter(creator transport.ResponseCreator, models transport.ModelLister, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		creator = transport.Chain(middlewares...)(creator)
	}

	a := &Adapter{
		creator:  creator,
		models:   models,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("GET /{$}", a.handleHealth)
	a.mux.HandleFunc("GET /health", a.handleHealth)
	a.mux.HandleFunc("GET /models", a.handleModels)
	a.mux.HandleFunc("GET /v1/models", a.handleModels)
	a.mux.HandleFunc("DELETE /v1/responses/{id}", a.handleCancelResponse)
	a.mux.Handle("/relay", newRelayHandler(cfg.RelayAllowedHosts, cfg.RelayTimeout))

	tools := cfg.Tools
	if tools == nil {
		tools = http.HandlerFunc(toolsDisabled)
	}
	a.mux.Handle("GET /tools", tools)
	a.mux.Handle("POST /tools/execute", tools)

	if cfg.Metrics {
		a.mux.Handle("GET /metrics", promhttp.Handler())
	}

	a.mux.HandleFunc("/", a.handleCreate)

	return a
}

// Handler returns the http.Handler for this adapter. The HTTP-level
// middleware runs in the order CORS, metrics, request id, auth.
func (a *Adapter) Handler() http.Handler {
	var h http.Handler = a.mux
	if a.config.Auth != nil {
		h = a.config.Auth(h)
	}
	h = httpRequestIDMiddleware(h)
	if a.config.Metrics {
		h = observability.MetricsMiddleware(h)
	}
	return corsMiddleware(h)
}

// InFlight returns the registry of cancellable streaming responses.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// httpRequestIDMiddleware propagates the X-Request-ID header into the
// request context, generating one when the client sent none, and echoes it
// on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = transport.NewRequestID()
		}
		r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

type healthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// handleHealth handles GET / and GET /health.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{
		Status:    "ok",
		Service:   ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleModels handles GET /models and GET /v1/models.
func (a *Adapter) handleModels(w http.ResponseWriter, r *http.Request) {
	list := &api.ModelList{Object: "list", Data: []api.Model{}}
	if a.models != nil {
		var err error
		list, err = a.models.Models()
		if err != nil {
			transport.WriteError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCancelResponse handles DELETE /v1/responses/{id} by cancelling an
// in-flight streaming response.
func (a *Adapter) handleCancelResponse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateResponseID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed response ID"))
		return
	}
	if !a.inflight.Cancel(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "no in-flight response "+id),
			http.StatusNotFound,
		)
		return
	}
	debug.Log("transport", "response cancelled", "response_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleCreate handles every path not claimed by another route. POST
// creates a response; any other method is rejected.
func (a *Adapter) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		transport.WriteAPIError(w, api.NewMethodNotAllowedError())
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.CreateResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			transport.WriteAPIError(w, apiErr)
			return
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return
	}

	if req.Stream {
		a.handleStreamingResponse(w, r, &req)
		return
	}

	rw := newSSEResponseWriter(w, nil)
	if err := a.creator.CreateResponse(r.Context(), &req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleStreamingResponse runs a streaming request under a context that a
// DELETE on the response id can cancel.
func (a *Adapter) handleStreamingResponse(w http.ResponseWriter, r *http.Request, req *api.CreateResponseRequest) {
	ctx, cancel := context.WithCancelCause(r.Context())
	defer cancel(nil)

	var registeredID string
	rw := newSSEResponseWriter(w, func(id string) {
		registeredID = id
		a.inflight.Register(id, cancel)
	})

	err := a.creator.CreateResponse(ctx, req, rw)

	if registeredID != "" {
		a.inflight.Remove(registeredID)
	}
	if err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// writeHandlerError reports a handler error. An open event stream gets a
// response.failed event; otherwise a JSON error is written unless the
// response is already complete.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *sseResponseWriter, err error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError(err.Error())
	}

	switch {
	case rw.isStreaming():
		rw.WriteEvent(context.Background(), api.StreamEvent{
			Type: api.EventResponseFailed,
			Response: &api.Response{
				Object: "response",
				Status: api.ResponseStatusFailed,
				Output: []api.Item{},
				Error:  apiErr,
			},
		})
	case rw.hasStarted():
		debug.Log("transport", "error after response written", "error", err)
	default:
		transport.WriteError(w, apiErr)
	}
}

// toolsDisabled answers the tool routes when no tool proxy is configured.
func toolsDisabled(w http.ResponseWriter, r *http.Request) {
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("", "tool proxy is not configured"),
		http.StatusNotFound,
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
