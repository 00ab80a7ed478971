package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/observability"
	"github.com/rhuss/weiche/pkg/provider"
	"github.com/rhuss/weiche/pkg/routing"
	"github.com/rhuss/weiche/pkg/transport"
)

// Router dispatches a request to the first backend of its route that
// succeeds. *routing.Router implements it.
type Router interface {
	Execute(ctx context.Context, req *api.CreateResponseRequest) (*routing.Result, error)
}

// Engine bridges the transport layer and the router. It implements
// transport.ResponseCreator.
type Engine struct {
	router Router
	cfg    Config
}

// Ensure Engine implements transport.ResponseCreator at compile time.
var _ transport.ResponseCreator = (*Engine)(nil)

// New creates a new Engine. The router must not be nil.
func New(r Router, cfg Config) (*Engine, error) {
	if r == nil {
		return nil, fmt.Errorf("engine: router must not be nil")
	}
	return &Engine{router: r, cfg: cfg}, nil
}

// CreateResponse validates req, dispatches it and writes the result. Errors
// returned before anything was written are *api.APIError values for the
// transport to render. Once streaming has started every outcome, failures
// included, is reported in-band and nil is returned.
func (e *Engine) CreateResponse(ctx context.Context, req *api.CreateResponseRequest, w transport.ResponseWriter) error {
	if apiErr := api.ValidateRequest(req, e.cfg.validation()); apiErr != nil {
		return apiErr
	}

	// Cancelling this context stops the adapter's reader and closes the
	// backend body, whatever path returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	res, err := e.router.Execute(ctx, req)
	if err != nil {
		return err
	}
	debug.Log("engine", "dispatched",
		"model", req.Model,
		"route", res.Route,
		"backend", res.Provider.Backend(),
		"attempts", res.Attempts,
		"stream", req.Stream,
		"elapsed", time.Since(start),
	)

	out := res.Outcome
	if req.Stream {
		stream := out.Stream
		if stream == nil {
			stream = replay(out.Response)
		}
		return e.stream(ctx, req, res, stream, w)
	}

	var resp *api.Response
	if out.Stream != nil {
		resp, err = e.collect(ctx, req, res, out.Stream)
		if err != nil {
			return err
		}
	} else {
		resp = out.Response
		echo(resp, req)
	}
	observability.RecordUsage(res.Provider.Provider, res.Provider.Model, resp.Usage)
	return w.WriteResponse(ctx, resp)
}

// stream drives the translator from the backend events and writes each
// canonical event in order. Writes are serialized by construction: this
// goroutine is the only writer.
func (e *Engine) stream(ctx context.Context, req *api.CreateResponseRequest, res *routing.Result, events <-chan provider.Event, w transport.ResponseWriter) error {
	observability.StreamingConnections.Inc()
	defer observability.StreamingConnections.Dec()

	t := newTranslator(newResponse(req, res.Provider.Model))
	if err := e.write(ctx, w, t.start()); err != nil {
		return nil
	}

	idle, stop := e.idleTimer()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(context.Cause(ctx), transport.ErrResponseCancelled) {
				slog.Info("response cancelled", "response_id", t.base.ID)
				_ = e.write(context.WithoutCancel(ctx), w, t.cancel())
				return nil
			}
			slog.Debug("client disconnected during stream", "response_id", t.base.ID)
			return nil

		case <-idle.C():
			slog.Warn("backend stream idle timeout",
				"backend", res.Provider.Backend(),
				"timeout", e.cfg.StreamIdleTimeout,
			)
			_ = e.write(ctx, w, t.fail(api.NewBackendError(http.StatusGatewayTimeout,
				fmt.Sprintf("backend sent no data for %s", e.cfg.StreamIdleTimeout))))
			return nil

		case ev, ok := <-events:
			if !ok {
				// A closed channel without Done is a natural end of stream.
				return e.complete(ctx, w, t, res)
			}
			idle.reset()

			switch ev.Kind {
			case provider.EventError:
				slog.Warn("backend stream failed",
					"backend", res.Provider.Backend(),
					"error", ev.Err,
				)
				_ = e.write(ctx, w, t.fail(backendError(ev.Err)))
				return nil
			case provider.EventDone:
				t.handle(ev)
				return e.complete(ctx, w, t, res)
			default:
				if err := e.write(ctx, w, t.handle(ev)); err != nil {
					return nil
				}
			}
		}
	}
}

// complete writes the closing events and records usage.
func (e *Engine) complete(ctx context.Context, w transport.ResponseWriter, t *translator, res *routing.Result) error {
	events := t.finish()
	final := events[len(events)-1].Response
	observability.RecordUsage(res.Provider.Provider, res.Provider.Model, final.Usage)
	_ = e.write(ctx, w, events)
	return nil
}

// collect assembles a complete response from a backend stream for a
// non-streaming caller.
func (e *Engine) collect(ctx context.Context, req *api.CreateResponseRequest, res *routing.Result, events <-chan provider.Event) (*api.Response, error) {
	t := newTranslator(newResponse(req, res.Provider.Model))
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return last(t.finish()), nil
			}
			switch ev.Kind {
			case provider.EventError:
				return nil, backendError(ev.Err)
			case provider.EventDone:
				t.handle(ev)
				return last(t.finish()), nil
			default:
				t.handle(ev)
			}
		}
	}
}

func last(events []api.StreamEvent) *api.Response {
	return events[len(events)-1].Response
}

// write sends events in order and flushes once. It stops at the first
// failed write, which means the caller is gone.
func (e *Engine) write(ctx context.Context, w transport.ResponseWriter, events []api.StreamEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		if err := w.WriteEvent(ctx, ev); err != nil {
			debug.Log("engine", "event write failed", "type", ev.Type, "error", err)
			return err
		}
	}
	return w.Flush()
}

// backendError converts a mid-stream failure into the error object
// carried by response.failed.
func backendError(err error) *api.APIError {
	status := provider.StatusOf(err)
	if status == 0 {
		status = http.StatusBadGateway
	}
	msg := "backend stream failed"
	var f *provider.Failure
	switch {
	case errors.As(err, &f):
		msg = f.Message
	case err != nil:
		msg = err.Error()
	}
	return api.NewBackendError(status, msg)
}

// idleTimer fires when no backend event arrived for StreamIdleTimeout.
type idleTimer struct {
	timer   *time.Timer
	timeout time.Duration
}

func (e *Engine) idleTimer() (*idleTimer, func()) {
	it := &idleTimer{timeout: e.cfg.StreamIdleTimeout}
	if it.timeout <= 0 {
		return it, func() {}
	}
	it.timer = time.NewTimer(it.timeout)
	return it, func() { it.timer.Stop() }
}

// C returns the timer channel, or nil when the check is disabled.
func (it *idleTimer) C() <-chan time.Time {
	if it.timer == nil {
		return nil
	}
	return it.timer.C
}

func (it *idleTimer) reset() {
	if it.timer != nil {
		it.timer.Reset(it.timeout)
	}
}
