// Package transport defines the handler interfaces and middleware chain of
// the gateway's HTTP/SSE front door.
//
// ResponseCreator is the contract between the transport and the engine:
// the transport decodes a request, hands it over together with a
// ResponseWriter and renders any error returned before output started.
// ResponseWriter abstracts streaming and non-streaming output so the
// engine can emit SSE events or a complete JSON response without knowing
// the underlying protocol.
//
// The middleware chain wraps ResponseCreator with panic recovery, request
// ID assignment (X-Request-ID) and structured logging via log/slog.
// InFlightRegistry tracks streaming responses so they can be cancelled by
// ID. The HTTP binding lives in the http subpackage.
package transport
