package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Failure is the typed error every adapter returns. Status is the upstream
// HTTP status when one is known, 0 otherwise.
type Failure struct {
	// Backend identifies the adapter as "<kind>/<model>".
	Backend string
	Status  int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", f.Backend, f.Status, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Backend, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// StatusOf extracts the HTTP status carried by err. Deadlines and network
// timeouts count as 503, other network errors as 502. It returns 0 when
// nothing is known.
func StatusOf(err error) int {
	if err == nil {
		return 0
	}
	var f *Failure
	if errors.As(err, &f) && f.Status != 0 {
		return f.Status
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}
	return 0
}

// IsRetryable reports whether a failure is transient: HTTP 429, 502 or
// 503, or a message that mentions a rate limit, a timeout or an overload.
// Any other failure is permanent for the credential that produced it.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch StatusOf(err) {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "overloaded")
}

// NewHTTPFailure builds a Failure from a non-2xx response, extracting the
// upstream message from the body. The body is consumed but not closed.
func NewHTTPFailure(backend string, resp *http.Response) *Failure {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	msg := ExtractErrorMessage(data)
	if msg == "" {
		msg = fmt.Sprintf("backend returned HTTP %d", resp.StatusCode)
	}
	return &Failure{Backend: backend, Status: resp.StatusCode, Message: msg}
}

// NewNetworkFailure wraps a transport-level error.
func NewNetworkFailure(backend string, err error) *Failure {
	return &Failure{
		Backend: backend,
		Status:  StatusOf(err),
		Message: fmt.Sprintf("backend connection error: %s", err.Error()),
		Err:     err,
	}
}

// NewInternalFailure wraps an error raised inside the adapter itself,
// such as a request that cannot be encoded or a body that cannot be parsed.
func NewInternalFailure(backend string, format string, args ...any) *Failure {
	err := fmt.Errorf(format, args...)
	return &Failure{Backend: backend, Message: err.Error(), Err: err}
}

// errorMessagePaths covers the error body shapes of the supported
// backends: OpenAI/Anthropic/Gemini {"error":{"message"}}, bare
// {"error":"..."}, {"message":"..."} and Cloudflare {"errors":[{"message"}]}.
var errorMessagePaths = []string{
	"error.message",
	"error",
	"message",
	"errors.0.message",
	"detail",
}

// ExtractErrorMessage returns the human-readable message of an upstream
// error body, or the trimmed body itself when it is not JSON.
func ExtractErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !gjson.ValidBytes(body) {
		text := strings.TrimSpace(string(body))
		if len(text) > 512 {
			text = text[:512]
		}
		return text
	}
	for _, path := range errorMessagePaths {
		r := gjson.GetBytes(body, path)
		if r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
