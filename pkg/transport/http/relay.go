package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/transport"
)

// hopByHop headers are never forwarded in either direction.
var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"proxy-authorization": true,
	"proxy-authenticate":  true,
	"proxy-connection":    true,
}

// relayHandler forwards a request to the URL in the "url" query parameter
// when its host is on the allow-list, and streams the answer back.
type relayHandler struct {
	allowed map[string]bool
	client  *http.Client
}

func newRelayHandler(hosts []string, timeout time.Duration) *relayHandler {
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = true
		}
	}
	return &relayHandler{
		allowed: allowed,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *relayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target, apiErr := h.target(r.URL.Query().Get("url"))
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}
	debug.Log("relay", "forwarding", "method", r.Method, "host", target.Host)

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}
	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), body)
	if err != nil {
		transport.WriteAPIError(w, api.NewRelayRejectedError(http.StatusBadRequest, "Invalid or missing relay target URL"))
		return
	}
	copyHeaders(out.Header, r.Header)
	// The gateway's own credential is not meant for the relay target.
	out.Header.Del("Authorization")
	out.ContentLength = r.ContentLength
	if body == nil {
		out.ContentLength = 0
	}

	resp, err := h.client.Do(out)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		slog.Warn("relay upstream request failed", "host", target.Host, "error", err)
		transport.WriteAPIError(w, api.NewUpstreamUnavailableError("Relay upstream request failed"))
		return
	}
	defer resp.Body.Close()

	// CORS headers were set by the middleware; upstream values must not
	// replace them.
	cors := w.Header().Clone()
	copyHeaders(w.Header(), resp.Header)
	for k, v := range cors {
		if strings.HasPrefix(k, "Access-Control-") {
			w.Header()[k] = v
		}
	}
	w.WriteHeader(resp.StatusCode)

	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return
			}
			rc.Flush()
		}
		if readErr != nil {
			if readErr != io.EOF {
				debug.Log("relay", "upstream body ended early", "error", readErr)
			}
			return
		}
	}
}

// target validates the raw relay URL against scheme and allow-list.
func (h *relayHandler) target(raw string) (*url.URL, *api.APIError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, api.NewRelayRejectedError(http.StatusBadRequest, "Invalid or missing relay target URL")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, api.NewRelayRejectedError(http.StatusBadRequest, "Invalid or missing relay target URL")
	}
	if !h.allowed[strings.ToLower(u.Host)] {
		return nil, api.NewRelayRejectedError(http.StatusForbidden, "Relay target host not allowed")
	}
	return u, nil
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		lower := strings.ToLower(k)
		if hopByHop[lower] || strings.HasPrefix(lower, "proxy-") {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
