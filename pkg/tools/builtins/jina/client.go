package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/provider"
	"github.com/rhuss/weiche/pkg/tools"
)

// Default endpoints of the hosted Jina APIs.
const (
	DefaultReaderURL = "https://r.jina.ai/"
	DefaultSearchURL = "https://s.jina.ai/"
)

const maxResponseBody = 16 << 20

// errNoKeys is reported when no API key is configured.
const errNoKeys = "No Jina API keys configured (JINA_API_KEYS or JINA_API_KEY)"

// SearchParams are the arguments of a Jina Search request.
type SearchParams struct {
	Q    string `json:"q"`
	GL   string `json:"gl,omitempty"`
	HL   string `json:"hl,omitempty"`
	Num  int    `json:"num,omitempty"`
	Page int    `json:"page,omitempty"`
}

// Client calls Jina Reader and Jina Search, rotating over its API keys
// while the failures are transient.
type Client struct {
	keys       []string
	readerURL  string
	searchURL  string
	httpClient *http.Client

	// onRotate is called each time a key is abandoned for the next one.
	onRotate func(endpoint string, status int)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithEndpoints overrides the Reader and Search URLs.
func WithEndpoints(readerURL, searchURL string) Option {
	return func(cl *Client) {
		if readerURL != "" {
			cl.readerURL = readerURL
		}
		if searchURL != "" {
			cl.searchURL = searchURL
		}
	}
}

// NewClient creates a Client over the given keys, tried in order.
func NewClient(keys []string, opts ...Option) *Client {
	c := &Client{
		keys:       keys,
		readerURL:  DefaultReaderURL,
		searchURL:  DefaultSearchURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read fetches a page through Jina Reader and returns the raw JSON answer
// ({code, status, data}).
func (c *Client) Read(ctx context.Context, url string) (json.RawMessage, error) {
	return c.post(ctx, "reader", c.readerURL, map[string]string{"url": url})
}

// Search runs a Jina Search query and returns the raw JSON answer.
func (c *Client) Search(ctx context.Context, params SearchParams) (json.RawMessage, error) {
	return c.post(ctx, "search", c.searchURL, params)
}

func (c *Client) post(ctx context.Context, endpoint, url string, body any) (json.RawMessage, error) {
	if len(c.keys) == 0 {
		return nil, &tools.ToolError{Status: http.StatusInternalServerError, Message: errNoKeys}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &tools.ToolError{Message: fmt.Sprintf("encoding %s request: %v", endpoint, err), Err: err}
	}

	var last *tools.ToolError
	for i, key := range c.keys {
		data, err := c.postWithKey(ctx, endpoint, url, key, payload)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, &tools.ToolError{Message: ctx.Err().Error(), Err: ctx.Err()}
		}

		last = toToolError(err)
		// Network failures carry no upstream status and always move on.
		var f *provider.Failure
		if errors.As(err, &f) && f.Status != 0 && !provider.IsRetryable(f) {
			break
		}
		if i < len(c.keys)-1 {
			debug.Log("tools", "jina key failed, rotating",
				"endpoint", endpoint,
				"key", debug.Redact(key),
				"status", last.Status,
			)
			if c.onRotate != nil {
				c.onRotate(endpoint, last.Status)
			}
		}
	}
	return nil, last
}

func (c *Client) postWithKey(ctx context.Context, endpoint, url, key string, payload []byte) (json.RawMessage, error) {
	backend := "jina/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, provider.NewInternalFailure(backend, "creating request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &provider.Failure{Backend: backend, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &provider.Failure{Backend: backend, Message: "reading response: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.Failure{Backend: backend, Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
	}
	if !gjson.ValidBytes(data) {
		return nil, provider.NewInternalFailure(backend, "invalid JSON from Jina %s", endpoint)
	}
	debug.Trace("tools", "jina response", "endpoint", endpoint, "bytes", len(data))
	return json.RawMessage(data), nil
}

// errorMessage returns the "message" of a Jina error body, or the status
// text when the body has none.
func errorMessage(body []byte, status int) string {
	if msg := gjson.GetBytes(body, "message"); msg.Type == gjson.String && strings.TrimSpace(msg.Str) != "" {
		return msg.Str
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

func toToolError(err error) *tools.ToolError {
	var f *provider.Failure
	if errors.As(err, &f) {
		return &tools.ToolError{Status: f.Status, Message: f.Message, Err: f}
	}
	return &tools.ToolError{Message: err.Error(), Err: err}
}

// ResolveKeys returns the Jina API keys. names are environment variable
// names, each looked up through lookup; when names lists no variable the
// single key is used. Empty values are skipped.
func ResolveKeys(names []string, single string, lookup func(string) (string, bool)) []string {
	var keys []string
	named := 0
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		named++
		if v, ok := lookup(name); ok && v != "" {
			keys = append(keys, v)
		}
	}
	if named == 0 && single != "" {
		keys = append(keys, single)
	}
	return keys
}
