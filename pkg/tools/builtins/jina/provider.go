// Package jina provides the built-in web tools backed by the hosted Jina
// APIs: get_web_page (Jina Reader) and search (Jina Search).
package jina

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/tools"
	"github.com/rhuss/weiche/pkg/tools/registry"
)

// Tool names.
const (
	ToolGetWebPage = "get_web_page"
	ToolSearch     = "search"
)

var (
	getWebPageParameters = json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"Full URL of the page to read (e.g. https://example.com/article)"}},"required":["url"]}`)

	searchParameters = json.RawMessage(`{"type":"object","properties":{` +
		`"q":{"type":"string","description":"Search query"},` +
		`"gl":{"type":"string","description":"Country code for search (e.g. US, DE)"},` +
		`"hl":{"type":"string","description":"Language code (e.g. en, de)"},` +
		`"num":{"type":"number","description":"Max number of results (default from API)"},` +
		`"page":{"type":"number","description":"Result page (for pagination)"}` +
		`},"required":["q"]}`)
)

// Provider implements registry.FunctionProvider for the Jina tools.
type Provider struct {
	client    *Client
	rotations *prometheus.CounterVec
}

var _ registry.FunctionProvider = (*Provider)(nil)

// New creates a Provider over the given API keys.
func New(keys []string, opts ...Option) *Provider {
	rotations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weiche_jina_key_rotations_total",
			Help: "Jina API key rotations after a transient failure",
		},
		[]string{"endpoint"},
	)
	client := NewClient(keys, opts...)
	client.onRotate = func(endpoint string, _ int) {
		rotations.WithLabelValues(endpoint).Inc()
	}
	return &Provider{client: client, rotations: rotations}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "jina" }

// Tools returns the get_web_page and search definitions.
func (p *Provider) Tools() []api.ToolDefinition {
	return []api.ToolDefinition{
		{
			Type:        "function",
			Name:        ToolGetWebPage,
			Description: "Read and extract main content from a single URL in LLM-friendly format (Jina Reader). Use when you already know the page URL.",
			Parameters:  getWebPageParameters,
		},
		{
			Type:        "function",
			Name:        ToolSearch,
			Description: "Search the web and get LLM-friendly content from search results (Jina Search). Use when you need to find information but do not have a specific URL.",
			Parameters:  searchParameters,
		},
	}
}

// CanExecute reports whether this provider handles the named tool.
func (p *Provider) CanExecute(name string) bool {
	return name == ToolGetWebPage || name == ToolSearch
}

// Execute runs a Jina tool. The Jina JSON answer is passed through as is.
func (p *Provider) Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	switch call.Name {
	case ToolGetWebPage:
		var args struct {
			URL string `json:"url"`
		}
		if err := call.DecodeArguments(&args); err != nil {
			return nil, err
		}
		if strings.TrimSpace(args.URL) == "" {
			return nil, &tools.ArgumentError{Message: "get_web_page requires arguments.url"}
		}
		data, err := p.client.Read(ctx, args.URL)
		if err != nil {
			return nil, err
		}
		return &tools.ToolResult{JSON: data}, nil

	case ToolSearch:
		var args SearchParams
		if err := call.DecodeArguments(&args); err != nil {
			return nil, err
		}
		if strings.TrimSpace(args.Q) == "" {
			return nil, &tools.ArgumentError{Message: "search requires arguments.q"}
		}
		data, err := p.client.Search(ctx, args)
		if err != nil {
			return nil, err
		}
		return &tools.ToolResult{JSON: data}, nil
	}
	return nil, &tools.ArgumentError{Message: "Unknown tool: " + call.Name}
}

// Collectors returns the key rotation counter.
func (p *Provider) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.rotations}
}

// Close is a no-op for this provider.
func (p *Provider) Close() error { return nil }
