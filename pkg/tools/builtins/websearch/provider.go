package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/tools"
	"github.com/rhuss/weiche/pkg/tools/registry"
)

// ToolName is the name of the tool offered by this provider.
const ToolName = "web_search"

var toolParametersJSON = json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Search query"}},"required":["query"]}`)

// Config configures the web search provider.
type Config struct {
	// Backend selects the search backend. Empty means "searxng".
	Backend string `yaml:"backend"`

	// URL is the base URL of the SearXNG instance.
	URL string `yaml:"url"`

	// MaxResults caps the number of results returned. Zero means 5.
	MaxResults int `yaml:"max_results"`
}

// WebSearchProvider implements registry.FunctionProvider for web search.
type WebSearchProvider struct {
	adapter    SearchAdapter
	maxResults int
	backend    string
	queries    *prometheus.CounterVec
	results    *prometheus.HistogramVec
}

var _ registry.FunctionProvider = (*WebSearchProvider)(nil)

// New creates a WebSearchProvider.
func New(cfg Config) (*WebSearchProvider, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "searxng"
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	var adapter SearchAdapter
	switch backend {
	case "searxng":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("web_search: 'url' is required for searxng backend")
		}
		adapter = NewSearXNG(cfg.URL)
	default:
		return nil, fmt.Errorf("web_search: unknown backend %q", backend)
	}

	return newWithAdapter(adapter, backend, maxResults), nil
}

func newWithAdapter(adapter SearchAdapter, backend string, maxResults int) *WebSearchProvider {
	return &WebSearchProvider{
		adapter:    adapter,
		maxResults: maxResults,
		backend:    backend,
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weiche_websearch_queries_total",
				Help: "Total web search queries",
			},
			[]string{"backend", "status"},
		),
		results: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weiche_websearch_results_returned",
				Help:    "Number of web search results returned",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
			},
			[]string{"backend"},
		),
	}
}

// Name returns the provider identifier.
func (p *WebSearchProvider) Name() string {
	return ToolName
}

// Tools returns the tool definitions contributed by this provider.
func (p *WebSearchProvider) Tools() []api.ToolDefinition {
	return []api.ToolDefinition{
		{
			Type:        "function",
			Name:        ToolName,
			Description: "Search the web for current information",
			Parameters:  toolParametersJSON,
		},
	}
}

// CanExecute reports whether this provider handles the named tool.
func (p *WebSearchProvider) CanExecute(name string) bool {
	return name == ToolName
}

// Execute runs the web_search tool call and returns the formatted results.
func (p *WebSearchProvider) Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := call.DecodeArguments(&args); err != nil {
		p.queries.WithLabelValues(p.backend, "error").Inc()
		return nil, err
	}
	if strings.TrimSpace(args.Query) == "" {
		p.queries.WithLabelValues(p.backend, "error").Inc()
		return nil, &tools.ArgumentError{Message: "web_search requires arguments.query"}
	}

	results, err := p.adapter.Search(ctx, args.Query, p.maxResults)
	if err != nil {
		p.queries.WithLabelValues(p.backend, "error").Inc()
		return nil, err
	}

	p.queries.WithLabelValues(p.backend, "success").Inc()
	p.results.WithLabelValues(p.backend).Observe(float64(len(results)))

	return &tools.ToolResult{Output: formatResults(args.Query, results)}, nil
}

// Collectors returns the custom Prometheus metrics for this provider.
func (p *WebSearchProvider) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.queries, p.results}
}

// Close is a no-op for this provider.
func (p *WebSearchProvider) Close() error {
	return nil
}

// formatResults builds a human-readable text block from search results.
func formatResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)

	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   URL: %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}

	return b.String()
}
