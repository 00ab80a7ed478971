// Package websearch provides the web_search built-in tool over a
// pluggable search backend. SearXNG is the only backend so far.
package websearch

import "context"

// SearchResult holds a single search result.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchAdapter is the interface for pluggable search backends. Backend
// failures are reported as *tools.ToolError.
type SearchAdapter interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}
