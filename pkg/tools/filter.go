package tools

import "github.com/rhuss/weiche/pkg/api"

// Filter restricts the proxy to an allow-list of tool names. The zero
// value and an empty list allow every tool.
type Filter struct {
	allowed map[string]bool
}

// NewFilter builds a Filter from the allowed tool names.
func NewFilter(allowedTools []string) Filter {
	if len(allowedTools) == 0 {
		return Filter{}
	}
	allowed := make(map[string]bool, len(allowedTools))
	for _, name := range allowedTools {
		allowed[name] = true
	}
	return Filter{allowed: allowed}
}

// Allows reports whether the named tool passes the filter.
func (f Filter) Allows(name string) bool {
	return f.allowed == nil || f.allowed[name]
}

// Definitions returns the definitions that pass the filter, in order.
func (f Filter) Definitions(defs []api.ToolDefinition) []api.ToolDefinition {
	if f.allowed == nil {
		return defs
	}
	out := make([]api.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		if f.allowed[d.Name] {
			out = append(out, d)
		}
	}
	return out
}
