package routing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/rhuss/weiche/pkg/provider/factory"
)

// Reserved route names used when nothing else matches.
const (
	DefaultRoute    = "default"
	AltDefaultRoute = "_default"
)

// ProviderConfig is one backend of a route. Credential values are never
// stored here; APIKeys names the secrets to look up.
type ProviderConfig struct {
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	APIKeys  []string `json:"apiKeys,omitempty"`
	BaseURL  string   `json:"baseUrl,omitempty"`

	// Descriptive metadata, informational only.
	Description          string   `json:"description,omitempty"`
	ContextWindow        int      `json:"contextWindow,omitempty"`
	MaxInputTokens       int      `json:"maxInputTokens,omitempty"`
	MaxOutputTokens      int      `json:"maxOutputTokens,omitempty"`
	PricingCurrency      string   `json:"pricingCurrency,omitempty"`
	InputPricePer1M      *float64 `json:"inputPricePer1m,omitempty"`
	InputCachePricePer1M *float64 `json:"inputCachePricePer1m,omitempty"`
	OutputPricePer1M     *float64 `json:"outputPricePer1m,omitempty"`
}

// Backend returns the "<kind>/<model>" label used in logs and errors.
func (p ProviderConfig) Backend() string {
	return p.Provider + "/" + p.Model
}

// RouteEntry is the value of one route name.
type RouteEntry struct {
	Providers       []ProviderConfig `json:"providers"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
	DisplayName     string           `json:"displayName,omitempty"`
	Flags           []string         `json:"flags,omitempty"`
	ReasoningEffort string           `json:"reasoningEffort,omitempty"`
}

// UnmarshalJSON accepts the object form and the older bare provider array.
func (e *RouteEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		*e = RouteEntry{}
		return json.Unmarshal(trimmed, &e.Providers)
	}
	type plain RouteEntry
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*e = RouteEntry(p)
	return nil
}

// Effort returns the route's reasoning-effort hint from reasoningEffort or
// from the metadata keys reasoningEffort / reasoning_effort.
func (e *RouteEntry) Effort() string {
	if e.ReasoningEffort != "" {
		return strings.ToLower(e.ReasoningEffort)
	}
	for _, key := range []string{"reasoningEffort", "reasoning_effort"} {
		if s, ok := e.Metadata[key].(string); ok && s != "" {
			return strings.ToLower(s)
		}
	}
	return ""
}

// Table maps route names to entries. Names keep their configured order.
type Table struct {
	names  []string
	routes map[string]*RouteEntry
}

// ErrNoRoutes is returned for an empty routes configuration.
var ErrNoRoutes = errors.New("routes configuration is empty")

// ParseTable parses the routes JSON object. Every route needs at least
// one provider. A provider with an unknown kind or no model is kept and
// logged; it fails on its own at call time so fallback reaches the
// remaining providers of its route.
func ParseTable(raw string) (*Table, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrNoRoutes
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("routes: expected a JSON object")
	}

	t := &Table{routes: make(map[string]*RouteEntry)}
	var errs []error
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("routes: %w", err)
		}
		name, _ := tok.(string)

		var entry RouteEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("routes: route %q: %w", name, err)
		}
		if err := entry.validate(); err != nil {
			errs = append(errs, fmt.Errorf("route %q: %w", name, err))
			continue
		}
		entry.warnProviders(name)
		if _, dup := t.routes[name]; !dup {
			t.names = append(t.names, name)
		}
		t.routes[name] = &entry
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("routes: %w", err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(t.names) == 0 {
		return nil, ErrNoRoutes
	}
	return t, nil
}

func (e *RouteEntry) validate() error {
	if len(e.Providers) == 0 {
		return errors.New("no providers configured")
	}
	return nil
}

// warned holds provider problems already logged. The table is re-parsed
// on every request, so each problem is reported once per process.
var warned sync.Map

func (e *RouteEntry) warnProviders(route string) {
	for i, p := range e.Providers {
		var problem string
		switch {
		case p.Provider == "":
			problem = "provider kind is required"
		case !factory.Supported(p.Provider):
			problem = fmt.Sprintf("unsupported provider kind %q", p.Provider)
		case p.Model == "":
			problem = "model is required"
		default:
			continue
		}
		key := fmt.Sprintf("%s/%d/%s", route, i, problem)
		if _, seen := warned.LoadOrStore(key, struct{}{}); seen {
			continue
		}
		slog.Warn("route provider will fail at call time",
			"route", route,
			"provider", i,
			"problem", problem,
		)
	}
}

// Names returns the route names in configured order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Route returns the entry for an exact route name.
func (t *Table) Route(name string) (*RouteEntry, bool) {
	e, ok := t.routes[name]
	return e, ok
}
