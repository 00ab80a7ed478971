package routing

import (
	"strings"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/debug"
	"github.com/rhuss/weiche/pkg/observability"
)

// MatchKind records which resolution step matched a model name.
type MatchKind string

const (
	MatchExact           MatchKind = "exact"
	MatchCaseInsensitive MatchKind = "case_insensitive"
	MatchBackendModel    MatchKind = "backend_model"
	MatchDefault         MatchKind = "default"
)

// Resolution is the outcome of resolving a model name.
type Resolution struct {
	Route     string
	Entry     *RouteEntry
	Providers []ProviderConfig
	Match     MatchKind
}

// Resolve maps a model name to a route. The first matching step wins:
// exact route name, case-insensitive route name, a provider model of any
// route (case-insensitive, in route order), then the default route. It
// returns a model_not_found error when nothing matches.
func (t *Table) Resolve(model string) (*Resolution, error) {
	name := strings.TrimSpace(model)

	res := t.resolve(name)
	if res == nil {
		observability.RouteResolutionsTotal.WithLabelValues("not_found").Inc()
		return nil, api.NewModelNotFoundError(model)
	}
	observability.RouteResolutionsTotal.WithLabelValues(string(res.Match)).Inc()
	debug.Log("routing", "model resolved",
		"model", model,
		"route", res.Route,
		"match", res.Match,
		"providers", len(res.Providers),
	)
	return res, nil
}

func (t *Table) resolve(name string) *Resolution {
	if e, ok := t.routes[name]; ok {
		return t.resolution(name, e, MatchExact)
	}

	lower := strings.ToLower(name)
	for _, n := range t.names {
		if strings.ToLower(n) == lower {
			return t.resolution(n, t.routes[n], MatchCaseInsensitive)
		}
	}

	for _, n := range t.names {
		for _, p := range t.routes[n].Providers {
			if strings.ToLower(p.Model) == lower {
				return t.resolution(n, t.routes[n], MatchBackendModel)
			}
		}
	}

	for _, n := range []string{DefaultRoute, AltDefaultRoute} {
		if e, ok := t.routes[n]; ok {
			return t.resolution(n, e, MatchDefault)
		}
	}
	return nil
}

func (t *Table) resolution(name string, e *RouteEntry, match MatchKind) *Resolution {
	return &Resolution{Route: name, Entry: e, Providers: e.Providers, Match: match}
}
