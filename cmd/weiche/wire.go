package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/auth"
	"github.com/rhuss/weiche/pkg/auth/noop"
	"github.com/rhuss/weiche/pkg/auth/sharedsecret"
	"github.com/rhuss/weiche/pkg/config"
	"github.com/rhuss/weiche/pkg/engine"
	"github.com/rhuss/weiche/pkg/routing"
	"github.com/rhuss/weiche/pkg/tools"
	"github.com/rhuss/weiche/pkg/tools/builtins/jina"
	"github.com/rhuss/weiche/pkg/tools/builtins/websearch"
	"github.com/rhuss/weiche/pkg/tools/mcp"
	"github.com/rhuss/weiche/pkg/tools/registry"
	transporthttp "github.com/rhuss/weiche/pkg/transport/http"
)

// gateway holds the assembled components of a running gateway.
type gateway struct {
	router *routing.Router
	engine *engine.Engine
	server *transporthttp.Server

	// routesFile is set when routes come from a file that can be watched.
	routesFile *routing.FileSource

	closers []func() error
}

// Close releases tool connections.
func (g *gateway) Close() {
	for _, c := range g.closers {
		if err := c(); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

// newRouteSource selects where the route table is read from. Inline
// routes win over a routes file.
func newRouteSource(cfg *config.Config) (routing.Source, *routing.FileSource, error) {
	if cfg.Routes.Inline != "" {
		return routing.StaticSource(cfg.Routes.Inline), nil, nil
	}
	if cfg.Routes.File == "" {
		return nil, nil, fmt.Errorf("no routes configured")
	}
	fs, err := routing.NewFileSource(cfg.Routes.File)
	if err != nil {
		return nil, nil, err
	}
	return fs, fs, nil
}

// newRouter builds the router over the configured route source. Backend
// credentials are looked up in the process environment.
func newRouter(cfg *config.Config) (*routing.Router, *routing.FileSource, error) {
	source, fs, err := newRouteSource(cfg)
	if err != nil {
		return nil, nil, err
	}
	rotator := routing.NewRotator(routing.RotatorOptions{
		Lookup:  routing.EnvLookup,
		Timeout: cfg.Engine.AttemptTimeout,
	})
	return routing.NewRouter(source, rotator), fs, nil
}

// newAuthMiddleware returns the shared-secret middleware. Without a token
// every request is admitted as the anonymous identity.
func newAuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	if !cfg.Auth.Enabled() {
		slog.Warn("authentication disabled, no shared secret configured")
		return auth.Middleware(&auth.AuthChain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}, auth.DefaultBypassEndpoints)
	}
	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{sharedsecret.New(cfg.Auth.Token)},
		DefaultDecision: auth.No,
	}
	return auth.Middleware(chain, auth.DefaultBypassEndpoints)
}

// newToolProxy assembles the tool proxy from the built-in Jina tools, the
// optional SearXNG web_search tool and the configured MCP servers. The
// returned closer releases MCP sessions.
func newToolProxy(cfg *config.Config, lookup func(string) (string, bool)) (*tools.Proxy, func() error, error) {
	reg := registry.New()

	keys := jina.ResolveKeys(cfg.Tools.Jina.KeyNames, cfg.Tools.Jina.Key, lookup)
	if len(keys) == 0 {
		slog.Warn("no Jina API keys configured, get_web_page and search will fail")
	}
	reg.Register(jina.New(keys))

	if cfg.Tools.WebSearch.URL != "" {
		ws, err := websearch.New(websearch.Config{
			URL:        cfg.Tools.WebSearch.URL,
			MaxResults: cfg.Tools.WebSearch.MaxResults,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("web_search: %w", err)
		}
		reg.Register(ws)
	}

	executors := []tools.ToolExecutor{reg}
	closers := []func() error{reg.Close}

	if servers := cfg.Tools.MCP.Servers; len(servers) > 0 {
		exec, err := mcp.NewFromConfig(mcpServers(servers))
		if err != nil {
			return nil, nil, err
		}
		executors = append(executors, exec)
		closers = append(closers, exec.Close)
		slog.Info("mcp servers configured", "count", len(servers))
	}

	closeAll := func() error {
		var last error
		for _, c := range closers {
			if err := c(); err != nil {
				last = err
			}
		}
		return last
	}
	return tools.NewProxy(tools.NewFilter(cfg.Tools.Allowed), executors...), closeAll, nil
}

func mcpServers(in []config.MCPServerConfig) []mcp.ServerConfig {
	out := make([]mcp.ServerConfig, 0, len(in))
	for _, s := range in {
		out = append(out, mcp.ServerConfig{
			Name:      s.Name,
			Transport: s.Transport,
			URL:       s.URL,
			Headers:   s.Headers,
			Auth: mcp.AuthConfig{
				Type:         s.Auth.Type,
				Token:        s.Auth.Token,
				TokenURL:     s.Auth.TokenURL,
				ClientID:     s.Auth.ClientID,
				ClientSecret: s.Auth.ClientSecret,
				Scopes:       s.Auth.Scopes,
			},
		})
	}
	return out
}

// newGateway wires router, engine, tools and the HTTP server.
func newGateway(cfg *config.Config) (*gateway, error) {
	router, fs, err := newRouter(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}

	eng, err := engine.New(router, engine.Config{
		StreamIdleTimeout: cfg.Engine.StreamIdleTimeout,
		Validation: api.ValidationConfig{
			MaxInputItems: cfg.Engine.MaxInputItems,
			MaxTools:      cfg.Engine.MaxTools,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	g := &gateway{router: router, engine: eng, routesFile: fs}

	adapterCfg := transporthttp.Config{
		MaxBodySize:       cfg.Server.MaxBodySize,
		RelayAllowedHosts: cfg.Relay.AllowedHosts,
		RelayTimeout:      cfg.Relay.Timeout,
		Metrics:           cfg.Observability.Metrics.Enabled,
		Auth:              newAuthMiddleware(cfg),
	}
	if cfg.Tools.Enabled {
		proxy, closeTools, err := newToolProxy(cfg, os.LookupEnv)
		if err != nil {
			return nil, fmt.Errorf("creating tool proxy: %w", err)
		}
		adapterCfg.Tools = proxy
		g.closers = append(g.closers, closeTools)
	}

	g.server = transporthttp.NewServer(eng, router,
		transporthttp.WithAddr(listenAddr(cfg)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithAdapterConfig(adapterCfg),
	)
	return g, nil
}

func listenAddr(cfg *config.Config) string {
	return cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)
}
