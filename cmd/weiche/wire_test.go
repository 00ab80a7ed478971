package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/auth"
	"github.com/rhuss/weiche/pkg/config"
	"github.com/rhuss/weiche/pkg/routing"
)

const testRoutes = `{
	"fast": {"displayName": "Fast", "providers": [
		{"provider": "openai", "model": "gpt-4o-mini", "apiKeys": ["TEST_OPENAI_KEY"]},
		{"provider": "anthropic", "model": "claude-3-5-haiku", "apiKeys": ["TEST_MISSING_KEY"]}
	]},
	"local": {"providers": [{"provider": "openai-compatible", "model": "llama", "baseUrl": "http://localhost:8000/v1"}]}
}`

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Routes.Inline = testRoutes
	cfg.Observability.Metrics.Enabled = false
	return &cfg
}

func TestNewRouteSource(t *testing.T) {
	cfg := testConfig()
	src, fs, err := newRouteSource(cfg)
	if err != nil {
		t.Fatalf("newRouteSource: %v", err)
	}
	if fs != nil {
		t.Error("inline routes returned a file source")
	}
	if raw, _ := src.Routes(); raw != testRoutes {
		t.Errorf("Routes() = %q", raw)
	}

	path := filepath.Join(t.TempDir(), "routes.json")
	if err := os.WriteFile(path, []byte(testRoutes), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.Routes.Inline = ""
	cfg.Routes.File = path
	src, fs, err = newRouteSource(cfg)
	if err != nil {
		t.Fatalf("newRouteSource(file): %v", err)
	}
	if fs == nil || fs.Path() != path {
		t.Fatalf("file source = %v, want %s", fs, path)
	}
	if raw, _ := src.Routes(); raw != testRoutes {
		t.Errorf("Routes() = %q", raw)
	}

	cfg.Routes.File = filepath.Join(t.TempDir(), "missing.json")
	if _, _, err := newRouteSource(cfg); err == nil {
		t.Error("expected error for missing routes file")
	}

	cfg.Routes.File = ""
	if _, _, err := newRouteSource(cfg); err == nil {
		t.Error("expected error without routes")
	}
}

func TestNewAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	open := newAuthMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := auth.IdentityFromContext(r.Context()); id == nil || id.Subject != auth.Anonymous.Subject {
			t.Errorf("identity = %v, want anonymous", id)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/responses", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("without a token: status = %d, want 204", rec.Code)
	}

	cfg.Auth.Token = "s3cret"
	mw := newAuthMiddleware(cfg)
	if mw == nil {
		t.Fatal("no middleware with a token")
	}
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"missing token", http.MethodPost, "/v1/responses", "", http.StatusUnauthorized},
		{"wrong token", http.MethodPost, "/v1/responses", "Bearer nope", http.StatusUnauthorized},
		{"bearer token", http.MethodPost, "/v1/responses", "Bearer s3cret", http.StatusNoContent},
		{"raw token", http.MethodPost, "/v1/responses", "s3cret", http.StatusNoContent},
		{"health bypass", http.MethodGet, "/health", "", http.StatusNoContent},
		{"post to root checked", http.MethodPost, "/", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func toolNames(t *testing.T, h http.Handler) []string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /tools = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data []struct {
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var names []string
	for _, d := range body.Data {
		names = append(names, d.Function.Name)
	}
	return names
}

func TestNewToolProxy(t *testing.T) {
	noEnv := func(string) (string, bool) { return "", false }

	cfg := testConfig()
	proxy, closeFn, err := newToolProxy(cfg, noEnv)
	if err != nil {
		t.Fatalf("newToolProxy: %v", err)
	}
	defer closeFn()
	if got := strings.Join(toolNames(t, proxy), ","); got != "get_web_page,search" {
		t.Errorf("tools = %s, want get_web_page,search", got)
	}

	cfg.Tools.WebSearch.URL = "http://searxng.invalid"
	proxy, closeFn2, err := newToolProxy(cfg, noEnv)
	if err != nil {
		t.Fatalf("newToolProxy(web_search): %v", err)
	}
	defer closeFn2()
	if got := strings.Join(toolNames(t, proxy), ","); got != "get_web_page,search,web_search" {
		t.Errorf("tools = %s, want web_search added", got)
	}

	cfg.Tools.Allowed = []string{"web_search"}
	proxy, closeFn3, err := newToolProxy(cfg, noEnv)
	if err != nil {
		t.Fatalf("newToolProxy(allowed): %v", err)
	}
	defer closeFn3()
	if got := strings.Join(toolNames(t, proxy), ","); got != "web_search" {
		t.Errorf("tools = %s, want only web_search", got)
	}
}

func TestNewToolProxy_InvalidMCPServer(t *testing.T) {
	cfg := testConfig()
	cfg.Tools.MCP.Servers = []config.MCPServerConfig{{Name: "docs"}}
	if _, _, err := newToolProxy(cfg, os.LookupEnv); err == nil {
		t.Error("expected error for MCP server without url")
	}
}

func TestMCPServers(t *testing.T) {
	got := mcpServers([]config.MCPServerConfig{{
		Name:      "docs",
		Transport: "sse",
		URL:       "http://mcp/sse",
		Headers:   map[string]string{"X-Tenant": "acme"},
		Auth: config.MCPAuthConfig{
			Type:         "oauth_client_credentials",
			TokenURL:     "http://idp/token",
			ClientID:     "id",
			ClientSecret: "secret",
			Scopes:       []string{"read"},
		},
	}})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	s := got[0]
	if s.Name != "docs" || s.Transport != "sse" || s.URL != "http://mcp/sse" || s.Headers["X-Tenant"] != "acme" {
		t.Errorf("server = %+v", s)
	}
	if s.Auth.ClientSecret != "secret" || s.Auth.TokenURL != "http://idp/token" || len(s.Auth.Scopes) != 1 {
		t.Errorf("auth = %+v", s.Auth)
	}
}

func TestNewGateway(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Token = "s3cret"

	g, err := newGateway(cfg)
	if err != nil {
		t.Fatalf("newGateway: %v", err)
	}
	defer g.Close()

	h := g.server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/models = %d: %s", rec.Code, rec.Body.String())
	}
	var list api.ModelList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data) != 2 || list.Data[0].ID != "fast" || list.Data[1].ID != "local" {
		t.Errorf("models = %+v", list.Data)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /v1/models without token = %d, want 401", rec.Code)
	}
}

func TestNewGateway_ToolsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Tools.Enabled = false

	g, err := newGateway(cfg)
	if err != nil {
		t.Fatalf("newGateway: %v", err)
	}
	defer g.Close()

	rec := httptest.NewRecorder()
	g.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	if rec.Code == http.StatusOK {
		t.Errorf("GET /tools = 200 with tools disabled")
	}
}

func TestListenAddr(t *testing.T) {
	cfg := testConfig()
	if got := listenAddr(cfg); got != ":8080" {
		t.Errorf("listenAddr = %q, want :8080", got)
	}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 9000
	if got := listenAddr(cfg); got != "127.0.0.1:9000" {
		t.Errorf("listenAddr = %q, want 127.0.0.1:9000", got)
	}
}

func TestPrintRoutes(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	table, err := routing.ParseTable(testRoutes)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	lookup := func(name string) (string, bool) {
		if name == "TEST_OPENAI_KEY" {
			return "sk-test", true
		}
		return "", false
	}

	var buf bytes.Buffer
	printRoutes(&buf, table, lookup)
	out := buf.String()

	for _, want := range []string{
		"fast (Fast)",
		"1. openai",
		"gpt-4o-mini",
		"1/1 keys",
		"2. anthropic",
		"0/1 keys",
		"local",
		"no keys",
		"http://localhost:8000/v1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "fast") > strings.Index(out, "local") {
		t.Errorf("routes not in configured order:\n%s", out)
	}
}

func TestPrintModels(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	table, err := routing.ParseTable(testRoutes)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	var buf bytes.Buffer
	printModels(&buf, table.Models())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), buf.String())
	}
	if lines[0] != "fast  Fast" {
		t.Errorf("line 0 = %q, want %q", lines[0], "fast  Fast")
	}
	if lines[1] != "local" {
		t.Errorf("line 1 = %q, want %q", lines[1], "local")
	}
}
