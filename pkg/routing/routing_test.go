package routing

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/weiche/pkg/api"
	"github.com/rhuss/weiche/pkg/provider"
	"github.com/rhuss/weiche/pkg/provider/factory"
)

const testRoutes = `{
	"fast": {
		"displayName": "Fast",
		"flags": ["cheap"],
		"metadata": {"reasoningEffort": "HIGH", "tier": "free"},
		"providers": [
			{"provider": "openai-compatible", "model": "llama-3.1-8b", "apiKeys": ["KEY_A", "KEY_B"], "baseUrl": "http://a",
			 "description": "small", "contextWindow": 8192, "maxOutputTokens": 2048,
			 "pricingCurrency": "USD", "inputPricePer1m": 0.1, "outputPricePer1m": 0.2},
			{"provider": "anthropic", "model": "claude-haiku", "apiKeys": ["KEY_C"]}
		]
	},
	"Deep-Think": [
		{"provider": "gemini", "model": "gemini-2.5-pro", "apiKeys": ["KEY_D"]}
	],
	"_default": {"providers": [{"provider": "openai", "model": "gpt-4.1-mini"}]}
}`

// scripted is a fake backend answering per credential.
type scripted struct {
	kind, model string
	answers     map[string]error
	mu          *sync.Mutex
	calls       *[]string
}

func (s *scripted) Kind() string  { return s.kind }
func (s *scripted) Model() string { return s.model }

func (s *scripted) Chat(ctx context.Context, call *provider.Call) (*provider.Outcome, error) {
	s.mu.Lock()
	*s.calls = append(*s.calls, s.kind+"/"+s.model+"#"+call.Credential)
	s.mu.Unlock()
	if err := s.answers[s.model+"#"+call.Credential]; err != nil {
		return nil, err
	}
	return &provider.Outcome{Response: &api.Response{Model: s.model, Status: api.ResponseStatusCompleted}}, nil
}

type harness struct {
	answers map[string]error
	calls   []string
	hints   []provider.Hint
	mu      sync.Mutex
}

func newHarness() *harness {
	return &harness{answers: map[string]error{}}
}

func (h *harness) factory(cfg provider.Config) (provider.Adapter, error) {
	if cfg.Kind == "broken" || !factory.Supported(cfg.Kind) {
		return nil, errors.New("unsupported provider kind")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	return &scripted{kind: cfg.Kind, model: cfg.Model, answers: h.answers, mu: &h.mu, calls: &h.calls}, nil
}

func (h *harness) router(t *testing.T, routes string, secrets map[string]string) *Router {
	t.Helper()
	lookup := func(name string) (string, bool) {
		v, ok := secrets[name]
		return v, ok && v != ""
	}
	return NewRouter(StaticSource(routes), NewRotator(RotatorOptions{Lookup: lookup, NewAdapter: h.factory}))
}

func fail(status int, msg string) error {
	return &provider.Failure{Backend: "test", Status: status, Message: msg}
}

func request(model string) *api.CreateResponseRequest {
	return &api.CreateResponseRequest{Model: model, Input: []api.Item{api.NewUserMessage("2+2?")}}
}

var allSecrets = map[string]string{"KEY_A": "sk-aaaa1111", "KEY_B": "sk-bbbb2222", "KEY_C": "sk-cccc3333", "KEY_D": "sk-dddd4444"}

func TestParseTable(t *testing.T) {
	table, err := ParseTable(testRoutes)
	require.NoError(t, err)

	assert.Equal(t, []string{"fast", "Deep-Think", "_default"}, table.Names())

	fast, ok := table.Route("fast")
	require.True(t, ok)
	require.Len(t, fast.Providers, 2)
	assert.Equal(t, "openai-compatible/llama-3.1-8b", fast.Providers[0].Backend())
	assert.Equal(t, []string{"KEY_A", "KEY_B"}, fast.Providers[0].APIKeys)
	assert.Equal(t, "high", fast.Effort())

	deep, ok := table.Route("Deep-Think")
	require.True(t, ok, "bare provider array form")
	assert.Equal(t, "gemini", deep.Providers[0].Provider)
	assert.Empty(t, deep.Effort())
}

func TestParseTable_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"not an object": `[1,2]`,
		"malformed":     `{"a": `,
		"no providers":  `{"a": {"providers": []}}`,
		"no routes":     `{}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTable(raw)
			assert.Error(t, err)
		})
	}
}

func TestParseTable_KeepsUnusableProviders(t *testing.T) {
	table, err := ParseTable(`{
		"fast": [{"provider": "openai-compatible", "model": "m1"}],
		"exp": [{"provider": "mistral", "model": "m2"}, {"provider": "openai"}, {"provider": "openai", "model": "m3"}]
	}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"fast", "exp"}, table.Names())

	exp, ok := table.Route("exp")
	require.True(t, ok)
	assert.Len(t, exp.Providers, 3)
}

func TestResolve(t *testing.T) {
	table, err := ParseTable(testRoutes)
	require.NoError(t, err)

	tests := []struct {
		model     string
		wantRoute string
		wantMatch MatchKind
	}{
		{"fast", "fast", MatchExact},
		{" fast ", "fast", MatchExact},
		{"FAST", "fast", MatchCaseInsensitive},
		{"deep-think", "Deep-Think", MatchCaseInsensitive},
		{"Claude-Haiku", "fast", MatchBackendModel},
		{"gemini-2.5-pro", "Deep-Think", MatchBackendModel},
		{"unknown-model", "_default", MatchDefault},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			res, err := table.Resolve(tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoute, res.Route)
			assert.Equal(t, tt.wantMatch, res.Match)
		})
	}

	res, err := table.Resolve("fast")
	require.NoError(t, err)
	assert.Equal(t, "llama-3.1-8b", res.Providers[0].Model, "providers keep configured order")
	assert.Equal(t, "claude-haiku", res.Providers[1].Model)
}

func TestResolve_DefaultPreference(t *testing.T) {
	table, err := ParseTable(`{"_default": [{"provider": "openai", "model": "b"}], "default": [{"provider": "openai", "model": "a"}]}`)
	require.NoError(t, err)
	res, err := table.Resolve("nope")
	require.NoError(t, err)
	assert.Equal(t, "default", res.Route)
}

func TestResolve_NotFound(t *testing.T) {
	table, err := ParseTable(`{"fast": [{"provider": "openai", "model": "gpt-4.1"}]}`)
	require.NoError(t, err)

	_, err = table.Resolve("slow")
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus())
	assert.Equal(t, api.CodeModelNotFound, apiErr.Code)
}

func TestRotator_RetryableThenSuccess(t *testing.T) {
	h := newHarness()
	h.answers["llama-3.1-8b#sk-aaaa1111"] = fail(http.StatusTooManyRequests, "rate limited")
	r := NewRotator(RotatorOptions{Lookup: func(n string) (string, bool) { v, ok := allSecrets[n]; return v, ok }, NewAdapter: h.factory})

	pc := ProviderConfig{Provider: "openai-compatible", Model: "llama-3.1-8b", APIKeys: []string{"KEY_A", "KEY_B"}}
	rot, err := r.Execute(context.Background(), pc, provider.Call{Request: request("fast")})
	require.NoError(t, err)
	require.NotNil(t, rot.Outcome)
	assert.Equal(t, 2, rot.Attempts)
	assert.Len(t, rot.Failures, 1)
	assert.Equal(t, []string{"openai-compatible/llama-3.1-8b#sk-aaaa1111", "openai-compatible/llama-3.1-8b#sk-bbbb2222"}, h.calls)
}

func TestRotator_NonRetryableStops(t *testing.T) {
	h := newHarness()
	h.answers["m#k1"] = fail(http.StatusUnauthorized, "invalid api key")
	r := NewRotator(RotatorOptions{Lookup: func(n string) (string, bool) { return strings.ToLower(n), true }, NewAdapter: h.factory})

	pc := ProviderConfig{Provider: "openai", Model: "m", APIKeys: []string{"K1", "K2"}}
	rot, err := r.Execute(context.Background(), pc, provider.Call{Request: request("x")})
	require.Error(t, err)
	assert.Equal(t, 1, rot.Attempts)
	assert.Equal(t, http.StatusUnauthorized, provider.StatusOf(err))
}

func TestRotator_AllRetryableKeepsLastStatus(t *testing.T) {
	h := newHarness()
	h.answers["m#k1"] = fail(http.StatusTooManyRequests, "rate limited")
	h.answers["m#k2"] = fail(http.StatusServiceUnavailable, "overloaded")
	r := NewRotator(RotatorOptions{Lookup: func(n string) (string, bool) { return strings.ToLower(n), true }, NewAdapter: h.factory})

	pc := ProviderConfig{Provider: "openai", Model: "m", APIKeys: []string{"K1", "K2"}}
	rot, err := r.Execute(context.Background(), pc, provider.Call{Request: request("x")})
	require.Error(t, err)
	assert.Equal(t, 2, rot.Attempts)
	assert.Equal(t, http.StatusServiceUnavailable, provider.StatusOf(err))
	assert.Contains(t, err.Error(), "overloaded")
}

func TestRotator_MissingCredentials(t *testing.T) {
	h := newHarness()
	r := NewRotator(RotatorOptions{Lookup: func(string) (string, bool) { return "", false }, NewAdapter: h.factory})

	pc := ProviderConfig{Provider: "openai", Model: "m", APIKeys: []string{"MISSING_1", "MISSING_2"}}
	rot, err := r.Execute(context.Background(), pc, provider.Call{Request: request("x")})
	require.Error(t, err)
	assert.Equal(t, 0, rot.Attempts, "no keyless call when keys were declared")
	assert.Equal(t, http.StatusInternalServerError, provider.StatusOf(err))
	assert.Contains(t, err.Error(), "MISSING_1, MISSING_2")
	assert.Empty(t, h.calls)
}

func TestRotator_KeylessBackend(t *testing.T) {
	h := newHarness()
	r := NewRotator(RotatorOptions{NewAdapter: h.factory})

	rot, err := r.Execute(context.Background(), ProviderConfig{Provider: "openai-compatible", Model: "local"}, provider.Call{Request: request("x")})
	require.NoError(t, err)
	assert.Equal(t, 1, rot.Attempts)
	assert.Equal(t, []string{"openai-compatible/local#"}, h.calls)
}

func TestRotator_AdapterConstructionFails(t *testing.T) {
	h := newHarness()
	r := NewRotator(RotatorOptions{NewAdapter: h.factory})

	_, err := r.Execute(context.Background(), ProviderConfig{Provider: "broken", Model: "m"}, provider.Call{Request: request("x")})
	require.Error(t, err)
	assert.False(t, provider.IsRetryable(err))
	assert.Equal(t, http.StatusInternalServerError, provider.StatusOf(err))
}

func TestRouter_FallbackStopsAtFirstSuccess(t *testing.T) {
	routes := `{"chain": [
		{"provider": "openai", "model": "p1", "apiKeys": ["KEY_A"]},
		{"provider": "anthropic", "model": "p2", "apiKeys": ["KEY_B"]},
		{"provider": "gemini", "model": "p3", "apiKeys": ["KEY_C"]}
	]}`
	h := newHarness()
	h.answers["p1#sk-aaaa1111"] = fail(http.StatusBadRequest, "bad request")
	r := h.router(t, routes, allSecrets)

	res, err := r.Execute(context.Background(), request("chain"))
	require.NoError(t, err)
	assert.Equal(t, "p2", res.Provider.Model)
	assert.Equal(t, "chain", res.Route)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []string{"openai/p1#sk-aaaa1111", "anthropic/p2#sk-bbbb2222"}, h.calls, "p3 must never be called")
}

func TestRouter_UnsupportedKindFallsThrough(t *testing.T) {
	routes := `{
		"fast": [{"provider": "openai-compatible", "model": "m1"}],
		"exp": [{"provider": "mistral", "model": "m2"}, {"provider": "openai", "model": "m3"}]
	}`
	h := newHarness()
	r := h.router(t, routes, nil)

	res, err := r.Execute(context.Background(), request("exp"))
	require.NoError(t, err)
	assert.Equal(t, "m3", res.Provider.Model)
	assert.Equal(t, []string{"openai/m3#"}, h.calls)

	res, err = r.Execute(context.Background(), request("fast"))
	require.NoError(t, err)
	assert.Equal(t, "m1", res.Provider.Model)

	models, err := r.Models()
	require.NoError(t, err)
	assert.Len(t, models.Data, 2)
}

func TestRouter_SecondCredentialSucceeds(t *testing.T) {
	h := newHarness()
	h.answers["llama-3.1-8b#sk-aaaa1111"] = fail(http.StatusTooManyRequests, "rate limit exceeded")
	r := h.router(t, testRoutes, allSecrets)

	res, err := r.Execute(context.Background(), request("fast"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "llama-3.1-8b", res.Provider.Model)
	assert.Equal(t, api.ResponseStatusCompleted, res.Outcome.Response.Status)
}

func TestRouter_AllProvidersFail(t *testing.T) {
	h := newHarness()
	h.answers["llama-3.1-8b#sk-aaaa1111"] = fail(http.StatusInternalServerError, "boom a")
	h.answers["claude-haiku#sk-cccc3333"] = fail(http.StatusInternalServerError, "boom c")
	r := h.router(t, testRoutes, allSecrets)

	_, err := r.Execute(context.Background(), request("fast"))
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.HTTPStatus())
	assert.Equal(t, api.CodeAllProvidersFailed, apiErr.Code)
	assert.Contains(t, apiErr.Message, "anthropic/claude-haiku")
	assert.Contains(t, apiErr.Message, "boom c")
}

func TestRouter_StatusPassthrough(t *testing.T) {
	h := newHarness()
	h.answers["gemini-2.5-pro#sk-dddd4444"] = fail(http.StatusTooManyRequests, "quota exhausted")
	r := h.router(t, testRoutes, allSecrets)

	_, err := r.Execute(context.Background(), request("Deep-Think"))
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatus())
}

func TestRouter_Errors(t *testing.T) {
	h := newHarness()

	_, err := h.router(t, testRoutes, allSecrets).Execute(context.Background(), request(""))
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus())

	_, err = h.router(t, `{not json`, allSecrets).Execute(context.Background(), request("fast"))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorTypeServerError, apiErr.Type)
	assert.Equal(t, "invalid routes configuration", apiErr.Message)

	_, err = h.router(t, `{"only": [{"provider": "openai", "model": "m"}]}`, allSecrets).Execute(context.Background(), request("other"))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus())
	assert.Empty(t, h.calls)
}

type hintRecorder struct {
	hints *[]provider.Hint
}

func (h hintRecorder) Kind() string  { return "openai" }
func (h hintRecorder) Model() string { return "m" }
func (h hintRecorder) Chat(ctx context.Context, call *provider.Call) (*provider.Outcome, error) {
	*h.hints = append(*h.hints, call.Hint)
	return &provider.Outcome{Response: &api.Response{}}, nil
}

func TestRouter_HintThreading(t *testing.T) {
	var hints []provider.Hint
	factory := func(provider.Config) (provider.Adapter, error) { return hintRecorder{hints: &hints}, nil }
	r := NewRouter(StaticSource(testRoutes), NewRotator(RotatorOptions{
		Lookup:     func(n string) (string, bool) { v, ok := allSecrets[n]; return v, ok },
		NewAdapter: factory,
	}))

	_, err := r.Execute(context.Background(), request("fast"))
	require.NoError(t, err)

	req := request("fast")
	low := "low"
	req.Reasoning = &api.ReasoningConfig{Effort: &low}
	_, err = r.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, hints, 2)
	assert.Equal(t, "fast", hints[0].Route)
	assert.Equal(t, "high", hints[0].ReasoningEffort)
	assert.Equal(t, "free", hints[0].Metadata["tier"])
	assert.Equal(t, "low", hints[1].ReasoningEffort, "request effort wins over the route hint")
}

func TestRouter_Models(t *testing.T) {
	r := newHarness().router(t, testRoutes, nil)
	list, err := r.Models()
	require.NoError(t, err)

	assert.Equal(t, "list", list.Object)
	require.Len(t, list.Data, 3)
	fast := list.Data[0]
	assert.Equal(t, "fast", fast.ID)
	assert.Equal(t, "model", fast.Object)
	assert.Equal(t, OwnedBy, fast.OwnedBy)
	assert.NotNil(t, fast.Permission)
	assert.Equal(t, "Fast", fast.DisplayName)
	assert.Equal(t, "small", fast.Description)
	assert.Equal(t, 8192, fast.ContextLength)
	assert.Equal(t, 2048, fast.MaxOutputTokens)
	require.NotNil(t, fast.Pricing)
	assert.Equal(t, "USD", fast.Pricing.Currency)
	assert.InDelta(t, 0.2, *fast.Pricing.OutputPer1M, 1e-9)
	assert.Equal(t, []string{"cheap"}, fast.Flags)

	assert.Equal(t, "Deep-Think", list.Data[1].DisplayName)
	assert.Nil(t, list.Data[1].Pricing)
}

func TestEnvSource(t *testing.T) {
	t.Setenv("WEICHE_TEST_ROUTES", "")
	t.Setenv("WEICHE_TEST_ROUTES_COMPAT", `{"a":[]}`)
	raw, err := EnvSource{Names: []string{"WEICHE_TEST_ROUTES", "WEICHE_TEST_ROUTES_COMPAT"}}.Routes()
	require.NoError(t, err)
	assert.Equal(t, `{"a":[]}`, raw)

	_, err = EnvSource{Names: []string{"WEICHE_TEST_ROUTES"}}.Routes()
	assert.Error(t, err)
}

func TestFileSource_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": [{"provider": "openai", "model": "m1"}]}`), 0o600))

	src, err := NewFileSource(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 4)
	go func() { _ = src.Watch(ctx, func() { changed <- struct{}{} }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"b": [{"provider": "openai", "model": "m2"}]}`), 0o600))

	require.Eventually(t, func() bool {
		raw, _ := src.Routes()
		return strings.Contains(raw, `"b"`)
	}, 5*time.Second, 20*time.Millisecond)

	table, err := NewRouter(src, nil).Table()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, table.Names())
}

func TestNewFileSource_Missing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
