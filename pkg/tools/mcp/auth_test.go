package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// mockTokenServer answers client credentials grants with the given token.
func mockTokenServer(t *testing.T, token string, status int) (*httptest.Server, *atomic.Int32, *atomic.Value) {
	t.Helper()
	var calls atomic.Int32
	var lastScope atomic.Value
	lastScope.Store("")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", r.Form.Get("grant_type"))
		}
		lastScope.Store(r.Form.Get("scope"))

		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, &lastScope
}

// headerEcho records the headers of every request it receives.
func headerEcho(t *testing.T) (*httptest.Server, *[]http.Header) {
	t.Helper()
	var seen []http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Clone())
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestNewHTTPClient_NothingConfigured(t *testing.T) {
	if c := newHTTPClient(ServerConfig{Name: "plain", URL: "http://x"}); c != nil {
		t.Errorf("newHTTPClient() = %v, want nil", c)
	}
}

func TestNewHTTPClient_StaticHeaders(t *testing.T) {
	target, seen := headerEcho(t)
	client := newHTTPClient(ServerConfig{Headers: map[string]string{"X-Api-Key": "k1"}})

	resp, err := client.Get(target.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if got := (*seen)[0].Get("X-Api-Key"); got != "k1" {
		t.Errorf("X-Api-Key = %q, want k1", got)
	}
}

func TestNewHTTPClient_Bearer(t *testing.T) {
	target, seen := headerEcho(t)
	client := newHTTPClient(ServerConfig{Auth: AuthConfig{Type: AuthBearer, Token: "static-token"}})

	resp, err := client.Get(target.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if got := (*seen)[0].Get("Authorization"); got != "Bearer static-token" {
		t.Errorf("Authorization = %q, want Bearer static-token", got)
	}
}

func TestNewHTTPClient_OAuthClientCredentials(t *testing.T) {
	tokenSrv, calls, scope := mockTokenServer(t, "test-token-123", http.StatusOK)
	target, seen := headerEcho(t)

	client := newHTTPClient(ServerConfig{
		Headers: map[string]string{"X-Tenant": "acme"},
		Auth: AuthConfig{
			Type:         AuthOAuthClientCredentials,
			TokenURL:     tokenSrv.URL,
			ClientID:     "my-client",
			ClientSecret: "my-secret",
			Scopes:       []string{"read", "write"},
		},
	})

	for i := 0; i < 2; i++ {
		resp, err := client.Get(target.URL)
		if err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
		resp.Body.Close()
	}

	for i, h := range *seen {
		if got := h.Get("Authorization"); got != "Bearer test-token-123" {
			t.Errorf("request %d: Authorization = %q", i, got)
		}
		if got := h.Get("X-Tenant"); got != "acme" {
			t.Errorf("request %d: X-Tenant = %q", i, got)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("token endpoint called %d times, want 1 (token not cached)", got)
	}
	if got := scope.Load().(string); got != "read write" {
		t.Errorf("scope = %q, want %q", got, "read write")
	}
}

func TestNewHTTPClient_OAuthFailure(t *testing.T) {
	tokenSrv, _, _ := mockTokenServer(t, "", http.StatusUnauthorized)
	target, seen := headerEcho(t)

	client := newHTTPClient(ServerConfig{Auth: AuthConfig{
		Type:         AuthOAuthClientCredentials,
		TokenURL:     tokenSrv.URL,
		ClientID:     "bad",
		ClientSecret: "bad",
	}})

	if _, err := client.Get(target.URL); err == nil {
		t.Fatal("expected error when the token cannot be obtained")
	}
	if len(*seen) != 0 {
		t.Errorf("target received %d requests without a token", len(*seen))
	}
}

func TestAuthConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr bool
	}{
		{"none", AuthConfig{}, false},
		{"bearer", AuthConfig{Type: AuthBearer, Token: "t"}, false},
		{"bearer without token", AuthConfig{Type: AuthBearer}, true},
		{"oauth", AuthConfig{Type: AuthOAuthClientCredentials, TokenURL: "http://t", ClientID: "c", ClientSecret: "s"}, false},
		{"oauth incomplete", AuthConfig{Type: AuthOAuthClientCredentials, TokenURL: "http://t"}, true},
		{"unknown", AuthConfig{Type: "kerberos"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
