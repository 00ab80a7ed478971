package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Authentication types accepted in AuthConfig.Type.
const (
	AuthNone                   = ""
	AuthBearer                 = "bearer"
	AuthOAuthClientCredentials = "oauth_client_credentials"
)

const tokenRequestTimeout = 10 * time.Second

// Validate checks that the fields required by the auth type are present.
func (a AuthConfig) Validate() error {
	switch a.Type {
	case AuthNone:
		return nil
	case AuthBearer:
		if a.Token == "" {
			return fmt.Errorf("bearer auth requires token")
		}
		return nil
	case AuthOAuthClientCredentials:
		if a.TokenURL == "" || a.ClientID == "" || a.ClientSecret == "" {
			return fmt.Errorf("oauth_client_credentials auth requires token_url, client_id and client_secret")
		}
		return nil
	default:
		return fmt.Errorf("unknown auth type %q", a.Type)
	}
}

// newHTTPClient builds the HTTP client for a server connection. It returns
// nil when neither headers nor auth are configured, leaving the SDK default
// in place.
func newHTTPClient(cfg ServerConfig) *http.Client {
	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Auth.Type == AuthBearer {
		headers["Authorization"] = "Bearer " + cfg.Auth.Token
	}

	var base http.RoundTripper = http.DefaultTransport
	if cfg.Auth.Type == AuthOAuthClientCredentials {
		base = oauthTransport(cfg.Auth, http.DefaultTransport)
	}

	if len(headers) == 0 && base == http.DefaultTransport {
		return nil
	}
	return &http.Client{Transport: &headerTransport{base: base, headers: headers}}
}

// oauthTransport returns a RoundTripper that obtains tokens through the
// client credentials grant and sets them as bearer tokens. Tokens are
// cached and refreshed by the oauth2 package before they expire.
func oauthTransport(a AuthConfig, base http.RoundTripper) http.RoundTripper {
	cc := &clientcredentials.Config{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		TokenURL:     a.TokenURL,
		Scopes:       a.Scopes,
	}
	tokenClient := &http.Client{Timeout: tokenRequestTimeout, Transport: base}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, tokenClient)
	return &oauth2.Transport{
		Source: cc.TokenSource(ctx),
		Base:   base,
	}
}

// headerTransport is an http.RoundTripper that adds custom headers to
// every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}
