// Package noop provides an authenticator that admits every request. It is
// used when no shared secret is configured.
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/weiche/pkg/auth"
)

// Authenticator always returns Yes with the anonymous identity.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	id := auth.Anonymous
	return auth.AuthResult{Decision: auth.Yes, Identity: &id}
}
