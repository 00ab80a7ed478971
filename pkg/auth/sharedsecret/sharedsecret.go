// Package sharedsecret provides an authenticator that admits requests
// carrying the gateway's shared secret, either as a Bearer token or as the
// raw Authorization header value. The secret is kept as a SHA-256 digest
// and compared in constant time.
package sharedsecret

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rhuss/weiche/pkg/auth"
)

// Subject is the identity subject of an admitted request.
const Subject = "shared-secret"

// Authenticator validates the Authorization header against one secret.
type Authenticator struct {
	digest [32]byte
}

// New creates an authenticator for secret. The plaintext is not stored.
func New(secret string) *Authenticator {
	return &Authenticator{digest: sha256.Sum256([]byte(secret))}
}

// Authenticate returns Yes for a matching token and No otherwise. A
// missing header is a No as well: the secret is the only credential the
// gateway knows.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	digest := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(digest[:], a.digest[:]) != 1 {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}
	return auth.AuthResult{Decision: auth.Yes, Identity: &auth.Identity{Subject: Subject}}
}
