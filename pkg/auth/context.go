package auth

import (
	"context"

	"github.com/rhuss/weiche/pkg/transport"
)

type identityKey struct{}

// SetIdentity attaches the admitted identity to ctx and records its subject
// for the transport log line.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	if id == nil {
		return ctx
	}
	ctx = transport.ContextWithSubject(ctx, id.Subject)
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity set by Middleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
