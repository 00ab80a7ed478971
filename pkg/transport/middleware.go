package transport

import "context"

// Middleware decorates a ResponseCreator. Chain(a, b)(h) runs a first.
type Middleware func(ResponseCreator) ResponseCreator

// Chain folds middlewares into one, outermost first.
func Chain(middlewares ...Middleware) Middleware {
	return func(next ResponseCreator) ResponseCreator {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	subjectKey
)

// ContextWithRequestID tags ctx with the request id echoed in X-Request-ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithSubject records who the gateway admitted the request as.
// The auth layer sets it; log lines read it.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext returns the admitted subject, or "" when the request
// never passed through authentication.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}
