// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services and the audit writer only read them
// through typed getters. Keeping this package free of net/http lets domain
// code consume request provenance without pulling in transport concerns, and
// makes the "never fails" contract trivial: a getter on a bare context just
// returns the zero value.
//
// Usage in services (read values):
//
//	actorID := requestcontext.ActorID(ctx)
//	corr := requestcontext.CorrelationID(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithActor(ctx, id, name)
//	ctx = requestcontext.WithCorrelationID(ctx, corr)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	actorIDKey       struct{}
	actorNameKey     struct{}
	clientIPKey      struct{}
	userAgentKey     struct{}
	pathKey          struct{}
	correlationIDKey struct{}
	requestTimeKey   struct{}
)

// ActorID retrieves the authenticated operator's identifier from the context.
// Returns "" if no actor is attached; audit writes proceed anonymously.
func ActorID(ctx context.Context) string {
	if v, ok := ctx.Value(actorIDKey{}).(string); ok {
		return v
	}
	return ""
}

// ActorName retrieves the operator's display name from the context.
func ActorName(ctx context.Context) string {
	if v, ok := ctx.Value(actorNameKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActor injects the operator identity into the context.
func WithActor(ctx context.Context, id, name string) context.Context {
	ctx = context.WithValue(ctx, actorIDKey{}, id)
	return context.WithValue(ctx, actorNameKey{}, name)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

// UserAgent retrieves the summarized User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(userAgentKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent summary into a context.
// Useful for service unit tests that don't run the HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// Path retrieves the request path from the context.
func Path(ctx context.Context) string {
	if v, ok := ctx.Value(pathKey{}).(string); ok {
		return v
	}
	return ""
}

// WithPath injects the request path into the context.
func WithPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, pathKey{}, path)
}

// CorrelationID retrieves the correlation identifier from the context.
// Returns "" when upstream middleware has not set one; the audit writer does
// not generate its own to avoid diverging from request tracing.
func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithCorrelationID injects a correlation identifier into the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for tests and for
// keeping one consistent timestamp across a batch operation.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
