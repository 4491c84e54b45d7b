// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them, and
// neither side needs net/http for it.
package requestcontext

import (
	"context"
)

type (
	callerIDKey  struct{}
	adminKey     struct{}
	requestIDKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyCallerID  = callerIDKey{}
	ContextKeyAdmin     = adminKey{}
	ContextKeyRequestID = requestIDKey{}
)

// CallerID retrieves the authenticated caller identifier from the context.
// Returns "" if not set.
func CallerID(ctx context.Context) string {
	if caller, ok := ctx.Value(ContextKeyCallerID).(string); ok {
		return caller
	}
	return ""
}

// WithCallerID injects a caller identifier into the context.
func WithCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, ContextKeyCallerID, callerID)
}

// Admin reports whether the authenticated caller holds admin scope.
func Admin(ctx context.Context) bool {
	if admin, ok := ctx.Value(ContextKeyAdmin).(bool); ok {
		return admin
	}
	return false
}

// WithAdmin marks the context as carrying admin scope.
func WithAdmin(ctx context.Context, admin bool) context.Context {
	return context.WithValue(ctx, ContextKeyAdmin, admin)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}
