// Package auth guards the API with bearer-token authentication and an
// admin gate for pipeline mutation routes.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"authgate/internal/token"
	dErrors "authgate/pkg/domain-errors"
	"authgate/pkg/platform/httputil"
	"authgate/pkg/requestcontext"
)

// TokenValidator validates bearer tokens presented by calling services.
type TokenValidator interface {
	ValidateToken(tokenString string) (*token.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller identity on the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			raw, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx = requestcontext.WithCallerID(ctx, claims.CallerID)
			ctx = requestcontext.WithAdmin(ctx, claims.Admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects authenticated callers whose token lacks admin scope.
// It must run inside RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !requestcontext.Admin(ctx) {
				logger.WarnContext(ctx, "forbidden - admin scope required",
					"request_id", requestcontext.RequestID(ctx),
					"caller_id", requestcontext.CallerID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin scope required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
