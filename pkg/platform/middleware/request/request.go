// Package request assigns every inbound request an ID and makes it
// available to handlers and logs.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"authgate/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// Middleware ensures each request carries an ID. An inbound X-Request-ID
// is trusted when present so IDs stay stable across service hops.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
