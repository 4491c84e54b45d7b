package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"authgate/pkg/platform/middleware/auth"
	"authgate/pkg/platform/middleware/request"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// NewRouter assembles the full HTTP surface: unauthenticated health and
// metrics endpoints, the authenticated query API under /v1, and the
// admin-gated pipeline routes under /v1/admin. Health checks, if any,
// run on every /healthz call.
func NewRouter(h *Handler, validator auth.TokenValidator, logger *slog.Logger, checks ...HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Middleware)

	r.Get("/healthz", handleHealthz(logger, checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.RequireAuth(validator, logger))
		h.Register(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(logger))
			h.RegisterAdmin(r)
		})
	})

	return r
}

func handleHealthz(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		for _, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
