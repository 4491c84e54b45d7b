// Package httptransport is the thin HTTP layer over the resolver. Handlers
// decode, delegate, and encode; authorization semantics live below.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"authgate/internal/domain"
	"authgate/internal/engine"
	"authgate/internal/resolver"
	id "authgate/pkg/domain"
	"authgate/pkg/platform/httputil"
	"authgate/pkg/requestcontext"
)

// Service defines the resolver operations the transport exposes.
type Service interface {
	HasPermission(ctx context.Context, user id.UserID, tenant id.TenantID, action, resource string) bool
	ExplainPermission(ctx context.Context, user id.UserID, tenant id.TenantID, action, resource string, forceTrace bool) domain.Decision
	InvalidateCache(userID, tenantID string) error
	DebugPersonalized(ctx context.Context, user id.UserID, tenant id.TenantID, action, resource string) ([]engine.RuleScore, error)
	AddPipelineStep(name string) error
	RemovePipelineStep(name string) error
	ListPipelineSteps() []string
	RecentErrors() []resolver.StepError
}

// Handler wires authorization endpoints to the resolver.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the caller-facing query endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/permissions/check", h.HandleCheck)
	r.Post("/permissions/explain", h.HandleExplain)
	r.Post("/permissions/debug", h.HandleDebug)
	r.Post("/cache/invalidate", h.HandleInvalidate)
}

// RegisterAdmin mounts the pipeline administration endpoints. The router
// places these behind the admin gate.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/pipeline/steps", h.HandleListSteps)
	r.Post("/pipeline/steps", h.HandleAddStep)
	r.Delete("/pipeline/steps/{name}", h.HandleRemoveStep)
	r.Get("/errors", h.HandleRecentErrors)
}

// HandleCheck handles POST /v1/permissions/check requests.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	allowed := h.service.HasPermission(ctx, req.ParsedUserID(), req.ParsedTenantID(), req.Action, req.Resource)

	h.logger.InfoContext(ctx, "permission checked",
		"request_id", requestID,
		"caller_id", requestcontext.CallerID(ctx),
		"user_id", req.UserID,
		"action", req.Action,
		"allowed", allowed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, CheckResponse{Allowed: allowed})
}

// HandleExplain handles POST /v1/permissions/explain requests.
func (h *Handler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ExplainRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision := h.service.ExplainPermission(ctx, req.ParsedUserID(), req.ParsedTenantID(), req.Action, req.Resource, req.Trace)

	h.logger.InfoContext(ctx, "permission explained",
		"request_id", requestID,
		"caller_id", requestcontext.CallerID(ctx),
		"user_id", req.UserID,
		"action", req.Action,
		"allowed", decision.Allowed,
		"source", decision.Source,
	)

	httputil.WriteJSON(w, http.StatusOK, FromDecision(decision))
}

// HandleDebug handles POST /v1/permissions/debug requests. It returns the
// per-rule scoring table without touching the cache.
func (h *Handler) HandleDebug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	scores, err := h.service.DebugPersonalized(ctx, req.ParsedUserID(), req.ParsedTenantID(), req.Action, req.Resource)
	if err != nil {
		h.logger.ErrorContext(ctx, "debug scoring failed",
			"request_id", requestID,
			"user_id", req.UserID,
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, DebugResponse{Rules: scores})
}

// HandleInvalidate handles POST /v1/cache/invalidate requests.
func (h *Handler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[InvalidateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.InvalidateCache(req.UserID, req.TenantID); err != nil {
		h.logger.WarnContext(ctx, "cache invalidation rejected",
			"request_id", requestID,
			"user_id", req.UserID,
			"tenant_id", req.TenantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "cache invalidated",
		"request_id", requestID,
		"caller_id", requestcontext.CallerID(ctx),
		"scoped", req.UserID != "",
	)

	w.WriteHeader(http.StatusNoContent)
}

// HandleListSteps handles GET /v1/admin/pipeline/steps requests.
func (h *Handler) HandleListSteps(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StepsResponse{Steps: h.service.ListPipelineSteps()})
}

// HandleAddStep handles POST /v1/admin/pipeline/steps requests.
func (h *Handler) HandleAddStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[StepRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.AddPipelineStep(req.Name); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "pipeline step added",
		"request_id", requestID,
		"caller_id", requestcontext.CallerID(ctx),
		"step", req.Name,
	)

	httputil.WriteJSON(w, http.StatusOK, StepsResponse{Steps: h.service.ListPipelineSteps()})
}

// HandleRemoveStep handles DELETE /v1/admin/pipeline/steps/{name} requests.
func (h *Handler) HandleRemoveStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	if err := h.service.RemovePipelineStep(name); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "pipeline step removed",
		"request_id", requestcontext.RequestID(ctx),
		"caller_id", requestcontext.CallerID(ctx),
		"step", name,
	)

	httputil.WriteJSON(w, http.StatusOK, StepsResponse{Steps: h.service.ListPipelineSteps()})
}

// HandleRecentErrors handles GET /v1/admin/errors requests.
func (h *Handler) HandleRecentErrors(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ErrorsResponse{Errors: h.service.RecentErrors()})
}
