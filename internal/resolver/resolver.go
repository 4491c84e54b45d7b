// Package resolver is the public entry point of the permission engine. It
// wraps the decision pipeline with cache-key construction, invalidation,
// trace assembly, metrics, and the audit hand-off. One long-lived Resolver
// is constructed at startup and shared by reference across all callers.
package resolver

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"authgate/internal/audit"
	"authgate/internal/cache"
	"authgate/internal/catalog"
	"authgate/internal/domain"
	"authgate/internal/engine"
	"authgate/internal/resolver/metrics"
	"authgate/internal/rules"
	id "authgate/pkg/domain"
	dErrors "authgate/pkg/domain-errors"
	"authgate/pkg/platform/circuit"
)

const (
	defaultCacheTTL        = 30 * time.Second
	defaultErrorBufferSize = 32
	cacheProbeInterval     = 16
)

// AuditSink receives decision events for hand-off. Emit must not block.
type AuditSink interface {
	Emit(ctx context.Context, event audit.Event)
}

// Deps are the collaborators the resolver and its pipeline consult.
type Deps struct {
	Accounts engine.AccountProvider
	Rules    rules.Store
	Catalog  *catalog.Provider
}

// Resolver is the facade over the decision pipeline and cache.
type Resolver struct {
	pipeline *engine.Pipeline
	catalog  *catalog.Provider
	cache    cache.Store
	breaker  *circuit.Breaker
	probes   atomic.Uint64
	versions *cache.Versions

	ttl          time.Duration
	traceEnabled bool
	logger       *slog.Logger
	metrics      *metrics.Metrics
	latencySink  func(time.Duration)
	auditSink    AuditSink
	recent       *errorBuffer
	tracer       trace.Tracer
	now          func() time.Time

	pipelineOpts []engine.Option
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithMetrics attaches Prometheus collectors. Without it the resolver
// records nothing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithCache sets the decision memo store. Without it every call
// recomputes.
func WithCache(store cache.Store) Option {
	return func(r *Resolver) {
		r.cache = store
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithTraceEnabled turns on trace capture for every call. Traced calls
// bypass the cache, so this is a debugging posture, not a production one.
func WithTraceEnabled(enabled bool) Option {
	return func(r *Resolver) {
		r.traceEnabled = enabled
	}
}

// WithLatencySink registers an external callback receiving the duration
// of every resolve. Failures inside the sink are swallowed.
func WithLatencySink(sink func(time.Duration)) Option {
	return func(r *Resolver) {
		r.latencySink = sink
	}
}

// WithAuditSink registers the decision event hand-off.
func WithAuditSink(sink AuditSink) Option {
	return func(r *Resolver) {
		r.auditSink = sink
	}
}

// WithErrorBufferSize bounds the recent step-error ring.
func WithErrorBufferSize(size int) Option {
	return func(r *Resolver) {
		r.recent = newErrorBuffer(size)
	}
}

// WithClock sets the time source for the resolver and its pipeline.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
		r.pipelineOpts = append(r.pipelineOpts, engine.WithClock(now))
	}
}

// WithPipelineOptions forwards extra options to the engine pipeline.
func WithPipelineOptions(opts ...engine.Option) Option {
	return func(r *Resolver) {
		r.pipelineOpts = append(r.pipelineOpts, opts...)
	}
}

// New constructs the resolver and its pipeline.
func New(deps Deps, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:  deps.Catalog,
		breaker:  circuit.New("decision-cache"),
		versions: cache.NewVersions(),
		ttl:      defaultCacheTTL,
		logger:   slog.Default(),
		recent:   newErrorBuffer(defaultErrorBufferSize),
		tracer:   otel.Tracer("authgate/internal/resolver"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	pipelineOpts := append([]engine.Option{
		engine.WithLogger(r.logger),
		engine.WithErrorSink(r.recordStepError),
	}, r.pipelineOpts...)

	r.pipeline = engine.New(engine.Deps{
		Accounts: deps.Accounts,
		Rules:    deps.Rules,
		Catalog:  deps.Catalog,
	}, pipelineOpts...)

	return r
}

// HasPermission reports whether the user may perform the action. Pass a
// zero tenant for tenant-less checks and an empty resource for
// action-level checks.
func (r *Resolver) HasPermission(ctx context.Context, user id.UserID, tenant id.TenantID, action, resource string) bool {
	req := domain.AccessRequest{User: user, Tenant: tenant, Action: action, Resource: resource}
	return r.resolve(ctx, cache.ModeHas, false, req, false).Allowed
}

// ExplainPermission returns the full decision. When forceTrace is set the
// pipeline re-runs with trace capture, bypassing the cache, since cached
// decisions do not retain trace history.
func (r *Resolver) ExplainPermission(ctx context.Context, user id.UserID, tenant id.TenantID, action, resource string, forceTrace bool) domain.Decision {
	req := domain.AccessRequest{User: user, Tenant: tenant, Action: action, Resource: resource}
	return r.resolve(ctx, cache.ModeExplain, false, req, forceTrace)
}

// Resolve is the legacy entry point. Its cache keys omit the mode
// segment, a keyspace deliberately distinct from modern callers; the
// resulting window of disagreement after an invalidation is contractual
// and closes once both keyspaces observe the same era and version.
func (r *Resolver) Resolve(ctx context.Context, userID, tenantID, action, resource string) bool {
	var req domain.AccessRequest
	req.Action = action
	req.Resource = resource

	if userID != "" {
		user, err := id.ParseUserID(userID)
		if err != nil {
			r.logger.WarnContext(ctx, "legacy resolve with malformed user id", "error", err)
			return false
		}
		req.User = user
	}
	if tenantID != "" {
		tenant, err := id.ParseTenantID(tenantID)
		if err != nil {
			r.logger.WarnContext(ctx, "legacy resolve with malformed tenant id", "error", err)
			return false
		}
		req.Tenant = tenant
	}
	return r.resolve(ctx, "", true, req, false).Allowed
}

// InvalidateCache with two empty IDs bumps the global era, instantly
// invalidating every cached decision. With both IDs set it bumps only
// that (user, tenant) pair. Malformed or partial arguments are caller
// misuse and surface as hard errors.
func (r *Resolver) InvalidateCache(userID, tenantID string) error {
	if userID == "" && tenantID == "" {
		r.versions.BumpEra()
		r.logger.Info("global cache invalidation", "era", r.versions.Era())
		return nil
	}
	if userID == "" || tenantID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "scoped invalidation requires both user id and tenant id")
	}

	user, err := id.ParseUserID(userID)
	if err != nil {
		return err
	}
	tenant, err := id.ParseTenantID(tenantID)
	if err != nil {
		return err
	}

	r.versions.BumpIdentity(user, tenant)
	r.logger.Info("scoped cache invalidation",
		"user_id", user,
		"tenant_id", tenant,
		"version", r.versions.Identity(user, tenant),
	)
	return nil
}

// DebugPersonalized reports the score, candidacy, and exclusion reason of
// every personalized rule for the request without touching the cache.
func (r *Resolver) DebugPersonalized(ctx context.Context, user id.UserID, tenant id.TenantID, action, resource string) ([]engine.RuleScore, error) {
	req := domain.AccessRequest{User: user, Tenant: tenant, Action: action, Resource: resource}
	return r.pipeline.DebugPersonalized(ctx, req)
}

// AddPipelineStep appends a registered step to the evaluation order.
func (r *Resolver) AddPipelineStep(name string) error {
	return r.pipeline.AddStep(name)
}

// RemovePipelineStep removes a step from the evaluation order.
func (r *Resolver) RemovePipelineStep(name string) error {
	return r.pipeline.RemoveStep(name)
}

// ListPipelineSteps returns the active step names in order.
func (r *Resolver) ListPipelineSteps() []string {
	return r.pipeline.ListSteps()
}

// RegisterPipelineStep makes a custom step available to AddPipelineStep.
func (r *Resolver) RegisterPipelineStep(step engine.Step) error {
	return r.pipeline.RegisterStep(step)
}

// RecentErrors returns the most recent pipeline step failures, oldest
// first.
func (r *Resolver) RecentErrors() []StepError {
	return r.recent.list()
}

func (r *Resolver) resolve(ctx context.Context, mode cache.Mode, legacy bool, req domain.AccessRequest, forceTrace bool) domain.Decision {
	ctx, span := r.tracer.Start(ctx, "resolver.resolve", trace.WithAttributes(
		attribute.String("authgate.action", req.Action),
		attribute.Bool("authgate.legacy", legacy),
	))
	defer span.End()

	start := r.now()
	withTrace := forceTrace || r.traceEnabled

	ix := r.catalog.Index()
	era := r.versions.Era()
	version := r.versions.Identity(req.User, req.Tenant)

	var key string
	if legacy {
		key = cache.LegacyKey(era, ix.Hash(), version, req)
	} else {
		key = cache.Key(mode, era, ix.Hash(), version, req)
	}

	useCache := !withTrace && r.cache != nil && r.cacheUsable()

	if useCache {
		decision, ok, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			// Cache outage degrades to recompute, never to failure.
			r.cacheFailed(ctx, "cache get failed, recomputing", err)
			useCache = false
		case ok:
			r.breaker.RecordSuccess()
			r.observe(func() { r.metrics.CacheHits.Inc() })
			r.finish(ctx, req, decision, start)
			return decision
		default:
			r.breaker.RecordSuccess()
			r.observe(func() { r.metrics.CacheMisses.Inc() })
		}
	}

	decision := r.pipeline.Run(ctx, req, withTrace)

	// Exception decisions represent transient failures; memoizing one
	// would pin the outage for a full TTL.
	if useCache && decision.Source != domain.SourceException {
		if err := r.cache.Set(ctx, key, decision, r.ttl); err != nil {
			r.cacheFailed(ctx, "cache set failed", err)
		} else {
			r.breaker.RecordSuccess()
		}
	}

	r.finish(ctx, req, decision, start)
	return decision
}

// cacheUsable reports whether this call should consult the cache store.
// While the circuit is open only every cacheProbeInterval-th call probes
// the backend, so the breaker can close once it recovers.
func (r *Resolver) cacheUsable() bool {
	if !r.breaker.IsOpen() {
		return true
	}
	return r.probes.Add(1)%cacheProbeInterval == 0
}

// cacheFailed records a cache backend failure on the metrics and the
// breaker. Enough consecutive failures stop cache lookups entirely until
// the backend answers again.
func (r *Resolver) cacheFailed(ctx context.Context, msg string, err error) {
	r.observe(func() { r.metrics.CacheFailures.Inc() })
	if _, change := r.breaker.RecordFailure(); change.Opened {
		r.logger.WarnContext(ctx, "decision cache circuit opened")
	}
	r.logger.WarnContext(ctx, msg, "error", err)
}

// finish emits metrics, the latency sample, and the audit event. None of
// these may alter or abort the decision.
func (r *Resolver) finish(ctx context.Context, req domain.AccessRequest, decision domain.Decision, start time.Time) {
	elapsed := r.now().Sub(start)

	r.observe(func() {
		r.metrics.Decisions.WithLabelValues(
			req.Action, string(decision.Source), strconv.FormatBool(decision.Allowed),
		).Inc()
		r.metrics.Latency.Observe(elapsed.Seconds())
	})

	if r.latencySink != nil {
		func() {
			defer func() { _ = recover() }()
			r.latencySink(elapsed)
		}()
	}

	if r.auditSink != nil {
		event := audit.Event{
			Action:   req.Action,
			Resource: req.Resource,
			Allowed:  decision.Allowed,
			Source:   string(decision.Source),
			Reason:   decision.Reason,
			At:       r.now(),
		}
		if !req.User.IsNil() {
			event.UserID = req.User.String()
		}
		if req.HasTenant() {
			event.TenantID = req.Tenant.String()
		}
		func() {
			defer func() { _ = recover() }()
			r.auditSink.Emit(ctx, event)
		}()
	}
}

// observe runs a metrics mutation inside a non-propagating failure
// boundary. A metrics failure must never alter a decision.
func (r *Resolver) observe(f func()) {
	if r.metrics == nil {
		return
	}
	defer func() { _ = recover() }()
	f()
}

func (r *Resolver) recordStepError(step string, err error) {
	r.recent.record(StepError{At: r.now(), Step: step, Message: err.Error()})
	r.observe(func() { r.metrics.StepErrors.WithLabelValues(step).Inc() })
}
