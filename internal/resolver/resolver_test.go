package resolver

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"authgate/internal/accounts"
	"authgate/internal/audit"
	"authgate/internal/cache"
	"authgate/internal/catalog"
	"authgate/internal/domain"
	"authgate/internal/engine"
	"authgate/internal/resolver/metrics"
	"authgate/internal/rules"
	id "authgate/pkg/domain"
	dErrors "authgate/pkg/domain-errors"
)

var resolverNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

type ResolverSuite struct {
	suite.Suite
	ctx      context.Context
	accounts *accounts.InMemoryProvider
	rules    *rules.InMemoryStore
	dynamic  map[string]catalog.RoleActions
	catalog  *catalog.Provider
	store    *cache.InMemoryStore
	resolver *Resolver

	user   id.UserID
	tenant id.TenantID
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
	s.accounts = accounts.NewInMemoryProvider()
	s.rules = rules.NewInMemoryStore()
	s.dynamic = map[string]catalog.RoleActions{}
	s.catalog = catalog.NewProvider(catalog.Catalog{
		Roles: map[string]catalog.RoleActions{
			"admin":  {IsAdmin: true},
			"viewer": {Actions: []string{"VIEW_REPORT"}},
		},
		PublicActions: []string{"VIEW_LANDING"},
		TenantActions: []string{"VIEW_REPORT"},
	}, catalog.WithDynamic(func() map[string]catalog.RoleActions { return s.dynamic }))

	s.store = cache.NewInMemoryStore(cache.WithClock(func() time.Time { return resolverNow }))
	s.resolver = s.newResolver()

	s.user = id.UserID(uuid.New())
	s.tenant = id.TenantID(uuid.New())
	s.accounts.PutAccount(domain.Account{ID: s.user, Authenticated: true, Active: true})
	s.accounts.AssignRoles(s.user, s.tenant, "viewer")
}

func (s *ResolverSuite) newResolver(opts ...Option) *Resolver {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	base := []Option{
		WithLogger(logger),
		WithCache(s.store),
		WithClock(func() time.Time { return resolverNow }),
	}
	return New(
		Deps{Accounts: s.accounts, Rules: s.rules, Catalog: s.catalog},
		append(base, opts...)...,
	)
}

func (s *ResolverSuite) TestHasPermission() {
	s.True(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))
	s.False(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "DELETE_TENANT", ""))
}

func (s *ResolverSuite) TestDeterminismUnderUnchangedEra() {
	first := s.resolver.ExplainPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", "", false)
	for range 5 {
		s.Equal(first, s.resolver.ExplainPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", "", false))
	}
}

func (s *ResolverSuite) TestCacheMasksStateChangesUntilInvalidated() {
	s.True(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))

	// Role removed, but the cached allow still serves.
	s.accounts.AssignRoles(s.user, s.tenant)
	s.True(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))

	s.Require().NoError(s.resolver.InvalidateCache("", ""))
	s.False(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))
}

func (s *ResolverSuite) TestGlobalInvalidationAffectsEveryPair() {
	otherUser := id.UserID(uuid.New())
	otherTenant := id.TenantID(uuid.New())
	s.accounts.PutAccount(domain.Account{ID: otherUser, Authenticated: true, Active: true})
	s.accounts.AssignRoles(otherUser, otherTenant, "viewer")

	s.True(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))
	s.True(s.resolver.HasPermission(s.ctx, otherUser, otherTenant, "VIEW_REPORT", ""))

	s.accounts.AssignRoles(s.user, s.tenant)
	s.accounts.AssignRoles(otherUser, otherTenant)

	// No per-identity version was ever bumped; the era alone must retire
	// both pairs' entries.
	s.Require().NoError(s.resolver.InvalidateCache("", ""))
	s.False(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))
	s.False(s.resolver.HasPermission(s.ctx, otherUser, otherTenant, "VIEW_REPORT", ""))
}

func (s *ResolverSuite) TestScopedInvalidationAffectsOnlyThatPair() {
	otherUser := id.UserID(uuid.New())
	otherTenant := id.TenantID(uuid.New())
	s.accounts.PutAccount(domain.Account{ID: otherUser, Authenticated: true, Active: true})
	s.accounts.AssignRoles(otherUser, otherTenant, "viewer")

	s.True(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))
	s.True(s.resolver.HasPermission(s.ctx, otherUser, otherTenant, "VIEW_REPORT", ""))

	s.accounts.AssignRoles(s.user, s.tenant)
	s.accounts.AssignRoles(otherUser, otherTenant)

	s.Require().NoError(s.resolver.InvalidateCache(s.user.String(), s.tenant.String()))

	s.False(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""),
		"invalidated pair recomputes")
	s.True(s.resolver.HasPermission(s.ctx, otherUser, otherTenant, "VIEW_REPORT", ""),
		"other pair still serves its cached decision")
}

func (s *ResolverSuite) TestCatalogChangeRetiresCachedDecisions() {
	s.False(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "EXPORT_REPORT", ""))

	// Catalog content change moves the hash segment of every key.
	s.dynamic["viewer"] = catalog.RoleActions{Actions: []string{"VIEW_REPORT", "EXPORT_REPORT"}}
	s.True(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "EXPORT_REPORT", ""))
}

func (s *ResolverSuite) TestInvalidateCacheArgumentContract() {
	s.Run("partial arguments rejected", func() {
		err := s.resolver.InvalidateCache(s.user.String(), "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("malformed user id rejected", func() {
		err := s.resolver.InvalidateCache("not-a-uuid", s.tenant.String())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("malformed tenant id rejected", func() {
		err := s.resolver.InvalidateCache(s.user.String(), "not-a-uuid")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ResolverSuite) TestExplainTraceFidelity() {
	s.Run("default deny carries default_result marker when traced", func() {
		d := s.resolver.ExplainPermission(s.ctx, s.user, s.tenant, "UNGRANTED_ACTION", "", true)
		s.Equal(domain.SourceDefault, d.Source)
		s.Contains(d.Trace, "default_result: deny")
	})

	s.Run("role allow never carries the default marker", func() {
		d := s.resolver.ExplainPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", "", true)
		s.Equal(domain.SourceRole, d.Source)
		s.NotContains(d.Trace, "default_result: deny")
	})

	s.Run("traced call bypasses the cache", func() {
		// Prime the untraced cache entry.
		s.resolver.ExplainPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", "", false)
		d := s.resolver.ExplainPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", "", true)
		s.NotEmpty(d.Trace, "forced trace must recompute, cached decisions retain no trace")
	})

	s.Run("untraced call has no trace", func() {
		d := s.resolver.ExplainPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", "", false)
		s.Empty(d.Trace)
	})
}

func (s *ResolverSuite) TestLegacyKeyspaceDisagreement() {
	s.True(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))
	s.accounts.AssignRoles(s.user, s.tenant)

	// The legacy keyspace has no entry yet, so it computes fresh and
	// disagrees with the still-cached modern result. This window is
	// contractual.
	s.False(s.resolver.Resolve(s.ctx, s.user.String(), s.tenant.String(), "VIEW_REPORT", ""))
	s.True(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))

	// A shared invalidation converges both keyspaces.
	s.Require().NoError(s.resolver.InvalidateCache("", ""))
	s.False(s.resolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))
	s.False(s.resolver.Resolve(s.ctx, s.user.String(), s.tenant.String(), "VIEW_REPORT", ""))
}

func (s *ResolverSuite) TestLegacyMalformedIDsDeny() {
	s.False(s.resolver.Resolve(s.ctx, "garbage", s.tenant.String(), "VIEW_REPORT", ""))
}

func (s *ResolverSuite) TestDebugPersonalized() {
	other := id.TenantID(uuid.New())
	applied := domain.PersonalizedRule{
		ID: id.RuleID(uuid.New()), UserID: s.user, TenantID: &s.tenant,
		Action: "VIEW_REPORT", Granted: false, CreatedAt: resolverNow,
	}
	excluded := domain.PersonalizedRule{
		ID: id.RuleID(uuid.New()), UserID: s.user, TenantID: &other,
		Action: "VIEW_REPORT", Granted: true, CreatedAt: resolverNow,
	}
	s.rules.Put(applied)
	s.rules.Put(excluded)

	scores, err := s.resolver.DebugPersonalized(s.ctx, s.user, s.tenant, "VIEW_REPORT", "")
	s.Require().NoError(err)
	s.Require().Len(scores, 2)

	s.Equal(applied.ID, scores[0].RuleID)
	s.True(scores[0].Applied)
	s.Equal(engine.ExclusionTenantMismatch, scores[1].ExclusionReason)

	// Debug must not warm the cache: the next has call still recomputes.
	s.Equal(0, s.store.Len())
}

func (s *ResolverSuite) TestPipelineStepAdmin() {
	s.Equal([]string{
		engine.StepAccountGates, engine.StepPersonalized, engine.StepRole,
		engine.StepImplicit, engine.StepDefault,
	}, s.resolver.ListPipelineSteps())

	s.Require().NoError(s.resolver.RemovePipelineStep(engine.StepImplicit))
	s.Error(s.resolver.RemovePipelineStep(engine.StepImplicit))
	s.Require().NoError(s.resolver.AddPipelineStep(engine.StepImplicit))
	s.Error(s.resolver.AddPipelineStep(engine.StepImplicit))
	s.Error(s.resolver.AddPipelineStep("unknown"))
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (domain.Decision, bool, error) {
	return domain.Decision{}, false, errors.New("cache store down")
}

func (failingCache) Set(context.Context, string, domain.Decision, time.Duration) error {
	return errors.New("cache store down")
}

func (s *ResolverSuite) TestCacheOutageDegradesToRecompute() {
	r := s.newResolver(WithCache(failingCache{}))

	s.True(r.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))

	// Unlike a healthy cache, every call observes state changes at once.
	s.accounts.AssignRoles(s.user, s.tenant)
	s.False(r.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))
}

type countingCache struct {
	gets int
}

func (c *countingCache) Get(context.Context, string) (domain.Decision, bool, error) {
	c.gets++
	return domain.Decision{}, false, errors.New("cache store down")
}

func (c *countingCache) Set(context.Context, string, domain.Decision, time.Duration) error {
	return errors.New("cache store down")
}

func (s *ResolverSuite) TestCacheCircuitOpensUnderRepeatedFailures() {
	counting := &countingCache{}
	r := s.newResolver(WithCache(counting))

	for range 10 {
		s.True(r.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))
	}

	// Five consecutive get failures open the circuit; later calls skip
	// the backend except for the occasional probe.
	s.Equal(5, counting.gets)
}

func (s *ResolverSuite) TestExceptionDecisionsAreNotCached() {
	boom := &flakyRuleStore{fail: true, inner: s.rules}
	flakyResolver := New(
		Deps{Accounts: s.accounts, Rules: boom, Catalog: s.catalog},
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		WithCache(s.store),
		WithClock(func() time.Time { return resolverNow }),
	)

	d := flakyResolver.ExplainPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", "", false)
	s.Equal(domain.SourceException, d.Source)
	s.Equal(0, s.store.Len(), "exception decisions must not be memoized")

	boom.fail = false
	s.True(flakyResolver.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))

	errs := flakyResolver.RecentErrors()
	s.Require().NotEmpty(errs)
	s.Equal(engine.StepPersonalized, errs[0].Step)
}

func (s *ResolverSuite) TestMetricsAndSinksNeverAlterDecisions() {
	var sinkCalls int
	r := s.newResolver(
		WithMetrics(metrics.NewWith(prometheus.NewRegistry())),
		WithLatencySink(func(time.Duration) {
			sinkCalls++
			panic("latency sink blew up")
		}),
		WithAuditSink(panickySink{}),
	)

	s.True(r.HasPermission(s.ctx, s.user, s.tenant, "VIEW_REPORT", ""))
	s.Positive(sinkCalls)
}

type panickySink struct{}

func (panickySink) Emit(context.Context, audit.Event) { panic("audit sink blew up") }

type flakyRuleStore struct {
	fail  bool
	inner rules.Store
}

func (f *flakyRuleStore) ListForUserAction(ctx context.Context, userID id.UserID, action string) ([]domain.PersonalizedRule, error) {
	if f.fail {
		return nil, errors.New("rule store outage")
	}
	return f.inner.ListForUserAction(ctx, userID, action)
}
