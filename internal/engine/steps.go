package engine

import (
	"context"
	"errors"
	"fmt"

	"authgate/internal/catalog"
	"authgate/internal/domain"
	"authgate/internal/rules"
	"authgate/pkg/platform/sentinel"
)

// Built-in step names, addressable through the pipeline mutation API.
const (
	StepAccountGates = "account_gates"
	StepPersonalized = "personalized"
	StepRole         = "role"
	StepImplicit     = "implicit"
	StepDefault      = "default"
)

// accountGatesStep rejects callers whose account state forbids any access:
// unknown, anonymous (unless the action is public), inactive, blocked, or
// missing tenant context for a tenant-scoped action.
type accountGatesStep struct {
	accounts AccountProvider
	catalog  *catalog.Provider
	pipeline *Pipeline
}

func (s *accountGatesStep) Name() string { return StepAccountGates }

func (s *accountGatesStep) Evaluate(ctx context.Context, req domain.AccessRequest, tr *Trace) (*domain.Decision, error) {
	ix := s.catalog.Index()
	if ix == nil {
		return nil, fmt.Errorf("%w: no index", ErrCatalogUnavailable)
	}

	if req.User.IsNil() {
		return s.anonymous(ix, req, tr)
	}

	account, err := s.accounts.Account(ctx, req.User)
	if errors.Is(err, sentinel.ErrNotFound) {
		tr.Add("account_gate: invalid_user")
		return deny(domain.SourceInvalidUser, "user is not known to the account system"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}

	if !account.Authenticated {
		return s.anonymous(ix, req, tr)
	}
	if !account.Active {
		tr.Add("account_gate: inactive_user")
		return deny(domain.SourceInactiveUser, "account is inactive"), nil
	}
	if account.BlockedAt(s.pipeline.now()) {
		tr.Add("account_gate: account_block")
		return deny(domain.SourceAccountBlock, "account is blocked"), nil
	}
	if ix.TenantScoped(req.Action) && !req.HasTenant() {
		tr.Add("account_gate: no_tenant")
		return deny(domain.SourceNoTenant, "action requires tenant context"), nil
	}
	return nil, nil
}

func (s *accountGatesStep) anonymous(ix *catalog.Index, req domain.AccessRequest, tr *Trace) (*domain.Decision, error) {
	if ix.Public(req.Action) {
		tr.Add(fmt.Sprintf("public_allow:%s", req.Action))
		return allow(domain.SourcePublic, "action is public"), nil
	}
	tr.Add("account_gate: anonymous_user")
	return deny(domain.SourceAnonymousUser, "anonymous caller on a non-public action"), nil
}

// personalizedStep resolves per-user overrides. Rules whose tenant scope
// mismatches or whose resource is set but differs from the request are
// removed from candidacy entirely, not merely outranked.
type personalizedStep struct {
	rules    rules.Store
	pipeline *Pipeline
}

func (s *personalizedStep) Name() string { return StepPersonalized }

func (s *personalizedStep) Evaluate(ctx context.Context, req domain.AccessRequest, tr *Trace) (*domain.Decision, error) {
	all, err := s.rules.ListForUserAction(ctx, req.User, req.Action)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleStore, err)
	}

	candidates := filterCandidates(all, req, s.pipeline.now())
	if len(candidates) == 0 {
		return nil, nil
	}

	winner := SelectRule(candidates, req)
	tr.Add(fmt.Sprintf("personalized: rule=%s", winner.ID))
	if !winner.Granted {
		return deny(domain.SourcePersonalized, fmt.Sprintf("denied by personalized rule %s", winner.ID)), nil
	}
	return allow(domain.SourcePersonalized, fmt.Sprintf("granted by personalized rule %s", winner.ID)), nil
}

// roleStep grants through explicit tenant role assignment. It can also
// terminate with an explicit deny when a role carries a revocation for the
// action; that deny does not emit the default step's marker.
type roleStep struct {
	accounts AccountProvider
	catalog  *catalog.Provider
}

func (s *roleStep) Name() string { return StepRole }

func (s *roleStep) Evaluate(ctx context.Context, req domain.AccessRequest, tr *Trace) (*domain.Decision, error) {
	if !req.HasTenant() {
		return nil, nil
	}

	roleNames, err := s.accounts.Roles(ctx, req.User, req.Tenant)
	if err != nil {
		return nil, fmt.Errorf("%w: roles lookup: %v", ErrStepFailed, err)
	}
	ix := s.catalog.Index()
	if ix == nil {
		return nil, fmt.Errorf("%w: no index", ErrCatalogUnavailable)
	}

	// Revocations beat grants within this step.
	for _, role := range roleNames {
		if ix.Revokes(role, req.Action) {
			tr.Add(fmt.Sprintf("role_deny:%s", req.Action))
			return deny(domain.SourceRole, fmt.Sprintf("action revoked by role %q", role)), nil
		}
	}
	for _, role := range roleNames {
		if ix.Allows(role, req.Action) {
			tr.Add(fmt.Sprintf("role_allow:%s", req.Action))
			return allow(domain.SourceRole, fmt.Sprintf("granted by role %q", role)), nil
		}
	}
	return nil, nil
}

// implicitStep infers coarse relationship-based roles and allows a fixed
// action set per relationship.
type implicitStep struct {
	accounts AccountProvider
	grants   map[domain.Relationship][]string
}

func defaultImplicitGrants() map[domain.Relationship][]string {
	return map[domain.Relationship][]string{
		domain.RelationshipCounterparty: {"VIEW_PROFILE", "VIEW_SHARED_DOCUMENT"},
	}
}

func (s *implicitStep) Name() string { return StepImplicit }

func (s *implicitStep) Evaluate(ctx context.Context, req domain.AccessRequest, tr *Trace) (*domain.Decision, error) {
	if !req.HasTenant() {
		return nil, nil
	}

	relationships, err := s.accounts.Relationships(ctx, req.User, req.Tenant)
	if err != nil {
		return nil, fmt.Errorf("%w: relationships lookup: %v", ErrStepFailed, err)
	}

	for _, rel := range relationships {
		for _, action := range s.grants[rel] {
			if action == req.Action {
				tr.Add(fmt.Sprintf("implicit_allow:%s", req.Action))
				return allow(domain.SourceImplicit, fmt.Sprintf("granted by implicit role %q", rel)), nil
			}
		}
	}
	return nil, nil
}

// defaultStep is the terminal deny. It is the only step that emits the
// default_result trace marker.
type defaultStep struct{}

func (s *defaultStep) Name() string { return StepDefault }

func (s *defaultStep) Evaluate(_ context.Context, _ domain.AccessRequest, tr *Trace) (*domain.Decision, error) {
	tr.Add("default_result: deny")
	return deny(domain.SourceDefault, "no applicable rule"), nil
}

func allow(source domain.Source, reason string) *domain.Decision {
	return &domain.Decision{Allowed: true, Source: source, Reason: reason}
}

func deny(source domain.Source, reason string) *domain.Decision {
	return &domain.Decision{Allowed: false, Source: source, Reason: reason}
}
