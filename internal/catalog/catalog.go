// Package catalog maintains the merged role→action index consumed by the
// decision pipeline. The catalog itself is owned by an external provider;
// this package merges the base definitions with a static extra map and an
// optional dynamic provider function, hashes the merged content, and
// rebuilds the index only when the hash changes.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// RoleActions defines what a role may (and may not) do. IsAdmin implies
// every action. Denies are explicit role-level revocations and beat Actions
// within the role step.
type RoleActions struct {
	Actions []string `json:"actions"`
	Denies  []string `json:"denies,omitempty"`
	IsAdmin bool     `json:"is_admin,omitempty"`
}

// Catalog is the raw, unmerged action catalog as supplied by the provider.
type Catalog struct {
	Roles map[string]RoleActions `json:"roles"`
	// PublicActions are reachable by unauthenticated callers.
	PublicActions []string `json:"public_actions"`
	// TenantActions require tenant context on the request.
	TenantActions []string `json:"tenant_actions"`
}

// Provider merges base, extra, and dynamic role definitions and serves the
// resulting index. Extra entries override base entries on key collision;
// dynamic entries override both.
type Provider struct {
	mu      sync.Mutex
	base    Catalog
	extra   map[string]RoleActions
	dynamic func() map[string]RoleActions

	cached *Index
}

// Option configures a Provider.
type Option func(*Provider)

// WithExtra supplies static role definitions that override the base
// catalog on key collision.
func WithExtra(extra map[string]RoleActions) Option {
	return func(p *Provider) {
		p.extra = extra
	}
}

// WithDynamic supplies a runtime provider function whose entries override
// both base and extra definitions. The function must be safe for
// concurrent use and must not block; pre-materializing is the provider's
// responsibility.
func WithDynamic(fn func() map[string]RoleActions) Option {
	return func(p *Provider) {
		p.dynamic = fn
	}
}

// NewProvider builds a Provider over the given base catalog.
func NewProvider(base Catalog, opts ...Option) *Provider {
	p := &Provider{base: base}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Index returns the current merged index, rebuilding it only when the
// merged content hash has changed since the last call.
func (p *Provider) Index() *Index {
	p.mu.Lock()
	defer p.mu.Unlock()

	merged := p.merge()
	hash := hashCatalog(merged, p.base.PublicActions, p.base.TenantActions)
	if p.cached != nil && p.cached.hash == hash {
		return p.cached
	}
	p.cached = buildIndex(merged, p.base.PublicActions, p.base.TenantActions, hash)
	return p.cached
}

func (p *Provider) merge() map[string]RoleActions {
	merged := make(map[string]RoleActions, len(p.base.Roles))
	for name, ra := range p.base.Roles {
		merged[name] = ra
	}
	for name, ra := range p.extra {
		merged[name] = ra
	}
	if p.dynamic != nil {
		for name, ra := range p.dynamic() {
			merged[name] = ra
		}
	}
	return merged
}

// hashCatalog produces a deterministic digest of the merged catalog
// content. Any change to role definitions or action markings yields a new
// hash, which in turn retires every cache key built on the old one.
func hashCatalog(roles map[string]RoleActions, public, tenant []string) string {
	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		ra := roles[name]
		fmt.Fprintf(h, "role=%s admin=%t actions=%s denies=%s;",
			name, ra.IsAdmin, canonical(ra.Actions), canonical(ra.Denies))
	}
	fmt.Fprintf(h, "public=%s;tenant=%s", canonical(public), canonical(tenant))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func canonical(actions []string) string {
	sorted := make([]string, len(actions))
	copy(sorted, actions)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Index is an immutable snapshot of the merged catalog, safe for
// concurrent reads. It persists until the merged content hash changes.
type Index struct {
	hash         string
	roles        map[string]roleEntry
	public       map[string]struct{}
	tenantScoped map[string]struct{}
}

type roleEntry struct {
	actions map[string]struct{}
	denies  map[string]struct{}
	isAdmin bool
}

func buildIndex(roles map[string]RoleActions, public, tenant []string, hash string) *Index {
	ix := &Index{
		hash:         hash,
		roles:        make(map[string]roleEntry, len(roles)),
		public:       toSet(public),
		tenantScoped: toSet(tenant),
	}
	for name, ra := range roles {
		ix.roles[name] = roleEntry{
			actions: toSet(ra.Actions),
			denies:  toSet(ra.Denies),
			isAdmin: ra.IsAdmin,
		}
	}
	return ix
}

func toSet(ss []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		set[s] = struct{}{}
	}
	return set
}

// Hash returns the content digest of this snapshot.
func (ix *Index) Hash() string { return ix.hash }

// Allows reports whether the role grants the action, through admin status
// or an explicit action grant.
func (ix *Index) Allows(role, action string) bool {
	entry, ok := ix.roles[role]
	if !ok {
		return false
	}
	if entry.isAdmin {
		return true
	}
	_, ok = entry.actions[action]
	return ok
}

// Revokes reports whether the role explicitly denies the action. Admin
// status does not override an explicit revocation.
func (ix *Index) Revokes(role, action string) bool {
	entry, ok := ix.roles[role]
	if !ok {
		return false
	}
	_, ok = entry.denies[action]
	return ok
}

// Public reports whether the action is reachable by anonymous callers.
func (ix *Index) Public(action string) bool {
	_, ok := ix.public[action]
	return ok
}

// TenantScoped reports whether the action requires tenant context.
func (ix *Index) TenantScoped(action string) bool {
	_, ok := ix.tenantScoped[action]
	return ok
}
