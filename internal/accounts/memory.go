// Package accounts provides an in-memory implementation of the engine's
// account collaborator port. Account and membership management is owned by
// an external system; this adapter serves tests, development, and
// deployments that sync account state into the process.
package accounts

import (
	"context"
	"sync"

	"authgate/internal/domain"
	id "authgate/pkg/domain"
	"authgate/pkg/platform/sentinel"
)

type membershipKey struct {
	user   id.UserID
	tenant id.TenantID
}

// InMemoryProvider keeps account gating state, tenant role assignments,
// and relationships in locked maps.
type InMemoryProvider struct {
	mu            sync.RWMutex
	accounts      map[id.UserID]domain.Account
	roles         map[membershipKey][]string
	relationships map[membershipKey][]domain.Relationship
}

func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{
		accounts:      make(map[id.UserID]domain.Account),
		roles:         make(map[membershipKey][]string),
		relationships: make(map[membershipKey][]domain.Relationship),
	}
}

// PutAccount adds or replaces an account record.
func (p *InMemoryProvider) PutAccount(account domain.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[account.ID] = account
}

// AssignRoles replaces the user's roles within the tenant.
func (p *InMemoryProvider) AssignRoles(userID id.UserID, tenantID id.TenantID, roles ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[membershipKey{userID, tenantID}] = roles
}

// SetRelationships replaces the user's relationships with the tenant.
func (p *InMemoryProvider) SetRelationships(userID id.UserID, tenantID id.TenantID, rels ...domain.Relationship) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.relationships[membershipKey{userID, tenantID}] = rels
}

func (p *InMemoryProvider) Account(_ context.Context, userID id.UserID) (domain.Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if account, ok := p.accounts[userID]; ok {
		return account, nil
	}
	return domain.Account{}, sentinel.ErrNotFound
}

func (p *InMemoryProvider) Roles(_ context.Context, userID id.UserID, tenantID id.TenantID) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.roles[membershipKey{userID, tenantID}], nil
}

func (p *InMemoryProvider) Relationships(_ context.Context, userID id.UserID, tenantID id.TenantID) ([]domain.Relationship, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.relationships[membershipKey{userID, tenantID}], nil
}
