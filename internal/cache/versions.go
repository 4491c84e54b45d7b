// Package cache memoizes permission decisions. Invalidation never scans:
// bumping the global era or a per-identity version changes the keys new
// lookups compute, leaving stale entries unreachable until TTL reclaims
// them.
package cache

import (
	"sync"
	"sync/atomic"

	id "authgate/pkg/domain"
)

type identityKey struct {
	user   id.UserID
	tenant id.TenantID
}

// Versions tracks the global era and per-(user, tenant) versions. Pairs
// that were never invalidated stay at version 0 without occupying an
// entry, so the registry only grows with invalidation events.
type Versions struct {
	era        atomic.Uint64
	mu         sync.RWMutex
	identities map[identityKey]uint64
}

func NewVersions() *Versions {
	return &Versions{identities: make(map[identityKey]uint64)}
}

// Era returns the current global era.
func (v *Versions) Era() uint64 {
	return v.era.Load()
}

// BumpEra advances the global era, instantly invalidating every cached
// decision for every identity.
func (v *Versions) BumpEra() {
	v.era.Add(1)
}

// Identity returns the version for one (user, tenant) pair.
func (v *Versions) Identity(user id.UserID, tenant id.TenantID) uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.identities[identityKey{user, tenant}]
}

// BumpIdentity advances the version for one (user, tenant) pair, leaving
// every other pair's cached decisions intact.
func (v *Versions) BumpIdentity(user id.UserID, tenant id.TenantID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.identities[identityKey{user, tenant}]++
}
