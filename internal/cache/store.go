package cache

import (
	"context"
	"time"

	"authgate/internal/domain"
)

// Store is a key/value memo for decisions with per-entry TTL. A store
// failure is reported, not fatal: the resolver degrades to recomputing
// every call until the store recovers.
type Store interface {
	Get(ctx context.Context, key string) (domain.Decision, bool, error)
	Set(ctx context.Context, key string, decision domain.Decision, ttl time.Duration) error
}
