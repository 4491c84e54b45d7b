package cache

import (
	"fmt"

	"authgate/internal/domain"
)

// Mode distinguishes the keyspaces of the modern entry points.
type Mode string

const (
	ModeHas     Mode = "has"
	ModeExplain Mode = "explain"
)

// Key builds the composite cache key for a modern call. Any catalog change
// or invalidation shows up in one of the leading segments, so prior keys
// become permanently unreachable without being deleted.
func Key(mode Mode, era uint64, catalogHash string, identityVersion uint64, req domain.AccessRequest) string {
	return fmt.Sprintf("authgate:decision:%s:e%d:c%s:v%d:%s:%s:%s:%s",
		mode, era, catalogHash, identityVersion,
		req.User, req.Tenant, req.Action, req.Resource)
}

// LegacyKey builds the key for the legacy resolve entry point. It omits
// the mode segment and therefore occupies a keyspace distinct from modern
// callers. This disagreement is contractual: legacy behavior is frozen and
// must not be unified with Key. Both keyspaces share era and identity
// versions, so invalidation converges them.
func LegacyKey(era uint64, catalogHash string, identityVersion uint64, req domain.AccessRequest) string {
	return fmt.Sprintf("authgate:decision:e%d:c%s:v%d:%s:%s:%s:%s",
		era, catalogHash, identityVersion,
		req.User, req.Tenant, req.Action, req.Resource)
}
