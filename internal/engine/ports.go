package engine

import (
	"context"

	"authgate/internal/domain"
	id "authgate/pkg/domain"
)

// AccountProvider is the engine's view of the external account/session and
// tenant-membership systems. Implementations must return pre-materialized
// data; the engine performs no blocking I/O of its own and sets no
// deadlines. Timeout and retry are the collaborator's responsibility.
type AccountProvider interface {
	// Account returns the gating state for a user. A user unknown to the
	// account system is reported with sentinel.ErrNotFound.
	Account(ctx context.Context, userID id.UserID) (domain.Account, error)

	// Roles returns the role names assigned to the user within the tenant.
	Roles(ctx context.Context, userID id.UserID, tenantID id.TenantID) ([]string, error)

	// Relationships returns the user's coarse relationships with the
	// tenant, used to infer implicit roles.
	Relationships(ctx context.Context, userID id.UserID, tenantID id.TenantID) ([]domain.Relationship, error)
}
