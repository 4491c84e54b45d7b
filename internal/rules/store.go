// Package rules provides read access to personalized permission rules.
// Rule records are owned by an external system; the engine never writes
// them. Stores are interface-driven so the in-memory implementation can
// back tests and development while postgres backs production.
package rules

import (
	"context"

	"authgate/internal/domain"
	id "authgate/pkg/domain"
)

// Store reads personalized rules for a user and action. Implementations
// return every matching record regardless of tenant or resource scope;
// candidacy filtering belongs to the engine, which also needs the excluded
// records for scoring transparency.
type Store interface {
	ListForUserAction(ctx context.Context, userID id.UserID, action string) ([]domain.PersonalizedRule, error)
}
