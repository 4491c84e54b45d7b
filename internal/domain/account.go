package domain

import (
	"time"

	id "authgate/pkg/domain"
)

// Account is the engine's read-only view of a user account's gating state.
// Session and account management live in an external collaborator; the
// engine only consumes these facts.
type Account struct {
	ID            id.UserID
	Authenticated bool
	Active        bool
	Blocked       bool
	BlockedUntil  *time.Time
}

// BlockedAt reports whether the account is blocked at t, either by the
// hard flag or by a time-bound lock that has not yet elapsed.
func (a Account) BlockedAt(t time.Time) bool {
	if a.Blocked {
		return true
	}
	return a.BlockedUntil != nil && t.Before(*a.BlockedUntil)
}

// Relationship is a coarse, relationship-derived standing between a user
// and a tenant, used to infer implicit roles without explicit assignment.
type Relationship string

const (
	// RelationshipCounterparty marks a user who transacts with the tenant
	// without being a member of it.
	RelationshipCounterparty Relationship = "counterparty"
)
