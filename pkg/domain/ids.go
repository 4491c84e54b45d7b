// Package domain provides typed identifiers shared across the module.
// Wrapping uuid.UUID in distinct named types makes cross-assignment a
// compile error: a UserID can never be passed where a TenantID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "authgate/pkg/domain-errors"
)

// UserID identifies a user account.
type UserID uuid.UUID

// TenantID identifies a tenant. The zero value means "no tenant context".
type TenantID uuid.UUID

// RuleID identifies a personalized permission rule.
type RuleID uuid.UUID

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id TenantID) String() string { return uuid.UUID(id).String() }
func (id RuleID) String() string   { return uuid.UUID(id).String() }

// IsNil reports whether the identifier is the zero UUID.
func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id TenantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: identifiers must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be the nil UUID")
	}
	return u, nil
}

// ParseUserID validates s and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseTenantID validates s and returns a TenantID.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s, "tenant id")
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(u), nil
}

// ParseRuleID validates s and returns a RuleID.
func ParseRuleID(s string) (RuleID, error) {
	u, err := parseUUID(s, "rule id")
	if err != nil {
		return RuleID{}, err
	}
	return RuleID(u), nil
}
