package domain

import (
	"time"

	id "authgate/pkg/domain"
)

// PersonalizedRule is an explicit allow/deny override for one user. It is
// owned by the external rule store; the engine only reads it.
//
// A nil TenantID makes the rule global; an empty Resource makes it apply
// to the action as a whole.
type PersonalizedRule struct {
	ID         id.RuleID
	UserID     id.UserID
	TenantID   *id.TenantID
	Action     string
	Resource   string
	Granted    bool
	ValidFrom  *time.Time
	ValidUntil *time.Time
	CreatedAt  time.Time
}

// Global reports whether the rule applies across all tenants.
func (r PersonalizedRule) Global() bool {
	return r.TenantID == nil
}

// ActionLevel reports whether the rule applies to the action as a whole
// rather than one resource.
func (r PersonalizedRule) ActionLevel() bool {
	return r.Resource == ""
}

// ValidAt reports whether the rule's validity window covers t. Rules with
// no window are always valid.
func (r PersonalizedRule) ValidAt(t time.Time) bool {
	if r.ValidFrom != nil && t.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && !t.Before(*r.ValidUntil) {
		return false
	}
	return true
}
