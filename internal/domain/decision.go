// Package domain holds the permission resolver's core value types.
// Decisions are immutable values produced fresh per call; rules and
// accounts are read-only views of collaborator-owned records.
package domain

import (
	id "authgate/pkg/domain"
)

// Source tags where a decision came from. Values compare equal to their
// historical string tokens, so callers and tests may compare by literal.
type Source string

const (
	SourcePersonalized  Source = "personalized"
	SourceRole          Source = "role"
	SourceImplicit      Source = "implicit"
	SourceDefault       Source = "default"
	SourcePublic        Source = "public"
	SourceAccountBlock  Source = "account_block"
	SourceInvalidUser   Source = "invalid_user"
	SourceAnonymousUser Source = "anonymous_user"
	SourceInactiveUser  Source = "inactive_user"
	SourceNoTenant      Source = "no_tenant"
	SourceCache         Source = "cache"
	SourceException     Source = "exception"
)

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool     `json:"allowed"`
	Source  Source   `json:"source"`
	Reason  string   `json:"reason"`
	Trace   []string `json:"trace,omitempty"`
}

// AccessRequest identifies what is being checked: who, where, and on what.
// A nil user means the caller is anonymous; a nil tenant means no tenant
// context was supplied.
type AccessRequest struct {
	User     id.UserID
	Tenant   id.TenantID
	Action   string
	Resource string
}

// HasTenant reports whether the request carries tenant context.
func (r AccessRequest) HasTenant() bool {
	return !r.Tenant.IsNil()
}

// HasResource reports whether the check targets a specific resource rather
// than the action as a whole.
func (r AccessRequest) HasResource() bool {
	return r.Resource != ""
}
