package httptransport

import (
	"strings"

	id "authgate/pkg/domain"
	dErrors "authgate/pkg/domain-errors"
)

// CheckRequest is the HTTP request body for POST /v1/permissions/check.
type CheckRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Action   string `json:"action"`
	Resource string `json:"resource"`

	// Parsed values (populated by Validate)
	parsedUserID   id.UserID
	parsedTenantID id.TenantID
}

// Validate validates and parses the request.
func (r *CheckRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Action = strings.TrimSpace(r.Action)
	if r.Action == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "action is required")
	}

	r.UserID = strings.TrimSpace(r.UserID)
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	userID, err := id.ParseUserID(r.UserID)
	if err != nil {
		return err
	}
	r.parsedUserID = userID

	// tenant_id is optional: tenant-scoped actions deny without it, but
	// global actions evaluate fine.
	r.TenantID = strings.TrimSpace(r.TenantID)
	if r.TenantID != "" {
		tenantID, err := id.ParseTenantID(r.TenantID)
		if err != nil {
			return err
		}
		r.parsedTenantID = tenantID
	}

	r.Resource = strings.TrimSpace(r.Resource)
	return nil
}

// ParsedUserID returns the validated user ID.
func (r *CheckRequest) ParsedUserID() id.UserID {
	return r.parsedUserID
}

// ParsedTenantID returns the validated tenant ID, zero when absent.
func (r *CheckRequest) ParsedTenantID() id.TenantID {
	return r.parsedTenantID
}

// ExplainRequest is the HTTP request body for POST /v1/permissions/explain.
// It carries the same fields as a check plus an explicit trace switch.
type ExplainRequest struct {
	CheckRequest
	Trace bool `json:"trace"`
}

// InvalidateRequest is the HTTP request body for POST /v1/cache/invalidate.
// Both fields empty means global invalidation; both set means one
// user/tenant pair. The service rejects partial arguments.
type InvalidateRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

// StepRequest names a pipeline step for add/remove operations.
type StepRequest struct {
	Name string `json:"name"`
}

func (r *StepRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	return nil
}
