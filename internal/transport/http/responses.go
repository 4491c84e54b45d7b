package httptransport

import (
	"authgate/internal/domain"
	"authgate/internal/engine"
	"authgate/internal/resolver"
)

// CheckResponse is the HTTP response for POST /v1/permissions/check.
type CheckResponse struct {
	Allowed bool `json:"allowed"`
}

// ExplainResponse is the HTTP response for POST /v1/permissions/explain.
type ExplainResponse struct {
	Allowed bool     `json:"allowed"`
	Source  string   `json:"source"`
	Reason  string   `json:"reason,omitempty"`
	Trace   []string `json:"trace,omitempty"`
}

// FromDecision converts a domain decision to an HTTP response.
func FromDecision(d domain.Decision) *ExplainResponse {
	return &ExplainResponse{
		Allowed: d.Allowed,
		Source:  string(d.Source),
		Reason:  d.Reason,
		Trace:   d.Trace,
	}
}

// DebugResponse is the HTTP response for POST /v1/permissions/debug.
type DebugResponse struct {
	Rules []engine.RuleScore `json:"rules"`
}

// StepsResponse lists the active pipeline steps in evaluation order.
type StepsResponse struct {
	Steps []string `json:"steps"`
}

// ErrorsResponse is the HTTP response for GET /v1/admin/errors.
type ErrorsResponse struct {
	Errors []resolver.StepError `json:"errors"`
}
