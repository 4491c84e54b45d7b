package engine

import "errors"

// Step-level failure kinds. All of them are caught at the step boundary by
// the pipeline and downgraded to a deny decision with source "exception";
// none ever reaches the caller.
var (
	ErrInvalidUser        = errors.New("invalid user")
	ErrNoTenantContext    = errors.New("no tenant context")
	ErrRuleStore          = errors.New("rule store failure")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrStepFailed         = errors.New("pipeline step failure")
)
