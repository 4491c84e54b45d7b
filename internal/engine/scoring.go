package engine

import (
	"sort"
	"time"

	"authgate/internal/domain"
	id "authgate/pkg/domain"
)

// Scoring resolves conflicting personalized rules. Deny starts ahead of
// allow, a tenant-scoped rule beats a global one, and a matching resource
// scope beats an action-level rule within the same polarity. Ties break on
// earliest creation time so the result is deterministic.
const (
	scoreBaseDeny      = 100
	scoreBaseAllow     = 50
	scoreBonusTenant   = 20
	scoreBonusResource = 10
)

// ScoreRule computes the precedence score of a candidate rule for a
// request. Callers must only pass rules that already passed candidacy
// filtering.
func ScoreRule(rule domain.PersonalizedRule, req domain.AccessRequest) int {
	score := scoreBaseAllow
	if !rule.Granted {
		score = scoreBaseDeny
	}
	if rule.TenantID != nil && *rule.TenantID == req.Tenant {
		score += scoreBonusTenant
	}
	if rule.Resource != "" && rule.Resource == req.Resource {
		score += scoreBonusResource
	}
	return score
}

// SelectRule picks exactly one rule among candidates: highest score wins,
// earliest CreatedAt breaks ties. Candidates must be non-empty.
func SelectRule(candidates []domain.PersonalizedRule, req domain.AccessRequest) domain.PersonalizedRule {
	best := candidates[0]
	bestScore := ScoreRule(best, req)
	for _, rule := range candidates[1:] {
		score := ScoreRule(rule, req)
		if score > bestScore || (score == bestScore && rule.CreatedAt.Before(best.CreatedAt)) {
			best = rule
			bestScore = score
		}
	}
	return best
}

// Exclusion reasons reported by candidate filtering.
const (
	ExclusionTenantMismatch   = "tenant_mismatch"
	ExclusionResourceMismatch = "resource_mismatch"
	ExclusionNotYetValid      = "not_yet_valid"
	ExclusionExpired          = "expired"
)

// exclude reports why a rule is not a candidate for the request, or ""
// if it is. Excluded rules are removed from candidacy entirely, never
// merely de-prioritized.
func exclude(rule domain.PersonalizedRule, req domain.AccessRequest, now time.Time) string {
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return ExclusionNotYetValid
	}
	if rule.ValidUntil != nil && !now.Before(*rule.ValidUntil) {
		return ExclusionExpired
	}
	if rule.TenantID != nil && *rule.TenantID != req.Tenant {
		return ExclusionTenantMismatch
	}
	if rule.Resource != "" && rule.Resource != req.Resource {
		return ExclusionResourceMismatch
	}
	return ""
}

// filterCandidates splits rules into scoring candidates, dropping the
// excluded ones.
func filterCandidates(all []domain.PersonalizedRule, req domain.AccessRequest, now time.Time) []domain.PersonalizedRule {
	var candidates []domain.PersonalizedRule
	for _, rule := range all {
		if exclude(rule, req, now) == "" {
			candidates = append(candidates, rule)
		}
	}
	return candidates
}

// RuleScore explains how one rule fared during personalized resolution.
type RuleScore struct {
	RuleID          id.RuleID `json:"rule_id"`
	Score           int       `json:"score"`
	Applied         bool      `json:"applied"`
	ExclusionReason string    `json:"exclusion_reason,omitempty"`
}

// DebugScores reports the score and candidacy of every rule for the
// request, including excluded rules with their exclusion reason. Exactly
// one entry is marked applied when any candidate exists.
func DebugScores(all []domain.PersonalizedRule, req domain.AccessRequest, now time.Time) []RuleScore {
	out := make([]RuleScore, 0, len(all))
	candidates := filterCandidates(all, req, now)

	var appliedID id.RuleID
	if len(candidates) > 0 {
		appliedID = SelectRule(candidates, req).ID
	}

	for _, rule := range all {
		rs := RuleScore{RuleID: rule.ID}
		if reason := exclude(rule, req, now); reason != "" {
			rs.ExclusionReason = reason
		} else {
			rs.Score = ScoreRule(rule, req)
			rs.Applied = rule.ID == appliedID
		}
		out = append(out, rs)
	}

	// Highest score first keeps the applied rule near the top for humans.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
