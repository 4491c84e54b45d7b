package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgate/internal/domain"
	id "authgate/pkg/domain"
)

var scoringNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newRule(granted bool, tenant *id.TenantID, resource string, createdAt time.Time) domain.PersonalizedRule {
	return domain.PersonalizedRule{
		ID:        id.RuleID(uuid.New()),
		UserID:    id.UserID(uuid.New()),
		TenantID:  tenant,
		Action:    "VIEW_REPORT",
		Resource:  resource,
		Granted:   granted,
		CreatedAt: createdAt,
	}
}

func TestScoreRule(t *testing.T) {
	tenant := id.TenantID(uuid.New())
	req := domain.AccessRequest{Tenant: tenant, Action: "VIEW_REPORT", Resource: "report-7"}

	t.Run("deny starts ahead of allow", func(t *testing.T) {
		allowRule := newRule(true, nil, "", scoringNow)
		denyRule := newRule(false, nil, "", scoringNow)
		assert.Equal(t, 50, ScoreRule(allowRule, req))
		assert.Equal(t, 100, ScoreRule(denyRule, req))
	})

	t.Run("tenant scope adds 20", func(t *testing.T) {
		rule := newRule(true, &tenant, "", scoringNow)
		assert.Equal(t, 70, ScoreRule(rule, req))
	})

	t.Run("matching resource adds 10", func(t *testing.T) {
		rule := newRule(true, &tenant, "report-7", scoringNow)
		assert.Equal(t, 80, ScoreRule(rule, req))
	})

	t.Run("fully specific deny scores 130", func(t *testing.T) {
		rule := newRule(false, &tenant, "report-7", scoringNow)
		assert.Equal(t, 130, ScoreRule(rule, req))
	})
}

func TestSelectRule(t *testing.T) {
	tenant := id.TenantID(uuid.New())
	req := domain.AccessRequest{Tenant: tenant, Action: "VIEW_REPORT"}

	t.Run("tenant-scoped deny beats global allow", func(t *testing.T) {
		globalAllow := newRule(true, nil, "", scoringNow)
		tenantDeny := newRule(false, &tenant, "", scoringNow)

		winner := SelectRule([]domain.PersonalizedRule{globalAllow, tenantDeny}, req)
		assert.Equal(t, tenantDeny.ID, winner.ID)
	})

	t.Run("deny beats allow at equal specificity", func(t *testing.T) {
		allowRule := newRule(true, &tenant, "", scoringNow)
		denyRule := newRule(false, &tenant, "", scoringNow)

		winner := SelectRule([]domain.PersonalizedRule{allowRule, denyRule}, req)
		assert.False(t, winner.Granted)
	})

	t.Run("tie breaks on earliest creation time", func(t *testing.T) {
		older := newRule(true, &tenant, "", scoringNow.Add(-time.Hour))
		newer := newRule(true, &tenant, "", scoringNow)

		winner := SelectRule([]domain.PersonalizedRule{newer, older}, req)
		assert.Equal(t, older.ID, winner.ID)

		// Order of the input slice must not matter.
		winner = SelectRule([]domain.PersonalizedRule{older, newer}, req)
		assert.Equal(t, older.ID, winner.ID)
	})
}

func TestFilterCandidates(t *testing.T) {
	tenant := id.TenantID(uuid.New())
	other := id.TenantID(uuid.New())
	req := domain.AccessRequest{Tenant: tenant, Action: "VIEW_REPORT", Resource: "report-7"}

	t.Run("tenant mismatch is excluded, not outranked", func(t *testing.T) {
		mismatch := newRule(false, &other, "", scoringNow)
		candidates := filterCandidates([]domain.PersonalizedRule{mismatch}, req, scoringNow)
		assert.Empty(t, candidates)
	})

	t.Run("set but unmatched resource is excluded", func(t *testing.T) {
		mismatch := newRule(false, &tenant, "report-9", scoringNow)
		candidates := filterCandidates([]domain.PersonalizedRule{mismatch}, req, scoringNow)
		assert.Empty(t, candidates)
	})

	t.Run("validity window is enforced", func(t *testing.T) {
		future := scoringNow.Add(time.Hour)
		past := scoringNow.Add(-time.Hour)

		notYet := newRule(true, &tenant, "", scoringNow)
		notYet.ValidFrom = &future
		expired := newRule(true, &tenant, "", scoringNow)
		expired.ValidUntil = &past

		candidates := filterCandidates([]domain.PersonalizedRule{notYet, expired}, req, scoringNow)
		assert.Empty(t, candidates)
	})

	t.Run("global and action-level rules stay candidates", func(t *testing.T) {
		global := newRule(true, nil, "", scoringNow)
		candidates := filterCandidates([]domain.PersonalizedRule{global}, req, scoringNow)
		assert.Len(t, candidates, 1)
	})
}

func TestDebugScores(t *testing.T) {
	tenant := id.TenantID(uuid.New())
	other := id.TenantID(uuid.New())
	req := domain.AccessRequest{Tenant: tenant, Action: "VIEW_REPORT"}

	tenantDeny := newRule(false, &tenant, "", scoringNow)
	globalAllow := newRule(true, nil, "", scoringNow)
	excluded := newRule(true, &other, "", scoringNow)

	scores := DebugScores([]domain.PersonalizedRule{globalAllow, tenantDeny, excluded}, req, scoringNow)
	require.Len(t, scores, 3)

	byID := make(map[id.RuleID]RuleScore, len(scores))
	for _, s := range scores {
		byID[s.RuleID] = s
	}

	assert.True(t, byID[tenantDeny.ID].Applied)
	assert.Equal(t, 120, byID[tenantDeny.ID].Score)
	assert.False(t, byID[globalAllow.ID].Applied)
	assert.Equal(t, 50, byID[globalAllow.ID].Score)
	assert.Equal(t, ExclusionTenantMismatch, byID[excluded.ID].ExclusionReason)

	// Applied rule sorts ahead of the rest.
	assert.Equal(t, tenantDeny.ID, scores[0].RuleID)
}
