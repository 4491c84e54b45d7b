package rules

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgate/internal/domain"
	id "authgate/pkg/domain"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	user := id.UserID(uuid.New())

	rule := domain.PersonalizedRule{
		ID: id.RuleID(uuid.New()), UserID: user, Action: "VIEW_REPORT",
		Granted: true, CreatedAt: time.Now(),
	}
	other := domain.PersonalizedRule{
		ID: id.RuleID(uuid.New()), UserID: user, Action: "EXPORT_REPORT",
		Granted: false, CreatedAt: time.Now(),
	}
	store.Put(rule)
	store.Put(other)

	t.Run("filters by action", func(t *testing.T) {
		got, err := store.ListForUserAction(ctx, user, "VIEW_REPORT")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, rule.ID, got[0].ID)
	})

	t.Run("unknown user is empty, not an error", func(t *testing.T) {
		got, err := store.ListForUserAction(ctx, id.UserID(uuid.New()), "VIEW_REPORT")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("put replaces by rule ID", func(t *testing.T) {
		updated := rule
		updated.Granted = false
		store.Put(updated)

		got, err := store.ListForUserAction(ctx, user, "VIEW_REPORT")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.False(t, got[0].Granted)
	})

	t.Run("remove deletes the rule", func(t *testing.T) {
		store.Remove(user, rule.ID)
		got, err := store.ListForUserAction(ctx, user, "VIEW_REPORT")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
