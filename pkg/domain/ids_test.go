package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "authgate/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// identifiers must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseTenantID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseUserID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(valid), id)
	})

	t.Run("rule id round-trips through String", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseRuleID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, valid.String(), id.String())
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
func TestTypeDistinction(t *testing.T) {
	userID := UserID(uuid.New())
	tenantID := TenantID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ UserID = tenantID   // compile error
	// var _ TenantID = userID   // compile error

	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(tenantID))
}

func TestIsNil(t *testing.T) {
	assert.True(t, TenantID{}.IsNil())
	assert.True(t, UserID{}.IsNil())
	assert.False(t, TenantID(uuid.New()).IsNil())
}
