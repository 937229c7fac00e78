package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "nidapi/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePrincipalID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParsePrincipalID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseAPIKeyID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParsePrincipalID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, PrincipalID(validUUID), id)
		assert.Equal(t, validUUID.String(), id.String())
	})
}

func TestIsNil(t *testing.T) {
	assert.True(t, PrincipalID{}.IsNil())
	assert.True(t, APIKeyID{}.IsNil())
	assert.False(t, NewPrincipalID().IsNil())
	assert.False(t, NewUsageRecordID().IsNil())
}

func TestIDsMarshalAsUUIDStrings(t *testing.T) {
	principalID := NewPrincipalID()
	b, err := json.Marshal(struct {
		ID PrincipalID `json:"id"`
	}{principalID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+principalID.String()+`"}`, string(b))

	var decoded struct {
		ID PrincipalID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, principalID, decoded.ID)
}
