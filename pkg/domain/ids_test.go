package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "qochi/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseMemberID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseMemberID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseMemberID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseMemberID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, MemberID(validUUID), id)
	})
}

// TestTypeDistinction verifies typed IDs wrapping the same UUID stay distinct values.
func TestTypeDistinction(t *testing.T) {
	memberID := NewMemberID()
	requestID := NewRequestID()

	// var _ MemberID = requestID // compile error
	assert.NotEqual(t, uuid.UUID(memberID), uuid.UUID(requestID))
}

func TestParseID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE members;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400\u200B-e29b-41d4-a716-446655440000", true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequestID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errHousehold := ParseHouseholdID(validUUID)
		_, errMember := ParseMemberID(validUUID)
		_, errRequest := ParseRequestID(validUUID)
		_, errRegistration := ParseRegistrationID(validUUID)

		require.NoError(t, errHousehold)
		require.NoError(t, errMember)
		require.NoError(t, errRequest)
		require.NoError(t, errRegistration)
	})

	for _, input := range []string{"", "invalid", uuid.Nil.String()} {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errHousehold := ParseHouseholdID(input)
			_, errMember := ParseMemberID(input)
			_, errRequest := ParseRequestID(input)
			_, errRegistration := ParseRegistrationID(input)

			require.Error(t, errHousehold)
			require.Error(t, errMember)
			require.Error(t, errRequest)
			require.Error(t, errRegistration)
		})
	}
}

func TestIDTextRoundTrip(t *testing.T) {
	id := NewRequestID()
	text, err := id.MarshalText()
	require.NoError(t, err)

	var decoded RequestID
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, id, decoded)
	assert.False(t, decoded.IsNil())
}
