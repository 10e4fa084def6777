package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "customerhub/pkg/domain-errors"
)

// TestParseCustomerID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseCustomerID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseCustomerID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseCustomerID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseCustomerID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		parsed, err := ParseCustomerID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, CustomerID(valid), parsed)
	})
}

// TestParseID_HostileInput checks that trust boundary parsing rejects junk.
func TestParseID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE customers;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errCustomer := ParseCustomerID(tt.input)
			_, errCard := ParseCardID(tt.input)
			if tt.wantErr {
				require.Error(t, errCustomer)
				require.Error(t, errCard)
				assert.True(t, dErrors.HasCode(errCustomer, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, errCustomer)
				require.NoError(t, errCard)
			}
		})
	}
}

func TestIDs_JSONRoundTrip(t *testing.T) {
	type payload struct {
		Customer CustomerID `json:"customer_id"`
		Card     CardID     `json:"card_id"`
	}
	in := payload{Customer: NewCustomerID(), Card: NewCardID()}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), in.Customer.String())

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)

	err = json.Unmarshal([]byte(`{"customer_id":"nope"}`), &out)
	assert.Error(t, err)
}

func TestIDs_AreDistinct(t *testing.T) {
	assert.False(t, NewCustomerID().IsNil())
	assert.False(t, NewCardID().IsNil())
	assert.True(t, CustomerID{}.IsNil())
	assert.NotEqual(t, NewCustomerID(), NewCustomerID())
}
