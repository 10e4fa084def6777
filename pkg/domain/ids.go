// Package domain holds identifier primitives shared across bounded contexts.
//
// IDs are distinct named types over uuid.UUID so a CardID can never be passed
// where a CustomerID is expected. Construct them with the Parse functions at
// trust boundaries; direct conversion from uuid.UUID bypasses validation and
// is reserved for stores reconstructing persisted rows.
package domain

import (
	"github.com/google/uuid"

	dErrors "customerhub/pkg/domain-errors"
)

// CustomerID identifies a customer aggregate.
type CustomerID uuid.UUID

// CardID identifies a payment card inside its owning customer.
type CardID uuid.UUID

// NewCustomerID returns a fresh random customer id.
func NewCustomerID() CustomerID { return CustomerID(uuid.New()) }

// NewCardID returns a fresh random card id.
func NewCardID() CardID { return CardID(uuid.New()) }

// ParseCustomerID parses external input into a CustomerID.
//
// Errors: CodeInvalidInput when s is empty, malformed, or the nil UUID.
func ParseCustomerID(s string) (CustomerID, error) {
	u, err := parseUUID(s, "customer id")
	if err != nil {
		return CustomerID{}, err
	}
	return CustomerID(u), nil
}

// ParseCardID parses external input into a CardID.
//
// Errors: CodeInvalidInput when s is empty, malformed, or the nil UUID.
func ParseCardID(s string) (CardID, error) {
	u, err := parseUUID(s, "card id")
	if err != nil {
		return CardID{}, err
	}
	return CardID(u), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func (id CustomerID) String() string { return uuid.UUID(id).String() }
func (id CustomerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id CardID) String() string { return uuid.UUID(id).String() }
func (id CardID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets ids appear as plain strings in JSON and map keys.
func (id CustomerID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *CustomerID) UnmarshalText(b []byte) error {
	parsed, err := ParseCustomerID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id CardID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *CardID) UnmarshalText(b []byte) error {
	parsed, err := ParseCardID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
