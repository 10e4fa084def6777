package models

import (
	"time"

	id "customerhub/pkg/domain"
)

// CardParams carries raw card input. Expiration is "YYYY-MM" or "MM/YY".
type CardParams struct {
	Number     string
	CVV        string
	Expiration string
}

// RegisterParams is the input for registering a customer with an initial card.
type RegisterParams struct {
	Personal PersonalDataParams
	Address  AddressParams
	Card     CardParams
}

// CardValidationOutcome is the result of the external card validation
// process for one card.
type CardValidationOutcome struct {
	CustomerID id.CustomerID `json:"customer_id"`
	CardID     id.CardID     `json:"card_id"`
	Approved   bool          `json:"approved"`
	Reason     string        `json:"reason,omitempty"`
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ListFilter narrows List results. A zero Status matches every state.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// Normalize clamps paging to sane bounds.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// BuildCard validates p and creates an unvalidated card for owner.
func BuildCard(owner id.CustomerID, p CardParams, now time.Time) (*Card, error) {
	number, err := NewCardNumber(p.Number)
	if err != nil {
		return nil, err
	}
	expiration, err := ParseYearMonth(p.Expiration)
	if err != nil {
		return nil, err
	}
	cvv, err := NewCVV(p.CVV)
	if err != nil {
		return nil, err
	}
	return NewCard(owner, number, expiration, cvv, now)
}
