package models

import (
	"time"

	id "customerhub/pkg/domain"
)

// CustomerView is the read model served to callers and cached. It never
// carries a clear card number or CVV.
type CustomerView struct {
	ID                   id.CustomerID   `json:"id"`
	Name                 string          `json:"name"`
	Surname              string          `json:"surname"`
	Email                string          `json:"email"`
	Phone                string          `json:"phone,omitempty"`
	BirthDate            time.Time       `json:"birth_date"`
	IdentityNumber       string          `json:"identity_number"`
	Address              AddressSnapshot `json:"address"`
	Status               Status          `json:"status"`
	BlockReason          string          `json:"block_reason,omitempty"`
	RequiresManualReview bool            `json:"requires_manual_review"`
	CanMakePayments      bool            `json:"can_make_payments"`
	Cards                []CardView      `json:"cards"`
	Version              int64           `json:"version"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

type CardView struct {
	ID              id.CardID `json:"id"`
	Network         string    `json:"network"`
	MaskedNumber    string    `json:"masked_number"`
	BIN             string    `json:"bin"`
	LastFour        string    `json:"last_four"`
	Expiration      YearMonth `json:"expiration"`
	Validated       bool      `json:"validated"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	Valid           bool      `json:"valid"`
	ExpiresSoon     bool      `json:"expires_soon"`
}

// NewCustomerView projects c at now. Card validity depends on now.
func NewCustomerView(c *Customer, now time.Time) *CustomerView {
	cards := make([]CardView, len(c.cards))
	for i, card := range c.cards {
		cards[i] = NewCardView(card, now)
	}
	return &CustomerView{
		ID:                   c.id,
		Name:                 c.personal.name,
		Surname:              c.personal.surname,
		Email:                c.personal.email,
		Phone:                c.personal.phone,
		BirthDate:            c.personal.birthDate,
		IdentityNumber:       c.personal.identityNumber,
		Address:              snapshotAddress(c.address),
		Status:               c.status,
		BlockReason:          c.blockReason,
		RequiresManualReview: c.requiresManualReview,
		CanMakePayments:      c.CanMakePayments(),
		Cards:                cards,
		Version:              c.version,
		CreatedAt:            c.createdAt,
		UpdatedAt:            c.updatedAt,
	}
}

func NewCardView(card *Card, now time.Time) CardView {
	return CardView{
		ID:              card.id,
		Network:         card.network.Name,
		MaskedNumber:    card.number.Masked(),
		BIN:             card.number.BIN(),
		LastFour:        card.number.LastFour(),
		Expiration:      card.expiration,
		Validated:       card.validated,
		RejectionReason: card.rejectionReason,
		Valid:           card.IsValid(now),
		ExpiresSoon:     card.ExpiresSoon(now),
	}
}

// At recomputes the card fields that depend on the current month. Cached views
// are served through At so they never outlive a month boundary.
func (v *CustomerView) At(now time.Time) *CustomerView {
	current := YearMonthOf(now)
	for i := range v.Cards {
		v.Cards[i].refresh(current)
	}
	return v
}

func (cv *CardView) refresh(current YearMonth) {
	months := current.MonthsUntil(cv.Expiration)
	cv.Valid = months >= 0 && cv.Validated && cv.RejectionReason == ""
	cv.ExpiresSoon = months >= 0 && months <= expiringSoonMonths
}
