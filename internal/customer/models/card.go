package models

import (
	"strconv"
	"strings"
	"time"

	id "customerhub/pkg/domain"
)

const (
	expiringSoonMonths = 3

	reasonExpirationUpdated = "expiration updated, revalidation required"
	reasonNumberUpdated     = "card number updated, revalidation required"
)

// Card is a payment card owned by exactly one customer.
//
// Invariants:
//   - network is detected from the number at creation and on every number change
//   - the CVV length matches the network's CVV length
//   - IsValid ⇔ not expired ∧ validated ∧ no rejection reason
//   - changing number or expiration of a validated card forces revalidation
//
// Cards are only mutated through their owning Customer.
type Card struct {
	id              id.CardID
	ownerID         id.CustomerID
	number          CardNumber
	network         CardNetwork
	expiration      YearMonth
	cvv             CVV
	validated       bool
	rejectionReason string
	createdAt       time.Time
	updatedAt       time.Time
}

// NewCard builds an unvalidated card bound to owner.
//
// Errors (all CodeValidation): ErrMissingArgument, ErrExpiredAtCreation,
// ErrNetworkNotDetected, ErrCVVLengthMismatch.
func NewCard(owner id.CustomerID, number CardNumber, expiration YearMonth, cvv CVV, now time.Time) (*Card, error) {
	if owner.IsNil() || number.IsZero() || expiration.IsZero() || cvv.IsZero() {
		return nil, validationErr(ErrMissingArgument, "owner, number, expiration and cvv are required")
	}
	if expiration.Before(YearMonthOf(now)) {
		return nil, validationErr(ErrExpiredAtCreation, "card expired in "+expiration.String())
	}
	network, err := checkNumberAndCVV(number, cvv)
	if err != nil {
		return nil, err
	}
	return &Card{
		id:         id.NewCardID(),
		ownerID:    owner,
		number:     number,
		network:    network,
		expiration: expiration,
		cvv:        cvv,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructCard rebuilds a stored card without validation. The CVV is
// never stored, so reconstructed cards carry none.
func ReconstructCard(
	cardID id.CardID,
	owner id.CustomerID,
	number CardNumber,
	network CardNetwork,
	expiration YearMonth,
	validated bool,
	rejectionReason string,
	createdAt, updatedAt time.Time,
) *Card {
	return &Card{
		id:              cardID,
		ownerID:         owner,
		number:          number,
		network:         network,
		expiration:      expiration,
		validated:       validated,
		rejectionReason: rejectionReason,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

func checkNumberAndCVV(number CardNumber, cvv CVV) (CardNetwork, error) {
	network, err := number.Network()
	if err != nil {
		return CardNetwork{}, err
	}
	if !cvv.LengthMatches(network.CVVLength) {
		return CardNetwork{}, validationErr(ErrCVVLengthMismatch,
			network.Name+" requires a cvv of "+strconv.Itoa(network.CVVLength)+" digits")
	}
	return network, nil
}

func (c *Card) ID() id.CardID               { return c.id }
func (c *Card) OwnerID() id.CustomerID      { return c.ownerID }
func (c *Card) Number() CardNumber          { return c.number }
func (c *Card) Network() CardNetwork        { return c.network }
func (c *Card) Expiration() YearMonth       { return c.expiration }
func (c *Card) CVV() CVV                    { return c.cvv }
func (c *Card) Validated() bool             { return c.validated }
func (c *Card) RejectionReason() string     { return c.rejectionReason }
func (c *Card) CreatedAt() time.Time        { return c.createdAt }
func (c *Card) UpdatedAt() time.Time        { return c.updatedAt }
func (c *Card) MaskedNumber() string        { return c.number.Masked() }
func (c *Card) sameNumber(other *Card) bool { return c.number.Equal(other.number) }

// IsExpired reports whether the expiration month lies before now's month.
func (c *Card) IsExpired(now time.Time) bool {
	return c.expiration.Before(YearMonthOf(now))
}

func (c *Card) IsValid(now time.Time) bool {
	return !c.IsExpired(now) && c.validated && c.rejectionReason == ""
}

// MonthsUntilExpiration is negative once the card has expired.
func (c *Card) MonthsUntilExpiration(now time.Time) int {
	return YearMonthOf(now).MonthsUntil(c.expiration)
}

func (c *Card) ExpiresSoon(now time.Time) bool {
	m := c.MonthsUntilExpiration(now)
	return m >= 0 && m <= expiringSoonMonths
}

func (c *Card) CanMarkValidated(now time.Time) error {
	if c.IsExpired(now) {
		return invariantErr(ErrCannotValidateExpiredCard, "card expired in "+c.expiration.String())
	}
	return nil
}

func (c *Card) ApplyValidated(now time.Time) {
	c.validated = true
	c.rejectionReason = ""
	c.updatedAt = now
}

// MarkValidated records a positive outcome from the external validator.
func (c *Card) MarkValidated(now time.Time) error {
	if err := c.CanMarkValidated(now); err != nil {
		return err
	}
	c.ApplyValidated(now)
	return nil
}

// MarkInvalid records a rejection. The reason is required.
func (c *Card) MarkInvalid(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return validationErr(ErrBlankReason, "rejection reason is required")
	}
	c.validated = false
	c.rejectionReason = reason
	c.updatedAt = now
	return nil
}

// UpdateExpiration replaces the expiration. A validated card must be
// revalidated afterwards.
func (c *Card) UpdateExpiration(expiration YearMonth, now time.Time) error {
	if expiration.IsZero() {
		return validationErr(ErrMissingArgument, "expiration is required")
	}
	if expiration.Before(YearMonthOf(now)) {
		return validationErr(ErrExpirationInPast, "expiration "+expiration.String()+" is in the past")
	}
	c.expiration = expiration
	c.requireRevalidation(reasonExpirationUpdated)
	c.updatedAt = now
	return nil
}

// UpdateNumber replaces number, CVV and network together, failing the same
// way NewCard does.
func (c *Card) UpdateNumber(number CardNumber, cvv CVV, now time.Time) error {
	if number.IsZero() || cvv.IsZero() {
		return validationErr(ErrMissingArgument, "number and cvv are required")
	}
	network, err := checkNumberAndCVV(number, cvv)
	if err != nil {
		return err
	}
	c.number = number
	c.cvv = cvv
	c.network = network
	c.requireRevalidation(reasonNumberUpdated)
	c.updatedAt = now
	return nil
}

func (c *Card) requireRevalidation(reason string) {
	if c.validated {
		c.validated = false
		c.rejectionReason = reason
	}
}

// Summary returns the masked view used by events and responses.
func (c *Card) Summary() CardSummary {
	return CardSummary{
		CardID:     c.id,
		Network:    c.network.Name,
		Masked:     c.number.Masked(),
		BIN:        c.number.BIN(),
		Expiration: c.expiration,
	}
}

func (c *Card) clone() *Card {
	cp := *c
	return &cp
}

