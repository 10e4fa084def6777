package models

import (
	"strings"
	"time"

	id "customerhub/pkg/domain"
	dErrors "customerhub/pkg/domain-errors"
)

const (
	MinCards = 1
	MaxCards = 3
)

// Customer is the aggregate root for a platform customer.
//
// Invariants:
//   - holds between MinCards and MaxCards cards, all owned by the customer
//   - card numbers are unique within the customer
//   - status changes only through the guards in status.go
//   - identity number and birth date never change after creation
//   - a failed mutation leaves the aggregate untouched
//
// Global uniqueness of email and identity number is checked by the caller
// against the store before any mutator runs.
type Customer struct {
	id                   id.CustomerID
	personal             PersonalData
	address              Address
	cards                []*Card
	status               Status
	blockReason          string
	requiresManualReview bool
	version              int64
	createdAt            time.Time
	updatedAt            time.Time

	events []DomainEvent
}

// NewCustomer creates a customer in PENDING_VALIDATION holding initialCard.
func NewCustomer(customerID id.CustomerID, personal PersonalData, address Address, initialCard *Card, now time.Time) (*Customer, error) {
	if customerID.IsNil() || personal.IsZero() || address.IsZero() || initialCard == nil {
		return nil, validationErr(ErrMissingArgument, "id, personal data, address and initial card are required")
	}
	if initialCard.ownerID != customerID {
		return nil, invariantErr(ErrCardOwnerMismatch, "initial card belongs to another customer")
	}
	c := &Customer{
		id:        customerID,
		personal:  personal,
		address:   address,
		cards:     []*Card{initialCard},
		status:    StatusPendingValidation,
		createdAt: now,
		updatedAt: now,
	}
	c.record(CustomerCreated{
		eventBase:   c.base(now),
		Email:       personal.email,
		FullName:    personal.FullName(),
		InitialCard: initialCard.Summary(),
	})
	return c, nil
}

// ReconstructCustomer rebuilds a stored aggregate without validation and
// without recording events.
func ReconstructCustomer(
	customerID id.CustomerID,
	personal PersonalData,
	address Address,
	cards []*Card,
	status Status,
	blockReason string,
	requiresManualReview bool,
	version int64,
	createdAt, updatedAt time.Time,
) *Customer {
	return &Customer{
		id:                   customerID,
		personal:             personal,
		address:              address,
		cards:                cards,
		status:               status,
		blockReason:          blockReason,
		requiresManualReview: requiresManualReview,
		version:              version,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}
}

func (c *Customer) ID() id.CustomerID          { return c.id }
func (c *Customer) PersonalData() PersonalData { return c.personal }
func (c *Customer) Address() Address           { return c.address }
func (c *Customer) Status() Status             { return c.status }
func (c *Customer) BlockReason() string        { return c.blockReason }
func (c *Customer) RequiresManualReview() bool { return c.requiresManualReview }
func (c *Customer) Version() int64             { return c.version }
func (c *Customer) CreatedAt() time.Time       { return c.createdAt }
func (c *Customer) UpdatedAt() time.Time       { return c.updatedAt }
func (c *Customer) CardCount() int             { return len(c.cards) }

// SetVersion is called by stores after a successful write.
func (c *Customer) SetVersion(v int64) { c.version = v }

// Clone returns a deep copy without pending events, for stores that keep
// aggregates in memory.
func (c *Customer) Clone() *Customer {
	cp := *c
	cp.cards = c.Cards()
	cp.events = nil
	return &cp
}

// Cards returns copies of the customer's cards.
func (c *Customer) Cards() []*Card {
	out := make([]*Card, len(c.cards))
	for i, card := range c.cards {
		out[i] = card.clone()
	}
	return out
}

// Card returns a copy of the card with cardID.
func (c *Customer) Card(cardID id.CardID) (*Card, error) {
	card, _, err := c.findCard(cardID)
	if err != nil {
		return nil, err
	}
	return card.clone(), nil
}

func (c *Customer) ValidCards(now time.Time) []*Card {
	var out []*Card
	for _, card := range c.cards {
		if card.IsValid(now) {
			out = append(out, card.clone())
		}
	}
	return out
}

func (c *Customer) ExpiringCards(now time.Time) []*Card {
	var out []*Card
	for _, card := range c.cards {
		if card.ExpiresSoon(now) {
			out = append(out, card.clone())
		}
	}
	return out
}

// DefaultPaymentCard returns the first valid card, or false when none is.
func (c *Customer) DefaultPaymentCard(now time.Time) (*Card, bool) {
	for _, card := range c.cards {
		if card.IsValid(now) {
			return card.clone(), true
		}
	}
	return nil, false
}

func (c *Customer) CanMakePayments() bool { return c.status.CanMakePayments() }

// PullEvents returns and clears the events recorded since the last pull.
func (c *Customer) PullEvents() []DomainEvent {
	events := c.events
	c.events = nil
	return events
}

// --- data mutations ---

func (c *Customer) UpdatePersonalData(personal PersonalData, now time.Time) error {
	if _, err := Guard(OpMutate, c.status); err != nil {
		return err
	}
	if personal.IsZero() {
		return validationErr(ErrMissingArgument, "personal data is required")
	}
	if !c.personal.SameIdentity(personal) {
		return invariantErr(ErrImmutableIdentity, "identity number and birth date cannot be changed")
	}
	before := c.personal
	c.personal = personal
	c.touch(now)
	c.record(PersonalDataUpdated{
		eventBase: c.base(now),
		Before:    snapshotPersonalData(before),
		After:     snapshotPersonalData(personal),
	})
	return nil
}

func (c *Customer) UpdateAddress(address Address, now time.Time) error {
	if _, err := Guard(OpMutate, c.status); err != nil {
		return err
	}
	if address.IsZero() {
		return validationErr(ErrMissingArgument, "address is required")
	}
	before := c.address
	c.address = address
	c.touch(now)
	c.record(AddressUpdated{
		eventBase: c.base(now),
		Before:    snapshotAddress(before),
		After:     snapshotAddress(address),
	})
	return nil
}

func (c *Customer) AddCard(card *Card, now time.Time) error {
	if _, err := Guard(OpMutate, c.status); err != nil {
		return err
	}
	if card == nil {
		return validationErr(ErrMissingArgument, "card is required")
	}
	if card.ownerID != c.id {
		return invariantErr(ErrCardOwnerMismatch, "card belongs to another customer")
	}
	if len(c.cards) >= MaxCards {
		return invariantErr(ErrCardLimitExceeded, "a customer may hold at most 3 cards")
	}
	if err := c.checkUniqueNumber(card, id.CardID{}); err != nil {
		return err
	}
	c.cards = append(c.cards, card)
	c.touch(now)
	c.record(CardAdded{eventBase: c.base(now), Card: card.Summary()})
	return nil
}

func (c *Customer) RemoveCard(cardID id.CardID, reason string, now time.Time) error {
	if _, err := Guard(OpMutate, c.status); err != nil {
		return err
	}
	card, idx, err := c.findCard(cardID)
	if err != nil {
		return err
	}
	if len(c.cards) <= MinCards {
		return invariantErr(ErrCustomerRequiresCard, "cannot remove the last card")
	}
	remaining := make([]*Card, 0, len(c.cards)-1)
	remaining = append(remaining, c.cards[:idx]...)
	remaining = append(remaining, c.cards[idx+1:]...)
	c.cards = remaining
	c.touch(now)
	c.record(CardRemoved{eventBase: c.base(now), Card: card.Summary(), Reason: strings.TrimSpace(reason)})
	return nil
}

// ValidateCard applies a positive external validation outcome. Validation
// outcomes are accepted in every state.
func (c *Customer) ValidateCard(cardID id.CardID, now time.Time) error {
	card, _, err := c.findCard(cardID)
	if err != nil {
		return err
	}
	if err := card.MarkValidated(now); err != nil {
		return err
	}
	c.touch(now)
	c.record(CardValidated{eventBase: c.base(now), Card: card.Summary()})
	return nil
}

// RejectCard applies a negative external validation outcome.
func (c *Customer) RejectCard(cardID id.CardID, reason string, now time.Time) error {
	card, _, err := c.findCard(cardID)
	if err != nil {
		return err
	}
	if err := card.MarkInvalid(reason, now); err != nil {
		return err
	}
	c.touch(now)
	c.record(CardRejected{eventBase: c.base(now), Card: card.Summary(), Reason: card.rejectionReason})
	return nil
}

func (c *Customer) UpdateCardExpiration(cardID id.CardID, expiration YearMonth, now time.Time) error {
	if _, err := Guard(OpMutate, c.status); err != nil {
		return err
	}
	card, _, err := c.findCard(cardID)
	if err != nil {
		return err
	}
	before := card.expiration
	if err := card.UpdateExpiration(expiration, now); err != nil {
		return err
	}
	c.touch(now)
	c.record(CardExpirationUpdated{eventBase: c.base(now), CardID: cardID, Before: before, After: expiration})
	return nil
}

func (c *Customer) UpdateCardNumber(cardID id.CardID, number CardNumber, cvv CVV, now time.Time) error {
	if _, err := Guard(OpMutate, c.status); err != nil {
		return err
	}
	card, _, err := c.findCard(cardID)
	if err != nil {
		return err
	}
	probe := &Card{number: number}
	if err := c.checkUniqueNumber(probe, cardID); err != nil {
		return err
	}
	before := card.Summary()
	if err := card.UpdateNumber(number, cvv, now); err != nil {
		return err
	}
	c.touch(now)
	c.record(CardNumberUpdated{eventBase: c.base(now), Before: before, After: card.Summary()})
	return nil
}

// --- lifecycle ---

func (c *Customer) Activate(now time.Time) error {
	if err := c.transition(OpActivate, now); err != nil {
		return err
	}
	c.record(CustomerActivated{eventBase: c.base(now)})
	return nil
}

// Block moves the customer to BLOCKED. Blocking an already blocked customer
// replaces the reason and review flag.
func (c *Customer) Block(reason string, requiresManualReview bool, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return validationErr(ErrBlankReason, "block reason is required")
	}
	previous := c.status
	if err := c.transition(OpBlock, now); err != nil {
		return err
	}
	c.blockReason = reason
	c.requiresManualReview = requiresManualReview
	c.record(CustomerBlocked{
		eventBase:            c.base(now),
		Reason:               reason,
		RequiresManualReview: requiresManualReview,
		PreviousStatus:       previous,
	})
	return nil
}

func (c *Customer) Unblock(reason, administrator string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	administrator = strings.TrimSpace(administrator)
	if reason == "" {
		return validationErr(ErrBlankReason, "unblock reason is required")
	}
	if administrator == "" {
		return validationErr(ErrMissingArgument, "administrator is required")
	}
	if err := c.transition(OpUnblock, now); err != nil {
		return err
	}
	c.blockReason = ""
	c.requiresManualReview = false
	c.record(CustomerUnblocked{eventBase: c.base(now), Reason: reason, Administrator: administrator})
	return nil
}

func (c *Customer) StartReservationProcess(now time.Time) error {
	if err := c.transition(OpStartReservation, now); err != nil {
		return err
	}
	c.record(ReservationStarted{eventBase: c.base(now)})
	return nil
}

func (c *Customer) ConfirmReservation(now time.Time) error {
	if err := c.transition(OpConfirmReservation, now); err != nil {
		return err
	}
	c.record(ReservationConfirmed{eventBase: c.base(now)})
	return nil
}

func (c *Customer) FinalizeReservation(now time.Time) error {
	if err := c.transition(OpFinalizeReservation, now); err != nil {
		return err
	}
	c.record(ReservationFinalized{eventBase: c.base(now)})
	return nil
}

// Deactivate moves the customer to INACTIVE. It is refused while BLOCKED and
// is a no-op when already INACTIVE.
func (c *Customer) Deactivate(now time.Time) error {
	if c.status == StatusInactive {
		return nil
	}
	previous := c.status
	if err := c.transition(OpDeactivate, now); err != nil {
		return err
	}
	c.record(CustomerDeactivated{eventBase: c.base(now), PreviousStatus: previous})
	return nil
}

func (c *Customer) Reactivate(now time.Time) error {
	if err := c.transition(OpReactivate, now); err != nil {
		return err
	}
	c.record(CustomerReactivated{eventBase: c.base(now)})
	return nil
}

// --- helpers ---

func (c *Customer) transition(op Operation, now time.Time) error {
	target, err := Guard(op, c.status)
	if err != nil {
		return err
	}
	c.status = target
	c.touch(now)
	return nil
}

func (c *Customer) findCard(cardID id.CardID) (*Card, int, error) {
	for i, card := range c.cards {
		if card.id == cardID {
			return card, i, nil
		}
	}
	return nil, -1, notFoundErr(ErrCardNotFound, "card "+cardID.String()+" not found")
}

// checkUniqueNumber rejects card when another card (other than except) holds
// the same number.
func (c *Customer) checkUniqueNumber(card *Card, except id.CardID) error {
	for _, existing := range c.cards {
		if existing.id != except && existing.sameNumber(card) {
			return dErrors.Wrap(ErrDuplicateCard, dErrors.CodeConflict, "card "+card.number.Masked()+" is already registered")
		}
	}
	return nil
}

func (c *Customer) touch(now time.Time) { c.updatedAt = now }

func (c *Customer) base(now time.Time) eventBase {
	return eventBase{CustomerID: c.id, At: now}
}

func (c *Customer) record(e DomainEvent) { c.events = append(c.events, e) }
