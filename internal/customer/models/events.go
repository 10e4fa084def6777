package models

import (
	"time"

	id "customerhub/pkg/domain"
)

// Event type names, used as the outbox event_type and the Kafka record key suffix.
const (
	EventCustomerCreated       = "customer.created"
	EventCustomerActivated     = "customer.activated"
	EventCustomerBlocked       = "customer.blocked"
	EventCustomerUnblocked     = "customer.unblocked"
	EventCustomerDeactivated   = "customer.deactivated"
	EventCustomerReactivated   = "customer.reactivated"
	EventPersonalDataUpdated   = "customer.personal_data_updated"
	EventAddressUpdated        = "customer.address_updated"
	EventCardAdded             = "customer.card_added"
	EventCardRemoved           = "customer.card_removed"
	EventCardValidated         = "customer.card_validated"
	EventCardRejected          = "customer.card_rejected"
	EventCardExpirationUpdated = "customer.card_expiration_updated"
	EventCardNumberUpdated     = "customer.card_number_updated"
	EventReservationStarted    = "customer.reservation_started"
	EventReservationConfirmed  = "customer.reservation_confirmed"
	EventReservationFinalized  = "customer.reservation_finalized"
)

// DomainEvent is a fact recorded by the Customer aggregate. Events carry only
// masked card data.
type DomainEvent interface {
	EventType() string
	AggregateID() id.CustomerID
	OccurredAt() time.Time
}

type eventBase struct {
	CustomerID id.CustomerID `json:"customer_id"`
	At         time.Time     `json:"occurred_at"`
}

func (e eventBase) AggregateID() id.CustomerID { return e.CustomerID }
func (e eventBase) OccurredAt() time.Time      { return e.At }

// CardSummary is the masked view of a card carried by events and responses.
type CardSummary struct {
	CardID     id.CardID `json:"card_id"`
	Network    string    `json:"network"`
	Masked     string    `json:"masked_number"`
	BIN        string    `json:"bin"`
	Expiration YearMonth `json:"expiration"`
}

// PersonalDataSnapshot is the serialisable form of PersonalData used in
// before/after events.
type PersonalDataSnapshot struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
}

type AddressSnapshot struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Province   string `json:"province"`
	Country    string `json:"country"`
}

func snapshotPersonalData(p PersonalData) PersonalDataSnapshot {
	return PersonalDataSnapshot{Name: p.name, Surname: p.surname, Email: p.email, Phone: p.phone}
}

func snapshotAddress(a Address) AddressSnapshot {
	return AddressSnapshot{
		Street:     a.street,
		City:       a.city,
		PostalCode: a.postalCode,
		Province:   a.province,
		Country:    a.country,
	}
}

type CustomerCreated struct {
	eventBase
	Email       string      `json:"email"`
	FullName    string      `json:"full_name"`
	InitialCard CardSummary `json:"initial_card"`
}

func (CustomerCreated) EventType() string { return EventCustomerCreated }

type CustomerActivated struct{ eventBase }

func (CustomerActivated) EventType() string { return EventCustomerActivated }

type CustomerBlocked struct {
	eventBase
	Reason               string `json:"reason"`
	RequiresManualReview bool   `json:"requires_manual_review"`
	PreviousStatus       Status `json:"previous_status"`
}

func (CustomerBlocked) EventType() string { return EventCustomerBlocked }

type CustomerUnblocked struct {
	eventBase
	Reason        string `json:"reason"`
	Administrator string `json:"administrator"`
}

func (CustomerUnblocked) EventType() string { return EventCustomerUnblocked }

type CustomerDeactivated struct {
	eventBase
	PreviousStatus Status `json:"previous_status"`
}

func (CustomerDeactivated) EventType() string { return EventCustomerDeactivated }

type CustomerReactivated struct{ eventBase }

func (CustomerReactivated) EventType() string { return EventCustomerReactivated }

type PersonalDataUpdated struct {
	eventBase
	Before PersonalDataSnapshot `json:"before"`
	After  PersonalDataSnapshot `json:"after"`
}

func (PersonalDataUpdated) EventType() string { return EventPersonalDataUpdated }

type AddressUpdated struct {
	eventBase
	Before AddressSnapshot `json:"before"`
	After  AddressSnapshot `json:"after"`
}

func (AddressUpdated) EventType() string { return EventAddressUpdated }

type CardAdded struct {
	eventBase
	Card CardSummary `json:"card"`
}

func (CardAdded) EventType() string { return EventCardAdded }

type CardRemoved struct {
	eventBase
	Card   CardSummary `json:"card"`
	Reason string      `json:"reason"`
}

func (CardRemoved) EventType() string { return EventCardRemoved }

type CardValidated struct {
	eventBase
	Card CardSummary `json:"card"`
}

func (CardValidated) EventType() string { return EventCardValidated }

type CardRejected struct {
	eventBase
	Card   CardSummary `json:"card"`
	Reason string      `json:"reason"`
}

func (CardRejected) EventType() string { return EventCardRejected }

type CardExpirationUpdated struct {
	eventBase
	CardID id.CardID `json:"card_id"`
	Before YearMonth `json:"before"`
	After  YearMonth `json:"after"`
}

func (CardExpirationUpdated) EventType() string { return EventCardExpirationUpdated }

type CardNumberUpdated struct {
	eventBase
	Before CardSummary `json:"before"`
	After  CardSummary `json:"after"`
}

func (CardNumberUpdated) EventType() string { return EventCardNumberUpdated }

type ReservationStarted struct{ eventBase }

func (ReservationStarted) EventType() string { return EventReservationStarted }

type ReservationConfirmed struct{ eventBase }

func (ReservationConfirmed) EventType() string { return EventReservationConfirmed }

type ReservationFinalized struct{ eventBase }

func (ReservationFinalized) EventType() string { return EventReservationFinalized }
