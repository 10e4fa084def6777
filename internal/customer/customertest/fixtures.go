// Package customertest builds valid customer aggregates for tests outside
// the models package.
package customertest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
)

const (
	VisaNumber       = "4532015112830366"
	AmexNumber       = "371449635398431"
	MastercardNumber = "5500000000000004"
)

// Now is the reference clock used by fixtures.
var Now = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

func PersonalParams(email, identity string) models.PersonalDataParams {
	return models.PersonalDataParams{
		Name:           "Ada",
		Surname:        "Lovelace",
		Email:          email,
		Phone:          "+447946095800",
		BirthDate:      time.Date(1990, time.December, 10, 0, 0, 0, 0, time.UTC),
		IdentityNumber: identity,
	}
}

func AddressParams() models.AddressParams {
	return models.AddressParams{
		Street:     "221B Baker Street",
		City:       "London",
		PostalCode: "NW16XE",
		Province:   "Greater London",
		Country:    "GB",
	}
}

func CardParams(number string) models.CardParams {
	cvv := "123"
	if number[0] == '3' {
		cvv = "1234"
	}
	return models.CardParams{Number: number, CVV: cvv, Expiration: "2028-12"}
}

func RegisterParams(email, identity string) models.RegisterParams {
	return models.RegisterParams{
		Personal: PersonalParams(email, identity),
		Address:  AddressParams(),
		Card:     CardParams(VisaNumber),
	}
}

// Customer returns a PENDING_VALIDATION customer with one Visa card. Its
// creation event is left pending.
func Customer(t testing.TB, email, identity string) *models.Customer {
	t.Helper()
	customerID := id.NewCustomerID()
	personal, err := models.NewPersonalData(PersonalParams(email, identity), Now)
	require.NoError(t, err)
	address, err := models.NewAddress(AddressParams())
	require.NoError(t, err)
	card, err := models.BuildCard(customerID, CardParams(VisaNumber), Now)
	require.NoError(t, err)
	c, err := models.NewCustomer(customerID, personal, address, card, Now)
	require.NoError(t, err)
	return c
}

// ActiveCustomer returns a customer with its initial card validated and the
// account activated, with all events drained.
func ActiveCustomer(t testing.TB, email, identity string) *models.Customer {
	t.Helper()
	c := Customer(t, email, identity)
	require.NoError(t, c.ValidateCard(c.Cards()[0].ID(), Now))
	require.NoError(t, c.Activate(Now))
	c.PullEvents()
	return c
}
