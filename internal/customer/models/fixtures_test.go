package models_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
)

const (
	visaNumber       = "4532015112830366"
	amexNumber       = "371449635398431"
	mastercardNumber = "5500000000000004"
	discoverNumber   = "6011000000000004"
)

var fixedNow = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

// withCheckDigit appends the Luhn check digit to payload.
func withCheckDigit(payload string) string {
	for d := 0; d <= 9; d++ {
		candidate := payload + strconv.Itoa(d)
		if models.Luhn(candidate) {
			return candidate
		}
	}
	panic("unreachable")
}

func mustNumber(t testing.TB, raw string) models.CardNumber {
	t.Helper()
	n, err := models.NewCardNumber(raw)
	require.NoError(t, err)
	return n
}

func mustCVV(t testing.TB, raw string) models.CVV {
	t.Helper()
	c, err := models.NewCVV(raw)
	require.NoError(t, err)
	return c
}

func mustYM(t testing.TB, year int, month time.Month) models.YearMonth {
	t.Helper()
	ym, err := models.NewYearMonth(year, month)
	require.NoError(t, err)
	return ym
}

func mustCard(t testing.TB, owner id.CustomerID, number string) *models.Card {
	t.Helper()
	cvv := "123"
	if number[0] == '3' {
		cvv = "1234"
	}
	card, err := models.NewCard(owner, mustNumber(t, number), mustYM(t, 2028, time.December), mustCVV(t, cvv), fixedNow)
	require.NoError(t, err)
	return card
}

func validPersonalParams() models.PersonalDataParams {
	return models.PersonalDataParams{
		Name:           "Ada",
		Surname:        "Lovelace",
		Email:          "Ada.Lovelace@Example.com",
		Phone:          "+44 20 7946 0958",
		BirthDate:      time.Date(1990, time.December, 10, 0, 0, 0, 0, time.UTC),
		IdentityNumber: "x1234567l",
	}
}

func mustPersonal(t testing.TB) models.PersonalData {
	t.Helper()
	pd, err := models.NewPersonalData(validPersonalParams(), fixedNow)
	require.NoError(t, err)
	return pd
}

func validAddressParams() models.AddressParams {
	return models.AddressParams{
		Street:     "221B Baker Street",
		City:       "London",
		PostalCode: "NW1 6XE",
		Province:   "Greater London",
		Country:    "gb",
	}
}

func mustAddress(t testing.TB) models.Address {
	t.Helper()
	a, err := models.NewAddress(validAddressParams())
	require.NoError(t, err)
	return a
}

func newCustomer(t testing.TB) *models.Customer {
	t.Helper()
	customerID := id.NewCustomerID()
	c, err := models.NewCustomer(customerID, mustPersonal(t), mustAddress(t), mustCard(t, customerID, visaNumber), fixedNow)
	require.NoError(t, err)
	c.PullEvents()
	return c
}
