package models

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	postalCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{4,10}$`)
	countryPattern    = regexp.MustCompile(`^[A-Z]{2}$`)
)

type AddressParams struct {
	Street     string
	City       string
	PostalCode string
	Province   string
	Country    string
}

// Address is a postal address. It is replaced wholesale on update.
type Address struct {
	street     string
	city       string
	postalCode string
	province   string
	country    string
}

// NewAddress normalises and validates params, reporting every invalid field
// in one *ValidationError.
func NewAddress(p AddressParams) (Address, error) {
	fe := newFieldErrors("address")

	street := strings.TrimSpace(p.Street)
	if !runeLenBetween(street, 3, 200) {
		fe.add("street", "must be between 3 and 200 characters", ErrInvalidFormat)
	}
	city := strings.TrimSpace(p.City)
	if !runeLenBetween(city, 2, 100) {
		fe.add("city", "must be between 2 and 100 characters", ErrInvalidFormat)
	}
	postal := strings.ReplaceAll(strings.TrimSpace(p.PostalCode), " ", "")
	if !postalCodePattern.MatchString(postal) {
		fe.add("postal_code", "must be 4 to 10 letters or digits", ErrInvalidFormat)
	}
	province := strings.TrimSpace(p.Province)
	if !runeLenBetween(province, 2, 100) {
		fe.add("province", "must be between 2 and 100 characters", ErrInvalidFormat)
	}
	country := strings.ToUpper(strings.TrimSpace(p.Country))
	if !countryPattern.MatchString(country) {
		fe.add("country", "must be an ISO 3166 alpha-2 code", ErrInvalidFormat)
	}

	if err := fe.err(); err != nil {
		return Address{}, err
	}
	return Address{
		street:     street,
		city:       city,
		postalCode: strings.ToUpper(postal),
		province:   province,
		country:    country,
	}, nil
}

// ReconstructAddress rebuilds a stored address without validation.
func ReconstructAddress(street, city, postalCode, province, country string) Address {
	return Address{street: street, city: city, postalCode: postalCode, province: province, country: country}
}

func (a Address) Street() string     { return a.street }
func (a Address) City() string       { return a.city }
func (a Address) PostalCode() string { return a.postalCode }
func (a Address) Province() string   { return a.province }
func (a Address) Country() string    { return a.country }
func (a Address) IsZero() bool       { return a == Address{} }

func runeLenBetween(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return n >= lo && n <= hi
}
