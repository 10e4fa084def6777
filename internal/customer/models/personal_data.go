package models

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinAge = 18
	MaxAge = 120

	maxEmailLength = 255
)

var (
	emailPattern    = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)
	phonePattern    = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)
	identityPattern = regexp.MustCompile(`^[A-Z0-9]{5,20}$`)
)

// PersonalDataParams carries raw input for NewPersonalData.
type PersonalDataParams struct {
	Name           string
	Surname        string
	Email          string
	Phone          string
	BirthDate      time.Time
	IdentityNumber string
}

// PersonalData is the customer's identity and contact information.
//
// Invariants:
//   - name and surname are 2..100 characters
//   - email is lower-cased, well formed, at most 255 characters
//   - phone is empty or an international number
//   - age at creation is between MinAge and MaxAge
//   - identity number is 5..20 upper-case alphanumerics
type PersonalData struct {
	name           string
	surname        string
	email          string
	phone          string
	birthDate      time.Time
	identityNumber string
}

// NewPersonalData normalises and validates params, reporting every invalid
// field in one *ValidationError.
func NewPersonalData(p PersonalDataParams, now time.Time) (PersonalData, error) {
	fe := newFieldErrors("personal data")

	name := strings.TrimSpace(p.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		fe.add("name", "must be between 2 and 100 characters", ErrInvalidFormat)
	}
	surname := strings.TrimSpace(p.Surname)
	if n := utf8.RuneCountInString(surname); n < 2 || n > 100 {
		fe.add("surname", "must be between 2 and 100 characters", ErrInvalidFormat)
	}

	email := strings.ToLower(strings.TrimSpace(p.Email))
	switch {
	case email == "":
		fe.add("email", "is required", ErrInvalidFormat)
	case len(email) > maxEmailLength:
		fe.add("email", "must be at most 255 characters", ErrInvalidFormat)
	case !emailPattern.MatchString(email):
		fe.add("email", "is not a valid address", ErrInvalidFormat)
	}

	phone := stripSeparators(p.Phone)
	if phone != "" && !phonePattern.MatchString(phone) {
		fe.add("phone", "must be an international number", ErrInvalidFormat)
	}

	birth := p.BirthDate
	switch {
	case birth.IsZero():
		fe.add("birth_date", "is required", ErrInvalidFormat)
	case birth.After(now):
		fe.add("birth_date", "must not be in the future", ErrInvalidFormat)
	default:
		age := ageAt(birth, now)
		if age < MinAge {
			fe.add("birth_date", "customer must be at least 18 years old", ErrUnderage)
		} else if age > MaxAge {
			fe.add("birth_date", "customer age must not exceed 120 years", ErrAgeOutOfRange)
		}
	}

	identity := strings.ToUpper(strings.TrimSpace(p.IdentityNumber))
	if !identityPattern.MatchString(identity) {
		fe.add("identity_number", "must be 5 to 20 letters or digits", ErrInvalidFormat)
	}

	if err := fe.err(); err != nil {
		return PersonalData{}, err
	}
	return PersonalData{
		name:           name,
		surname:        surname,
		email:          email,
		phone:          phone,
		birthDate:      truncateToDate(birth),
		identityNumber: identity,
	}, nil
}

// ReconstructPersonalData rebuilds stored data without validation.
func ReconstructPersonalData(name, surname, email, phone string, birthDate time.Time, identityNumber string) PersonalData {
	return PersonalData{
		name:           name,
		surname:        surname,
		email:          email,
		phone:          phone,
		birthDate:      birthDate,
		identityNumber: identityNumber,
	}
}

func (p PersonalData) Name() string           { return p.name }
func (p PersonalData) Surname() string        { return p.surname }
func (p PersonalData) Email() string          { return p.email }
func (p PersonalData) Phone() string          { return p.phone }
func (p PersonalData) BirthDate() time.Time   { return p.birthDate }
func (p PersonalData) IdentityNumber() string { return p.identityNumber }
func (p PersonalData) IsZero() bool           { return p.email == "" && p.identityNumber == "" }

func (p PersonalData) FullName() string { return p.name + " " + p.surname }

// Age returns completed years at now.
func (p PersonalData) Age(now time.Time) int { return ageAt(p.birthDate, now) }

// SameIdentity reports whether other keeps the identity number and birth date.
func (p PersonalData) SameIdentity(other PersonalData) bool {
	return p.identityNumber == other.identityNumber && p.birthDate.Equal(other.birthDate)
}

func ageAt(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
