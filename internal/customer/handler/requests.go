package handler

import (
	"strings"
	"time"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	dErrors "customerhub/pkg/domain-errors"
)

const (
	maxTextField   = 255
	birthDateInput = "2006-01-02"
)

// PersonalDataRequest is the body of PUT /customers/{id}/personal-data and
// the personal part of registration.
type PersonalDataRequest struct {
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	BirthDate      string `json:"birth_date"`
	IdentityNumber string `json:"identity_number"`

	birthDate time.Time
}

func (r *PersonalDataRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Surname = strings.TrimSpace(r.Surname)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.BirthDate = strings.TrimSpace(r.BirthDate)
	r.IdentityNumber = strings.TrimSpace(r.IdentityNumber)
}

func (r *PersonalDataRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	for field, v := range map[string]string{
		"name": r.Name, "surname": r.Surname, "email": r.Email,
		"phone": r.Phone, "identity_number": r.IdentityNumber,
	} {
		if len(v) > maxTextField {
			return dErrors.Newf(dErrors.CodeValidation, "%s must be at most %d characters", field, maxTextField)
		}
	}
	if r.BirthDate == "" {
		return dErrors.New(dErrors.CodeValidation, "birth_date is required")
	}
	bd, err := time.Parse(birthDateInput, r.BirthDate)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "birth_date must be YYYY-MM-DD")
	}
	r.birthDate = bd
	return nil
}

func (r *PersonalDataRequest) toParams() models.PersonalDataParams {
	return models.PersonalDataParams{
		Name:           r.Name,
		Surname:        r.Surname,
		Email:          r.Email,
		Phone:          r.Phone,
		BirthDate:      r.birthDate,
		IdentityNumber: r.IdentityNumber,
	}
}

type AddressRequest struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Province   string `json:"province"`
	Country    string `json:"country"`
}

func (r *AddressRequest) Normalize() {
	r.Street = strings.TrimSpace(r.Street)
	r.City = strings.TrimSpace(r.City)
	r.PostalCode = strings.TrimSpace(r.PostalCode)
	r.Province = strings.TrimSpace(r.Province)
	r.Country = strings.TrimSpace(r.Country)
}

func (r *AddressRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Street)+len(r.City)+len(r.PostalCode)+len(r.Province)+len(r.Country) > 4*maxTextField {
		return dErrors.New(dErrors.CodeValidation, "address is too long")
	}
	return nil
}

func (r *AddressRequest) toParams() models.AddressParams {
	return models.AddressParams{
		Street:     r.Street,
		City:       r.City,
		PostalCode: r.PostalCode,
		Province:   r.Province,
		Country:    r.Country,
	}
}

// CardRequest carries a clear card number and CVV. Neither is ever logged.
type CardRequest struct {
	Number     string `json:"number"`
	CVV        string `json:"cvv"`
	Expiration string `json:"expiration"`
}

func (r *CardRequest) Normalize() {
	r.Number = strings.TrimSpace(r.Number)
	r.CVV = strings.TrimSpace(r.CVV)
	r.Expiration = strings.TrimSpace(r.Expiration)
}

func (r *CardRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Number == "" || r.CVV == "" || r.Expiration == "" {
		return dErrors.New(dErrors.CodeValidation, "number, cvv and expiration are required")
	}
	if len(r.Number) > 32 || len(r.CVV) > 8 || len(r.Expiration) > 16 {
		return dErrors.New(dErrors.CodeValidation, "card fields are too long")
	}
	return nil
}

func (r *CardRequest) toParams() models.CardParams {
	return models.CardParams{Number: r.Number, CVV: r.CVV, Expiration: r.Expiration}
}

// RegisterRequest is the body of POST /customers.
type RegisterRequest struct {
	PersonalDataRequest
	Address AddressRequest `json:"address"`
	Card    CardRequest    `json:"card"`
}

func (r *RegisterRequest) Normalize() {
	r.PersonalDataRequest.Normalize()
	r.Address.Normalize()
	r.Card.Normalize()
}

func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := r.PersonalDataRequest.Validate(); err != nil {
		return err
	}
	if err := r.Address.Validate(); err != nil {
		return err
	}
	return r.Card.Validate()
}

func (r *RegisterRequest) toParams() models.RegisterParams {
	return models.RegisterParams{
		Personal: r.PersonalDataRequest.toParams(),
		Address:  r.Address.toParams(),
		Card:     r.Card.toParams(),
	}
}

type ExpirationRequest struct {
	Expiration string `json:"expiration"`
}

func (r *ExpirationRequest) Normalize() { r.Expiration = strings.TrimSpace(r.Expiration) }

func (r *ExpirationRequest) Validate() error {
	if r == nil || r.Expiration == "" {
		return dErrors.New(dErrors.CodeValidation, "expiration is required")
	}
	return nil
}

type CardNumberRequest struct {
	Number string `json:"number"`
	CVV    string `json:"cvv"`
}

func (r *CardNumberRequest) Normalize() {
	r.Number = strings.TrimSpace(r.Number)
	r.CVV = strings.TrimSpace(r.CVV)
}

func (r *CardNumberRequest) Validate() error {
	if r == nil || r.Number == "" || r.CVV == "" {
		return dErrors.New(dErrors.CodeValidation, "number and cvv are required")
	}
	return nil
}

type BlockRequest struct {
	Reason               string `json:"reason"`
	RequiresManualReview bool   `json:"requires_manual_review"`
}

func (r *BlockRequest) Normalize() { r.Reason = strings.TrimSpace(r.Reason) }

func (r *BlockRequest) Validate() error {
	if r == nil || r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if len(r.Reason) > maxTextField {
		return dErrors.Newf(dErrors.CodeValidation, "reason must be at most %d characters", maxTextField)
	}
	return nil
}

type UnblockRequest struct {
	Reason string `json:"reason"`
}

func (r *UnblockRequest) Normalize() { r.Reason = strings.TrimSpace(r.Reason) }

func (r *UnblockRequest) Validate() error {
	if r == nil || r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

// CardValidationRequest lets an operator record a validation verdict by hand.
type CardValidationRequest struct {
	CardID   string `json:"card_id"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`

	cardID id.CardID
}

func (r *CardValidationRequest) Normalize() {
	r.CardID = strings.TrimSpace(r.CardID)
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *CardValidationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	cardID, err := id.ParseCardID(r.CardID)
	if err != nil {
		return err
	}
	r.cardID = cardID
	if !r.Approved && r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required when rejecting a card")
	}
	return nil
}

func (r *CardValidationRequest) toOutcome(customerID id.CustomerID) models.CardValidationOutcome {
	return models.CardValidationOutcome{
		CustomerID: customerID,
		CardID:     r.cardID,
		Approved:   r.Approved,
		Reason:     r.Reason,
	}
}
