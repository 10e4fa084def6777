package models

import "encoding/json"

// CVV is a card security code. It is transient: stores never persist it and
// it never appears in logs or JSON.
type CVV struct {
	digits string
}

// NewCVV validates a 3 or 4 digit security code.
func NewCVV(raw string) (CVV, error) {
	if len(raw) < 3 || len(raw) > 4 || !isDigits(raw) {
		return CVV{}, validationErr(ErrInvalidFormat, "cvv must be 3 or 4 digits")
	}
	return CVV{digits: raw}, nil
}

// LengthMatches reports whether the code has the expected digit count.
func (c CVV) LengthMatches(expected int) bool { return len(c.digits) == expected }

func (c CVV) Len() int { return len(c.digits) }

func (c CVV) IsZero() bool { return c.digits == "" }

func (c CVV) String() string   { return "***" }
func (c CVV) GoString() string { return "CVV(***)" }

func (c CVV) MarshalJSON() ([]byte, error) { return json.Marshal(nil) }
