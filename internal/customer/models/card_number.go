package models

import (
	"encoding/json"
	"strings"
)

const (
	minCardDigits = 13
	maxCardDigits = 19
	binLength     = 6
)

// CardNumber is a validated primary account number.
//
// Invariants:
//   - 13 to 19 decimal digits
//   - passes the Luhn checksum
//
// The digits are unexported and every printing path (String, GoString,
// MarshalJSON) yields the masked form. Reveal exists only for the encryption
// boundary in the store.
type CardNumber struct {
	digits string
}

// NewCardNumber strips spaces and dashes from raw and validates the result.
//
// Errors: ErrInvalidFormat for anything but 13-19 digits, ErrLuhnCheckFailed
// when the checksum does not hold. Both carry CodeValidation.
func NewCardNumber(raw string) (CardNumber, error) {
	digits := stripSeparators(raw)
	if len(digits) < minCardDigits || len(digits) > maxCardDigits || !isDigits(digits) {
		return CardNumber{}, validationErr(ErrInvalidFormat, "card number must be 13 to 19 digits")
	}
	if !Luhn(digits) {
		return CardNumber{}, validationErr(ErrLuhnCheckFailed, "card number failed checksum validation")
	}
	return CardNumber{digits: digits}, nil
}

// Luhn reports whether digits satisfy the Luhn checksum. Scanning from the
// right, every second digit (positions 1, 3, 5, ...) is doubled and reduced
// by 9 when it exceeds 9.
func Luhn(digits string) bool {
	if digits == "" || !isDigits(digits) {
		return false
	}
	sum := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[len(digits)-1-i] - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// Network detects the card network from the digits.
func (n CardNumber) Network() (CardNetwork, error) {
	return DetectNetwork(n.digits)
}

// Masked replaces all but the last four digits with '*', grouped in blocks
// of four, followed by the last four digits in clear.
// 4532015112830366 -> "**** **** **** 0366".
func (n CardNumber) Masked() string {
	if len(n.digits) < 4 {
		return ""
	}
	hidden := len(n.digits) - 4
	var b strings.Builder
	for i := 0; i < hidden; i++ {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('*')
	}
	if hidden > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(n.digits[hidden:])
	return b.String()
}

// BIN returns the issuer identification prefix (first six digits).
func (n CardNumber) BIN() string {
	if len(n.digits) < binLength {
		return n.digits
	}
	return n.digits[:binLength]
}

func (n CardNumber) LastFour() string {
	if len(n.digits) < 4 {
		return n.digits
	}
	return n.digits[len(n.digits)-4:]
}

func (n CardNumber) Len() int { return len(n.digits) }

func (n CardNumber) IsZero() bool { return n.digits == "" }

// Equal compares two numbers in constant shape; both are already normalised.
func (n CardNumber) Equal(other CardNumber) bool { return n.digits == other.digits }

// Reveal returns the clear digits. Callers outside the encryption boundary
// must use Masked.
func (n CardNumber) Reveal() string { return n.digits }

func (n CardNumber) String() string   { return n.Masked() }
func (n CardNumber) GoString() string { return "CardNumber(" + n.Masked() + ")" }

func (n CardNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Masked())
}

// ReconstructCardNumber rebuilds a number from decrypted storage without
// re-running validation.
func ReconstructCardNumber(digits string) CardNumber {
	return CardNumber{digits: digits}
}

func stripSeparators(raw string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
