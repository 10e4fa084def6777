package models

import (
	"regexp"
	"slices"

	dErrors "customerhub/pkg/domain-errors"
)

// CardNetwork describes one accepted card scheme.
type CardNetwork struct {
	Name      string
	Pattern   *regexp.Regexp
	Lengths   []int
	CVVLength int
}

// Network names as they appear in responses and persisted rows.
const (
	NetworkVisa            = "VISA"
	NetworkMastercard      = "MASTERCARD"
	NetworkAmericanExpress = "AMERICAN_EXPRESS"
	NetworkDiscover        = "DISCOVER"
)

// cardNetworks is the fixed catalog. Order matters: detection returns the
// first entry whose length set and prefix pattern both match.
var cardNetworks = []CardNetwork{
	{
		Name:      NetworkVisa,
		Pattern:   regexp.MustCompile(`^4`),
		Lengths:   []int{13, 16, 19},
		CVVLength: 3,
	},
	{
		// 51-55 and 2221-2720
		Name:      NetworkMastercard,
		Pattern:   regexp.MustCompile(`^(5[1-5]|222[1-9]|22[3-9]\d|2[3-6]\d{2}|27[01]\d|2720)`),
		Lengths:   []int{16},
		CVVLength: 3,
	},
	{
		Name:      NetworkAmericanExpress,
		Pattern:   regexp.MustCompile(`^3[47]`),
		Lengths:   []int{15},
		CVVLength: 4,
	},
	{
		// 6011, 622126-622925, 644-649, 65
		Name:      NetworkDiscover,
		Pattern:   regexp.MustCompile(`^(6011|62212[6-9]|6221[3-9]\d|622[2-8]\d{2}|6229[01]\d|62292[0-5]|64[4-9]|65)`),
		Lengths:   []int{16},
		CVVLength: 3,
	},
}

// CardNetworks returns a copy of the catalog in detection order.
func CardNetworks() []CardNetwork {
	out := make([]CardNetwork, len(cardNetworks))
	copy(out, cardNetworks)
	return out
}

// Accepts reports whether digits have an accepted length and matching prefix.
func (n CardNetwork) Accepts(digits string) bool {
	return slices.Contains(n.Lengths, len(digits)) && n.Pattern.MatchString(digits)
}

func (n CardNetwork) IsZero() bool { return n.Name == "" }

func (n CardNetwork) String() string { return n.Name }

// DetectNetwork returns the first catalog entry accepting digits.
//
// Errors: ErrNetworkNotDetected (CodeValidation) when nothing matches.
func DetectNetwork(digits string) (CardNetwork, error) {
	for _, n := range cardNetworks {
		if n.Accepts(digits) {
			return n, nil
		}
	}
	return CardNetwork{}, validationErr(ErrNetworkNotDetected, "card number does not match any accepted network")
}

// ParseCardNetwork looks a network up by name, for reconstruction of stored rows.
func ParseCardNetwork(name string) (CardNetwork, error) {
	for _, n := range cardNetworks {
		if n.Name == name {
			return n, nil
		}
	}
	return CardNetwork{}, dErrors.New(dErrors.CodeInvalidInput, "unknown card network: "+name)
}
