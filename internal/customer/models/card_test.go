package models_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	dErrors "customerhub/pkg/domain-errors"
)

type CardSuite struct {
	suite.Suite
	owner id.CustomerID
}

func TestCardSuite(t *testing.T) {
	suite.Run(t, new(CardSuite))
}

func (s *CardSuite) SetupTest() {
	s.owner = id.NewCustomerID()
}

func (s *CardSuite) TestConstructionInvariants() {
	number := mustNumber(s.T(), visaNumber)
	exp := mustYM(s.T(), 2027, time.May)
	cvv := mustCVV(s.T(), "123")

	s.Run("rejects missing arguments", func() {
		_, err := models.NewCard(id.CustomerID{}, number, exp, cvv, fixedNow)
		s.ErrorIs(err, models.ErrMissingArgument)
		_, err = models.NewCard(s.owner, models.CardNumber{}, exp, cvv, fixedNow)
		s.ErrorIs(err, models.ErrMissingArgument)
		_, err = models.NewCard(s.owner, number, models.YearMonth{}, cvv, fixedNow)
		s.ErrorIs(err, models.ErrMissingArgument)
		_, err = models.NewCard(s.owner, number, exp, models.CVV{}, fixedNow)
		s.ErrorIs(err, models.ErrMissingArgument)
	})

	s.Run("rejects expiration before the current month", func() {
		_, err := models.NewCard(s.owner, number, mustYM(s.T(), 2026, time.February), cvv, fixedNow)
		s.ErrorIs(err, models.ErrExpiredAtCreation)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("accepts the current month", func() {
		_, err := models.NewCard(s.owner, number, models.YearMonthOf(fixedNow), cvv, fixedNow)
		s.NoError(err)
	})

	s.Run("rejects undetectable network", func() {
		unknown := mustNumber(s.T(), withCheckDigit("900000000000000"))
		_, err := models.NewCard(s.owner, unknown, exp, cvv, fixedNow)
		s.ErrorIs(err, models.ErrNetworkNotDetected)
	})

	s.Run("rejects cvv length mismatch", func() {
		_, err := models.NewCard(s.owner, mustNumber(s.T(), amexNumber), exp, cvv, fixedNow)
		s.ErrorIs(err, models.ErrCVVLengthMismatch)
		_, err = models.NewCard(s.owner, number, exp, mustCVV(s.T(), "1234"), fixedNow)
		s.ErrorIs(err, models.ErrCVVLengthMismatch)
	})

	s.Run("new card is unvalidated", func() {
		card, err := models.NewCard(s.owner, number, exp, cvv, fixedNow)
		s.Require().NoError(err)
		s.False(card.Validated())
		s.Empty(card.RejectionReason())
		s.Equal(models.NetworkVisa, card.Network().Name)
		s.Equal(s.owner, card.OwnerID())
		s.False(card.ID().IsNil())
		s.False(card.IsValid(fixedNow))
	})
}

func (s *CardSuite) TestValidityTruthTable() {
	current := models.YearMonthOf(fixedNow)
	past := mustYM(s.T(), 2025, time.December)
	for _, expired := range []bool{false, true} {
		for _, validated := range []bool{false, true} {
			for _, rejected := range []bool{false, true} {
				name := fmt.Sprintf("expired=%t validated=%t rejected=%t", expired, validated, rejected)
				s.Run(name, func() {
					exp := current
					if expired {
						exp = past
					}
					reason := ""
					if rejected {
						reason = "issuer declined"
					}
					card := models.ReconstructCard(id.NewCardID(), s.owner, mustNumber(s.T(), visaNumber),
						models.CardNetworks()[0], exp, validated, reason, fixedNow, fixedNow)
					s.Equal(!expired && validated && !rejected, card.IsValid(fixedNow))
				})
			}
		}
	}
}

func (s *CardSuite) TestValidationOutcomes() {
	s.Run("mark validated clears a previous rejection", func() {
		card := mustCard(s.T(), s.owner, visaNumber)
		s.Require().NoError(card.MarkInvalid("insufficient funds", fixedNow))
		s.Require().NoError(card.MarkValidated(fixedNow))
		s.True(card.Validated())
		s.Empty(card.RejectionReason())
		s.True(card.IsValid(fixedNow))
	})

	s.Run("cannot validate an expired card", func() {
		card := mustCard(s.T(), s.owner, visaNumber)
		later := time.Date(2029, time.January, 1, 0, 0, 0, 0, time.UTC)
		err := card.MarkValidated(later)
		s.ErrorIs(err, models.ErrCannotValidateExpiredCard)
		s.False(card.Validated())
	})

	s.Run("mark invalid requires a reason", func() {
		card := mustCard(s.T(), s.owner, visaNumber)
		s.ErrorIs(card.MarkInvalid("  ", fixedNow), models.ErrBlankReason)
		s.Require().NoError(card.MarkInvalid("stolen", fixedNow))
		s.False(card.Validated())
		s.Equal("stolen", card.RejectionReason())
	})
}

func (s *CardSuite) TestUpdates() {
	s.Run("expiration update forces revalidation", func() {
		card := mustCard(s.T(), s.owner, visaNumber)
		s.Require().NoError(card.MarkValidated(fixedNow))
		s.Require().NoError(card.UpdateExpiration(mustYM(s.T(), 2030, time.June), fixedNow))
		s.False(card.Validated())
		s.Equal("expiration updated, revalidation required", card.RejectionReason())
		s.Equal("2030-06", card.Expiration().String())
	})

	s.Run("expiration update of an unvalidated card leaves flags alone", func() {
		card := mustCard(s.T(), s.owner, visaNumber)
		s.Require().NoError(card.UpdateExpiration(mustYM(s.T(), 2030, time.June), fixedNow))
		s.Empty(card.RejectionReason())
	})

	s.Run("past expiration is refused and nothing changes", func() {
		card := mustCard(s.T(), s.owner, visaNumber)
		s.Require().NoError(card.MarkValidated(fixedNow))
		err := card.UpdateExpiration(mustYM(s.T(), 2025, time.January), fixedNow)
		s.ErrorIs(err, models.ErrExpirationInPast)
		s.True(card.Validated())
		s.Equal("2028-12", card.Expiration().String())
	})

	s.Run("number update re-detects network", func() {
		card := mustCard(s.T(), s.owner, visaNumber)
		s.Require().NoError(card.MarkValidated(fixedNow))
		s.Require().NoError(card.UpdateNumber(mustNumber(s.T(), amexNumber), mustCVV(s.T(), "1234"), fixedNow))
		s.Equal(models.NetworkAmericanExpress, card.Network().Name)
		s.False(card.Validated())
		s.Equal("card number updated, revalidation required", card.RejectionReason())
	})

	s.Run("number update with wrong cvv length changes nothing", func() {
		card := mustCard(s.T(), s.owner, visaNumber)
		err := card.UpdateNumber(mustNumber(s.T(), amexNumber), mustCVV(s.T(), "123"), fixedNow)
		s.ErrorIs(err, models.ErrCVVLengthMismatch)
		s.Equal(models.NetworkVisa, card.Network().Name)
		s.Equal("**** **** **** 0366", card.MaskedNumber())
	})
}

func (s *CardSuite) TestExpiryQueries() {
	card := models.ReconstructCard(id.NewCardID(), s.owner, mustNumber(s.T(), visaNumber),
		models.CardNetworks()[0], mustYM(s.T(), 2026, time.June), true, "", fixedNow, fixedNow)
	s.Equal(3, card.MonthsUntilExpiration(fixedNow))
	s.True(card.ExpiresSoon(fixedNow))

	july := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	s.Equal(-1, card.MonthsUntilExpiration(july))
	s.False(card.ExpiresSoon(july))
	s.True(card.IsExpired(july))

	january := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	s.Equal(5, card.MonthsUntilExpiration(january))
	s.False(card.ExpiresSoon(january))
}
