package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	dErrors "customerhub/pkg/domain-errors"
)

type CustomerSuite struct {
	suite.Suite
}

func TestCustomerSuite(t *testing.T) {
	suite.Run(t, new(CustomerSuite))
}

func (s *CustomerSuite) cardFor(c *models.Customer, payload string) *models.Card {
	return mustCard(s.T(), c.ID(), withCheckDigit(payload))
}

func (s *CustomerSuite) inState(status models.Status) *models.Customer {
	base := newCustomer(s.T())
	return models.ReconstructCustomer(base.ID(), base.PersonalData(), base.Address(), base.Cards(),
		status, "", false, 1, fixedNow, fixedNow)
}

func (s *CustomerSuite) TestCreation() {
	s.Run("starts pending with one card and a created event", func() {
		customerID := id.NewCustomerID()
		card := mustCard(s.T(), customerID, visaNumber)
		c, err := models.NewCustomer(customerID, mustPersonal(s.T()), mustAddress(s.T()), card, fixedNow)
		s.Require().NoError(err)
		s.Equal(models.StatusPendingValidation, c.Status())
		s.Equal(1, c.CardCount())

		events := c.PullEvents()
		s.Require().Len(events, 1)
		created, ok := events[0].(models.CustomerCreated)
		s.Require().True(ok)
		s.Equal(customerID, created.AggregateID())
		s.Equal("**** **** **** 0366", created.InitialCard.Masked)
		s.Empty(c.PullEvents())
	})

	s.Run("rejects missing parts", func() {
		customerID := id.NewCustomerID()
		card := mustCard(s.T(), customerID, visaNumber)
		_, err := models.NewCustomer(customerID, models.PersonalData{}, mustAddress(s.T()), card, fixedNow)
		s.ErrorIs(err, models.ErrMissingArgument)
		_, err = models.NewCustomer(customerID, mustPersonal(s.T()), models.Address{}, card, fixedNow)
		s.ErrorIs(err, models.ErrMissingArgument)
		_, err = models.NewCustomer(customerID, mustPersonal(s.T()), mustAddress(s.T()), nil, fixedNow)
		s.ErrorIs(err, models.ErrMissingArgument)
	})

	s.Run("rejects a card owned by someone else", func() {
		card := mustCard(s.T(), id.NewCustomerID(), visaNumber)
		_, err := models.NewCustomer(id.NewCustomerID(), mustPersonal(s.T()), mustAddress(s.T()), card, fixedNow)
		s.ErrorIs(err, models.ErrCardOwnerMismatch)
	})
}

func (s *CustomerSuite) TestCardCardinality() {
	s.Run("add up to three then refuse", func() {
		c := newCustomer(s.T())
		s.Require().NoError(c.AddCard(s.cardFor(c, "411111111111111"), fixedNow))
		s.Require().NoError(c.AddCard(mustCard(s.T(), c.ID(), mastercardNumber), fixedNow))
		err := c.AddCard(mustCard(s.T(), c.ID(), discoverNumber), fixedNow)
		s.ErrorIs(err, models.ErrCardLimitExceeded)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Equal(3, c.CardCount())
	})

	s.Run("duplicate number is refused", func() {
		c := newCustomer(s.T())
		err := c.AddCard(mustCard(s.T(), c.ID(), visaNumber), fixedNow)
		s.ErrorIs(err, models.ErrDuplicateCard)
		s.Equal(1, c.CardCount())
	})

	s.Run("foreign card is refused", func() {
		c := newCustomer(s.T())
		err := c.AddCard(mustCard(s.T(), id.NewCustomerID(), mastercardNumber), fixedNow)
		s.ErrorIs(err, models.ErrCardOwnerMismatch)
	})

	s.Run("remove keeps at least one card", func() {
		c := newCustomer(s.T())
		extra := mustCard(s.T(), c.ID(), mastercardNumber)
		s.Require().NoError(c.AddCard(extra, fixedNow))
		s.Require().NoError(c.RemoveCard(extra.ID(), "replaced", fixedNow))

		last := c.Cards()[0]
		err := c.RemoveCard(last.ID(), "closing", fixedNow)
		s.ErrorIs(err, models.ErrCustomerRequiresCard)
		s.Equal(1, c.CardCount())
	})

	s.Run("remove unknown card", func() {
		c := newCustomer(s.T())
		err := c.RemoveCard(id.NewCardID(), "", fixedNow)
		s.ErrorIs(err, models.ErrCardNotFound)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("cards are returned as copies", func() {
		c := newCustomer(s.T())
		copyCard := c.Cards()[0]
		s.Require().NoError(copyCard.MarkInvalid("tampered", fixedNow))
		s.Empty(c.Cards()[0].RejectionReason())
	})
}

func (s *CustomerSuite) TestCardMutationsThroughAggregate() {
	c := newCustomer(s.T())
	cardID := c.Cards()[0].ID()

	s.Require().NoError(c.ValidateCard(cardID, fixedNow))
	s.Len(c.ValidCards(fixedNow), 1)
	def, ok := c.DefaultPaymentCard(fixedNow)
	s.Require().True(ok)
	s.Equal(cardID, def.ID())

	s.Require().NoError(c.UpdateCardExpiration(cardID, mustYM(s.T(), 2031, time.January), fixedNow))
	s.Empty(c.ValidCards(fixedNow))

	s.Require().NoError(c.ValidateCard(cardID, fixedNow))
	s.Require().NoError(c.UpdateCardNumber(cardID, mustNumber(s.T(), mastercardNumber), mustCVV(s.T(), "999"), fixedNow))
	card, err := c.Card(cardID)
	s.Require().NoError(err)
	s.Equal(models.NetworkMastercard, card.Network().Name)
	s.Equal("card number updated, revalidation required", card.RejectionReason())

	s.Require().NoError(c.RejectCard(cardID, "issuer declined", fixedNow))
	_, ok = c.DefaultPaymentCard(fixedNow)
	s.False(ok)

	types := eventTypes(c.PullEvents())
	s.Equal([]string{
		models.EventCardValidated,
		models.EventCardExpirationUpdated,
		models.EventCardValidated,
		models.EventCardNumberUpdated,
		models.EventCardRejected,
	}, types)
}

func (s *CustomerSuite) TestPersonalDataAndAddress() {
	s.Run("replaces contact data", func() {
		c := newCustomer(s.T())
		p := validPersonalParams()
		p.Email = "ada@newmail.org"
		pd, err := models.NewPersonalData(p, fixedNow)
		s.Require().NoError(err)
		s.Require().NoError(c.UpdatePersonalData(pd, fixedNow))
		s.Equal("ada@newmail.org", c.PersonalData().Email())

		events := c.PullEvents()
		s.Require().Len(events, 1)
		upd := events[0].(models.PersonalDataUpdated)
		s.Equal("ada.lovelace@example.com", upd.Before.Email)
		s.Equal("ada@newmail.org", upd.After.Email)
	})

	s.Run("identity number is immutable", func() {
		c := newCustomer(s.T())
		p := validPersonalParams()
		p.IdentityNumber = "Z9999999"
		pd, err := models.NewPersonalData(p, fixedNow)
		s.Require().NoError(err)
		s.ErrorIs(c.UpdatePersonalData(pd, fixedNow), models.ErrImmutableIdentity)
		s.Equal("X1234567L", c.PersonalData().IdentityNumber())
	})

	s.Run("address update is refused when blocked", func() {
		c := s.inState(models.StatusBlocked)
		err := c.UpdateAddress(mustAddress(s.T()), fixedNow)
		s.ErrorIs(err, models.ErrInvalidStateTransition)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *CustomerSuite) TestBlockAndUnblock() {
	s.Run("block requires a reason", func() {
		c := newCustomer(s.T())
		s.ErrorIs(c.Block(" ", false, fixedNow), models.ErrBlankReason)
		s.Equal(models.StatusPendingValidation, c.Status())
	})

	s.Run("re-blocking replaces the reason", func() {
		c := newCustomer(s.T())
		s.Require().NoError(c.Block("chargeback", false, fixedNow))
		s.Require().NoError(c.Block("fraud", true, fixedNow))
		s.Equal("fraud", c.BlockReason())
		s.True(c.RequiresManualReview())
	})

	s.Run("unblock requires reason and administrator", func() {
		c := s.inState(models.StatusBlocked)
		s.ErrorIs(c.Unblock("", "admin1", fixedNow), models.ErrBlankReason)
		s.ErrorIs(c.Unblock("cleared", "", fixedNow), models.ErrMissingArgument)
		s.Require().NoError(c.Unblock("cleared", "admin1", fixedNow))
		s.Equal(models.StatusActive, c.Status())
		s.Empty(c.BlockReason())
	})

	s.Run("deactivate is refused while blocked", func() {
		c := s.inState(models.StatusBlocked)
		err := c.Deactivate(fixedNow)
		var ste *models.StateTransitionError
		s.Require().True(errors.As(err, &ste))
		s.Equal(models.StatusBlocked, ste.Current)
		s.Contains(err.Error(), "BLOCKED")
	})
}

type lifecycleCall func(*models.Customer) error

var lifecycleOps = map[models.Operation]lifecycleCall{
	models.OpActivate:            func(c *models.Customer) error { return c.Activate(fixedNow) },
	models.OpBlock:               func(c *models.Customer) error { return c.Block("fraud", true, fixedNow) },
	models.OpUnblock:             func(c *models.Customer) error { return c.Unblock("cleared", "admin1", fixedNow) },
	models.OpStartReservation:    func(c *models.Customer) error { return c.StartReservationProcess(fixedNow) },
	models.OpConfirmReservation:  func(c *models.Customer) error { return c.ConfirmReservation(fixedNow) },
	models.OpFinalizeReservation: func(c *models.Customer) error { return c.FinalizeReservation(fixedNow) },
	models.OpDeactivate:          func(c *models.Customer) error { return c.Deactivate(fixedNow) },
	models.OpReactivate:          func(c *models.Customer) error { return c.Reactivate(fixedNow) },
}

func (s *CustomerSuite) TestStateMachineCompleteness() {
	P, A := models.StatusPendingValidation, models.StatusActive
	IP, C := models.StatusReservationInProgress, models.StatusReservationConfirmed
	B, I := models.StatusBlocked, models.StatusInactive

	allowed := map[models.Operation]map[models.Status]models.Status{
		models.OpActivate:            {P: A},
		models.OpStartReservation:    {A: IP},
		models.OpConfirmReservation:  {IP: C},
		models.OpFinalizeReservation: {C: A},
		models.OpBlock:               {P: B, A: B, IP: B, C: B, B: B},
		models.OpUnblock:             {B: A},
		models.OpDeactivate:          {P: I, A: I, IP: I, C: I, I: I},
		models.OpReactivate:          {I: A},
	}

	for op, call := range lifecycleOps {
		for _, from := range models.AllStatuses {
			s.Run(string(op)+" from "+string(from), func() {
				c := s.inState(from)
				err := call(c)
				target, ok := allowed[op][from]
				if ok {
					s.Require().NoError(err)
					s.Equal(target, c.Status())
					return
				}
				s.Require().Error(err)
				s.ErrorIs(err, models.ErrInvalidStateTransition)
				s.Equal(from, c.Status(), "failed transition must not change state")
				s.Empty(c.PullEvents())
			})
		}
	}
}

// dataMutations runs against a customer holding two cards, so RemoveCard is
// never stopped by the last-card rule.
var dataMutations = map[string]func(s *CustomerSuite, c *models.Customer) error{
	"update personal data": func(s *CustomerSuite, c *models.Customer) error {
		params := validPersonalParams()
		params.Name = "Augusta"
		pd, err := models.NewPersonalData(params, fixedNow)
		s.Require().NoError(err)
		return c.UpdatePersonalData(pd, fixedNow)
	},
	"update address": func(s *CustomerSuite, c *models.Customer) error {
		params := validAddressParams()
		params.Street = "10 Downing Street"
		addr, err := models.NewAddress(params)
		s.Require().NoError(err)
		return c.UpdateAddress(addr, fixedNow)
	},
	"add card": func(s *CustomerSuite, c *models.Customer) error {
		return c.AddCard(mustCard(s.T(), c.ID(), discoverNumber), fixedNow)
	},
	"remove card": func(s *CustomerSuite, c *models.Customer) error {
		return c.RemoveCard(c.Cards()[1].ID(), "unused", fixedNow)
	},
	"update card expiration": func(s *CustomerSuite, c *models.Customer) error {
		return c.UpdateCardExpiration(c.Cards()[0].ID(), mustYM(s.T(), 2029, time.January), fixedNow)
	},
	"update card number": func(s *CustomerSuite, c *models.Customer) error {
		return c.UpdateCardNumber(c.Cards()[0].ID(), mustNumber(s.T(), discoverNumber), mustCVV(s.T(), "123"), fixedNow)
	},
}

func (s *CustomerSuite) TestDataMutationsInEveryState() {
	mutable := map[models.Status]bool{
		models.StatusPendingValidation:     true,
		models.StatusActive:                true,
		models.StatusReservationInProgress: true,
		models.StatusReservationConfirmed:  true,
	}

	for name, mutate := range dataMutations {
		for _, from := range models.AllStatuses {
			s.Run(name+" from "+string(from), func() {
				base := newCustomer(s.T())
				cards := append(base.Cards(), mustCard(s.T(), base.ID(), mastercardNumber))
				c := models.ReconstructCustomer(base.ID(), base.PersonalData(), base.Address(), cards,
					from, "", false, 1, fixedNow, fixedNow)

				err := mutate(s, c)
				if mutable[from] {
					s.Require().NoError(err)
					s.Equal(from, c.Status(), "data changes never move the lifecycle")
					s.NotEmpty(c.PullEvents())
					return
				}
				s.Require().Error(err)
				s.ErrorIs(err, models.ErrInvalidStateTransition)
				s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
				s.Equal(from, c.Status())
				s.Equal(2, c.CardCount(), "failed mutation must not touch cards")
				s.Empty(c.PullEvents())
			})
		}
	}
}

// Validation outcomes arrive asynchronously and are applied in any state.
func (s *CustomerSuite) TestCardValidationOutcomesInEveryState() {
	for _, from := range models.AllStatuses {
		s.Run(string(from), func() {
			c := s.inState(from)
			cardID := c.Cards()[0].ID()
			s.Require().NoError(c.RejectCard(cardID, "issuer declined", fixedNow))
			s.Require().NoError(c.ValidateCard(cardID, fixedNow))
			s.Equal(from, c.Status())
		})
	}
}

func (s *CustomerSuite) TestCanMakePayments() {
	for _, st := range models.AllStatuses {
		c := s.inState(st)
		s.Equal(st == models.StatusActive || st == models.StatusReservationInProgress, c.CanMakePayments(), st)
	}
}

func (s *CustomerSuite) TestEndToEndScenario() {
	customerID := id.NewCustomerID()
	exp := models.YearMonthOf(fixedNow.AddDate(1, 0, 0))
	first, err := models.NewCard(customerID, mustNumber(s.T(), visaNumber), exp, mustCVV(s.T(), "123"), fixedNow)
	s.Require().NoError(err)
	s.Equal(models.NetworkVisa, first.Network().Name)

	c, err := models.NewCustomer(customerID, mustPersonal(s.T()), mustAddress(s.T()), first, fixedNow)
	s.Require().NoError(err)
	s.Equal(models.StatusPendingValidation, c.Status())

	s.Require().NoError(c.Activate(fixedNow))
	s.Equal(models.StatusActive, c.Status())

	s.Require().NoError(c.AddCard(mustCard(s.T(), customerID, mastercardNumber), fixedNow))
	s.Require().NoError(c.AddCard(mustCard(s.T(), customerID, amexNumber), fixedNow))
	s.ErrorIs(c.AddCard(mustCard(s.T(), customerID, discoverNumber), fixedNow), models.ErrCardLimitExceeded)

	cards := c.Cards()
	s.Require().NoError(c.RemoveCard(cards[2].ID(), "unused", fixedNow))
	s.Require().NoError(c.RemoveCard(cards[1].ID(), "unused", fixedNow))
	s.ErrorIs(c.RemoveCard(cards[0].ID(), "unused", fixedNow), models.ErrCustomerRequiresCard)

	s.Require().NoError(c.Block("fraud", true, fixedNow))
	s.ErrorIs(c.AddCard(mustCard(s.T(), customerID, discoverNumber), fixedNow), models.ErrInvalidStateTransition)

	s.Require().NoError(c.Unblock("cleared", "admin1", fixedNow))
	s.Equal(models.StatusActive, c.Status())

	s.Equal([]string{
		models.EventCustomerCreated,
		models.EventCustomerActivated,
		models.EventCardAdded,
		models.EventCardAdded,
		models.EventCardRemoved,
		models.EventCardRemoved,
		models.EventCustomerBlocked,
		models.EventCustomerUnblocked,
	}, eventTypes(c.PullEvents()))
}

func eventTypes(events []models.DomainEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventType()
	}
	return out
}
