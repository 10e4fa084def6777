package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"customerhub/internal/customer/customertest"
	"customerhub/internal/customer/events"
	"customerhub/internal/customer/models"
	"customerhub/internal/customer/service"
	"customerhub/internal/customer/store/cache"
	customerstore "customerhub/internal/customer/store/customer"
	id "customerhub/pkg/domain"
	dErrors "customerhub/pkg/domain-errors"
	outboxmemory "customerhub/pkg/platform/outbox/memory"
	"customerhub/pkg/requestcontext"
)

type CustomerServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *customerstore.InMemory
	outbox  *outboxmemory.Store
	cache   *cache.InMemory
	service *service.Service
}

func TestCustomerServiceSuite(t *testing.T) {
	suite.Run(t, new(CustomerServiceSuite))
}

func (s *CustomerServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), customertest.Now)
	s.store = customerstore.NewInMemory()
	s.outbox = outboxmemory.New()
	s.cache = cache.NewInMemory(0)
	s.service = service.New(s.store,
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		service.WithEventPublisher(events.NewOutboxPublisher(s.outbox)),
		service.WithCache(s.cache),
	)
}

func (s *CustomerServiceSuite) register(email, identity string) *models.CustomerView {
	view, err := s.service.Register(s.ctx, customertest.RegisterParams(email, identity))
	s.Require().NoError(err)
	return view
}

func (s *CustomerServiceSuite) activated(email, identity string) *models.CustomerView {
	view := s.register(email, identity)
	_, err := s.service.ApplyCardValidation(s.ctx, models.CardValidationOutcome{
		CustomerID: view.ID, CardID: view.Cards[0].ID, Approved: true,
	})
	s.Require().NoError(err)
	view, err = s.service.Activate(s.ctx, view.ID)
	s.Require().NoError(err)
	return view
}

func (s *CustomerServiceSuite) eventTypes() []string {
	var out []string
	for _, e := range s.outbox.All() {
		out = append(out, e.EventType)
	}
	return out
}

func (s *CustomerServiceSuite) assertCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), err.Error())
}

func (s *CustomerServiceSuite) TestRegister() {
	s.Run("creates a pending customer and records the event", func() {
		view := s.register("ada@example.com", "X1234567L")
		s.Equal(models.StatusPendingValidation, view.Status)
		s.Equal(int64(1), view.Version)
		s.Require().Len(view.Cards, 1)
		s.Equal(models.NetworkVisa, view.Cards[0].Network)
		s.False(view.Cards[0].Validated)
		s.False(view.CanMakePayments)
		s.Equal([]string{models.EventCustomerCreated}, s.eventTypes())
	})

	s.Run("rejects a taken email", func() {
		_, err := s.service.Register(s.ctx, customertest.RegisterParams("ADA@example.com", "Y7654321Z"))
		s.assertCode(err, dErrors.CodeConflict)
		s.ErrorIs(err, models.ErrDuplicateEmail)
	})

	s.Run("rejects a taken identity number", func() {
		_, err := s.service.Register(s.ctx, customertest.RegisterParams("grace@example.com", "x1234567l"))
		s.assertCode(err, dErrors.CodeConflict)
		s.ErrorIs(err, models.ErrDuplicateIdentityNumber)
	})

	s.Run("rejects invalid personal data before touching the store", func() {
		params := customertest.RegisterParams("not-an-email", "Z1111111Z")
		_, err := s.service.Register(s.ctx, params)
		s.assertCode(err, dErrors.CodeValidation)
	})

	s.Run("rejects a card whose cvv does not match the network", func() {
		params := customertest.RegisterParams("amex@example.com", "Z2222222Z")
		params.Card = models.CardParams{Number: customertest.AmexNumber, CVV: "123", Expiration: "2028-12"}
		_, err := s.service.Register(s.ctx, params)
		s.assertCode(err, dErrors.CodeValidation)
		s.ErrorIs(err, models.ErrCVVLengthMismatch)
	})

	s.Run("rejects an expired card", func() {
		params := customertest.RegisterParams("old@example.com", "Z3333333Z")
		params.Card.Expiration = "2026-02"
		_, err := s.service.Register(s.ctx, params)
		s.Require().Error(err)
		s.ErrorIs(err, models.ErrExpiredAtCreation)
	})
}

func (s *CustomerServiceSuite) TestGet() {
	view := s.register("ada@example.com", "X1234567L")

	s.Run("loads and caches the view", func() {
		got, err := s.service.Get(s.ctx, view.ID)
		s.Require().NoError(err)
		s.Equal(view.ID, got.ID)
		cached, err := s.cache.Get(s.ctx, view.ID)
		s.Require().NoError(err)
		s.Equal(view.Email, cached.Email)
	})

	s.Run("mutations drop the cached view", func() {
		_, err := s.service.Block(s.ctx, view.ID, "fraud check", true)
		s.Require().NoError(err)
		_, err = s.cache.Get(s.ctx, view.ID)
		s.Error(err)

		got, err := s.service.Get(s.ctx, view.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusBlocked, got.Status)
		s.True(got.RequiresManualReview)
	})

	s.Run("unknown customer", func() {
		_, err := s.service.Get(s.ctx, id.NewCustomerID())
		s.assertCode(err, dErrors.CodeNotFound)
	})

	s.Run("nil id", func() {
		_, err := s.service.Get(s.ctx, id.CustomerID{})
		s.assertCode(err, dErrors.CodeBadRequest)
	})

	s.Run("by email", func() {
		got, err := s.service.GetByEmail(s.ctx, " Ada@Example.com ")
		s.Require().NoError(err)
		s.Equal(view.ID, got.ID)

		_, err = s.service.GetByEmail(s.ctx, "")
		s.assertCode(err, dErrors.CodeBadRequest)
	})
}

func (s *CustomerServiceSuite) TestList() {
	s.register("a@example.com", "AAAAA1")
	b := s.register("b@example.com", "BBBBB1")
	_, err := s.service.Block(s.ctx, b.ID, "chargeback", false)
	s.Require().NoError(err)

	all, err := s.service.List(s.ctx, models.ListFilter{})
	s.Require().NoError(err)
	s.Len(all, 2)

	blocked, err := s.service.List(s.ctx, models.ListFilter{Status: models.StatusBlocked})
	s.Require().NoError(err)
	s.Require().Len(blocked, 1)
	s.Equal(b.ID, blocked[0].ID)

	_, err = s.service.List(s.ctx, models.ListFilter{Status: "SLEEPING"})
	s.assertCode(err, dErrors.CodeBadRequest)
}

func (s *CustomerServiceSuite) TestReservationLifecycle() {
	view := s.activated("ada@example.com", "X1234567L")
	s.Equal(models.StatusActive, view.Status)
	s.True(view.CanMakePayments)

	view, err := s.service.StartReservation(s.ctx, view.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusReservationInProgress, view.Status)
	s.True(view.CanMakePayments)

	view, err = s.service.ConfirmReservation(s.ctx, view.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusReservationConfirmed, view.Status)
	s.False(view.CanMakePayments)

	view, err = s.service.FinalizeReservation(s.ctx, view.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, view.Status)

	s.Equal([]string{
		models.EventCustomerCreated,
		models.EventCardValidated,
		models.EventCustomerActivated,
		models.EventReservationStarted,
		models.EventReservationConfirmed,
		models.EventReservationFinalized,
	}, s.eventTypes())
}

func (s *CustomerServiceSuite) TestInvalidTransitionsLeaveStateUntouched() {
	view := s.register("ada@example.com", "X1234567L")

	_, err := s.service.ConfirmReservation(s.ctx, view.ID)
	s.assertCode(err, dErrors.CodeInvalidState)
	s.ErrorIs(err, models.ErrInvalidStateTransition)

	got, err := s.service.Get(s.ctx, view.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPendingValidation, got.Status)
	s.Equal(view.Version, got.Version)
	s.Equal([]string{models.EventCustomerCreated}, s.eventTypes())
}

func (s *CustomerServiceSuite) TestBlockUnblockDeactivate() {
	view := s.activated("ada@example.com", "X1234567L")

	_, err := s.service.Block(s.ctx, view.ID, "  ", false)
	s.assertCode(err, dErrors.CodeValidation)

	view, err = s.service.Block(s.ctx, view.ID, "suspicious activity", true)
	s.Require().NoError(err)
	s.Equal("suspicious activity", view.BlockReason)
	s.False(view.CanMakePayments)

	_, err = s.service.Deactivate(s.ctx, view.ID)
	s.assertCode(err, dErrors.CodeInvalidState)

	_, err = s.service.Unblock(s.ctx, view.ID, "cleared", "")
	s.assertCode(err, dErrors.CodeValidation)

	view, err = s.service.Unblock(s.ctx, view.ID, "cleared", "admin@customerhub")
	s.Require().NoError(err)
	s.Equal(models.StatusActive, view.Status)
	s.Empty(view.BlockReason)
	s.False(view.RequiresManualReview)

	view, err = s.service.Deactivate(s.ctx, view.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusInactive, view.Status)

	_, err = s.service.AddCard(s.ctx, view.ID, customertest.CardParams(customertest.MastercardNumber))
	s.assertCode(err, dErrors.CodeInvalidState)

	view, err = s.service.Reactivate(s.ctx, view.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, view.Status)
}

func (s *CustomerServiceSuite) TestCardManagement() {
	view := s.activated("ada@example.com", "X1234567L")

	s.Run("adds up to the limit", func() {
		var err error
		view, err = s.service.AddCard(s.ctx, view.ID, customertest.CardParams(customertest.MastercardNumber))
		s.Require().NoError(err)
		view, err = s.service.AddCard(s.ctx, view.ID, customertest.CardParams(customertest.AmexNumber))
		s.Require().NoError(err)
		s.Len(view.Cards, models.MaxCards)

		_, err = s.service.AddCard(s.ctx, view.ID, customertest.CardParams("6011000000000004"))
		s.assertCode(err, dErrors.CodeInvariantViolation)
		s.ErrorIs(err, models.ErrCardLimitExceeded)
	})

	s.Run("rejects a duplicate number", func() {
		_, err := s.service.RemoveCard(s.ctx, view.ID, view.Cards[2].ID, "lost")
		s.Require().NoError(err)
		_, err = s.service.AddCard(s.ctx, view.ID, customertest.CardParams(customertest.VisaNumber))
		s.assertCode(err, dErrors.CodeConflict)
		s.ErrorIs(err, models.ErrDuplicateCard)
	})

	s.Run("keeps at least one card", func() {
		got, err := s.service.Get(s.ctx, view.ID)
		s.Require().NoError(err)
		s.Require().Len(got.Cards, 2)
		_, err = s.service.RemoveCard(s.ctx, view.ID, got.Cards[1].ID, "closed")
		s.Require().NoError(err)
		_, err = s.service.RemoveCard(s.ctx, view.ID, got.Cards[0].ID, "closed")
		s.assertCode(err, dErrors.CodeInvariantViolation)
		s.ErrorIs(err, models.ErrCustomerRequiresCard)
	})

	s.Run("unknown card", func() {
		_, err := s.service.RemoveCard(s.ctx, view.ID, id.NewCardID(), "closed")
		s.assertCode(err, dErrors.CodeNotFound)
	})
}

func (s *CustomerServiceSuite) TestCardUpdatesRequireRevalidation() {
	view := s.activated("ada@example.com", "X1234567L")
	cardID := view.Cards[0].ID

	view, err := s.service.UpdateCardExpiration(s.ctx, view.ID, cardID, "2030-06")
	s.Require().NoError(err)
	s.False(view.Cards[0].Validated)
	s.Equal(2030, view.Cards[0].Expiration.Year)

	_, err = s.service.UpdateCardExpiration(s.ctx, view.ID, cardID, "2025-01")
	s.Require().Error(err)
	s.ErrorIs(err, models.ErrExpirationInPast)

	_, err = s.service.UpdateCardExpiration(s.ctx, view.ID, cardID, "June")
	s.assertCode(err, dErrors.CodeValidation)

	view, err = s.service.UpdateCardNumber(s.ctx, view.ID, cardID, customertest.MastercardNumber, "321")
	s.Require().NoError(err)
	s.Equal(models.NetworkMastercard, view.Cards[0].Network)
	s.Equal("0004", view.Cards[0].LastFour)

	_, err = s.service.UpdateCardNumber(s.ctx, view.ID, cardID, "4111111111111112", "123")
	s.Require().Error(err)
	s.ErrorIs(err, models.ErrLuhnCheckFailed)
}

func (s *CustomerServiceSuite) TestApplyCardValidation() {
	view := s.register("ada@example.com", "X1234567L")
	cardID := view.Cards[0].ID

	view, err := s.service.ApplyCardValidation(s.ctx, models.CardValidationOutcome{
		CustomerID: view.ID, CardID: cardID, Approved: false, Reason: "issuer declined",
	})
	s.Require().NoError(err)
	s.False(view.Cards[0].Validated)
	s.Equal("issuer declined", view.Cards[0].RejectionReason)

	_, err = s.service.ApplyCardValidation(s.ctx, models.CardValidationOutcome{
		CustomerID: view.ID, CardID: id.NewCardID(), Approved: true,
	})
	s.assertCode(err, dErrors.CodeNotFound)

	cards, err := s.service.ValidCards(s.ctx, view.ID)
	s.Require().NoError(err)
	s.Empty(cards)

	_, err = s.service.ApplyCardValidation(s.ctx, models.CardValidationOutcome{
		CustomerID: view.ID, CardID: cardID, Approved: true,
	})
	s.Require().NoError(err)
	cards, err = s.service.ValidCards(s.ctx, view.ID)
	s.Require().NoError(err)
	s.Len(cards, 1)
}

func (s *CustomerServiceSuite) TestUpdatePersonalDataAndAddress() {
	ada := s.register("ada@example.com", "X1234567L")
	s.register("grace@example.com", "Y7654321Z")

	params := customertest.PersonalParams("grace@example.com", "X1234567L")
	_, err := s.service.UpdatePersonalData(s.ctx, ada.ID, params)
	s.assertCode(err, dErrors.CodeConflict)
	s.ErrorIs(err, models.ErrDuplicateEmail)

	params = customertest.PersonalParams("ada@lovelace.dev", "X1234567L")
	params.Name = "Augusta Ada"
	view, err := s.service.UpdatePersonalData(s.ctx, ada.ID, params)
	s.Require().NoError(err)
	s.Equal("Augusta Ada", view.Name)
	s.Equal("ada@lovelace.dev", view.Email)

	params = customertest.PersonalParams("ada@lovelace.dev", "Q0000000Q")
	_, err = s.service.UpdatePersonalData(s.ctx, ada.ID, params)
	s.Require().Error(err)
	s.ErrorIs(err, models.ErrImmutableIdentity)

	address := customertest.AddressParams()
	address.City = "Cambridge"
	view, err = s.service.UpdateAddress(s.ctx, ada.ID, address)
	s.Require().NoError(err)
	s.Equal("Cambridge", view.Address.City)

	address.Country = "Britain"
	_, err = s.service.UpdateAddress(s.ctx, ada.ID, address)
	s.assertCode(err, dErrors.CodeValidation)
}

func (s *CustomerServiceSuite) TestCanMakePayments() {
	pending := s.register("pending@example.com", "PPPPP1")
	ok, err := s.service.CanMakePayments(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.False(ok)

	active := s.activated("active@example.com", "AAAAA1")
	ok, err = s.service.CanMakePayments(s.ctx, active.ID)
	s.Require().NoError(err)
	s.True(ok)

	_, err = s.service.CanMakePayments(s.ctx, id.NewCustomerID())
	s.assertCode(err, dErrors.CodeNotFound)
}
