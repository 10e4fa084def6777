package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	dErrors "customerhub/pkg/domain-errors"
	"customerhub/pkg/platform/sentinel"
	"customerhub/pkg/requestcontext"
)

// Register creates a customer with one initial card in PENDING_VALIDATION.
// Email and identity number must not belong to another customer.
func (s *Service) Register(ctx context.Context, params models.RegisterParams) (view *models.CustomerView, err error) {
	ctx, finish := s.begin(ctx, "register", id.CustomerID{})
	defer func() { finish(err) }()

	now := requestcontext.Now(ctx)
	personal, err := models.NewPersonalData(params.Personal, now)
	if err != nil {
		return nil, err
	}
	address, err := models.NewAddress(params.Address)
	if err != nil {
		return nil, err
	}
	customerID := id.NewCustomerID()
	card, err := models.BuildCard(customerID, params.Card, now)
	if err != nil {
		return nil, err
	}
	customer, err := models.NewCustomer(customerID, personal, address, card, now)
	if err != nil {
		return nil, err
	}

	var events []models.DomainEvent
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureEmailAvailable(txCtx, personal.Email(), id.CustomerID{}); err != nil {
			return err
		}
		if err := s.ensureIdentityAvailable(txCtx, personal.IdentityNumber()); err != nil {
			return err
		}
		if err := s.customers.Create(txCtx, customer); err != nil {
			return wrapStoreErr(err)
		}
		events = customer.PullEvents()
		return s.publish(txCtx, events)
	})
	if err != nil {
		return nil, err
	}

	s.auditEmitter.emit(ctx, events)
	if s.metrics != nil {
		s.metrics.IncrementRegistered()
	}
	return models.NewCustomerView(customer, now), nil
}

// Get returns the customer view, served from the cache when present.
func (s *Service) Get(ctx context.Context, customerID id.CustomerID) (view *models.CustomerView, err error) {
	ctx, finish := s.begin(ctx, "get", customerID)
	defer func() { finish(err) }()

	if err := requireCustomerID(customerID); err != nil {
		return nil, err
	}
	if cached := s.cached(ctx, customerID); cached != nil {
		return cached.At(requestcontext.Now(ctx)), nil
	}
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	view = models.NewCustomerView(customer, requestcontext.Now(ctx))
	s.fill(ctx, view)
	return view, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (view *models.CustomerView, err error) {
	ctx, finish := s.begin(ctx, "get_by_email", id.CustomerID{})
	defer func() { finish(err) }()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "email is required")
	}
	customer, err := s.customers.FindByEmail(ctx, email)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return models.NewCustomerView(customer, requestcontext.Now(ctx)), nil
}

func (s *Service) List(ctx context.Context, filter models.ListFilter) (views []*models.CustomerView, err error) {
	ctx, finish := s.begin(ctx, "list", id.CustomerID{})
	defer func() { finish(err) }()

	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown status filter: "+string(filter.Status))
	}
	filter.Normalize()
	customers, err := s.customers.List(ctx, filter)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	now := requestcontext.Now(ctx)
	views = make([]*models.CustomerView, len(customers))
	for i, c := range customers {
		views[i] = models.NewCustomerView(c, now)
	}
	return views, nil
}

// UpdatePersonalData replaces personal data wholesale. A changed email is
// checked for uniqueness first.
func (s *Service) UpdatePersonalData(ctx context.Context, customerID id.CustomerID, params models.PersonalDataParams) (*models.CustomerView, error) {
	return s.mutate(ctx, "update_personal_data", customerID, func(txCtx context.Context, c *models.Customer, now time.Time) error {
		personal, err := models.NewPersonalData(params, now)
		if err != nil {
			return err
		}
		if personal.Email() != c.PersonalData().Email() {
			if err := s.ensureEmailAvailable(txCtx, personal.Email(), c.ID()); err != nil {
				return err
			}
		}
		return c.UpdatePersonalData(personal, now)
	})
}

func (s *Service) UpdateAddress(ctx context.Context, customerID id.CustomerID, params models.AddressParams) (*models.CustomerView, error) {
	return s.mutate(ctx, "update_address", customerID, func(_ context.Context, c *models.Customer, now time.Time) error {
		address, err := models.NewAddress(params)
		if err != nil {
			return err
		}
		return c.UpdateAddress(address, now)
	})
}

func (s *Service) AddCard(ctx context.Context, customerID id.CustomerID, params models.CardParams) (*models.CustomerView, error) {
	return s.mutate(ctx, "add_card", customerID, func(_ context.Context, c *models.Customer, now time.Time) error {
		card, err := models.BuildCard(c.ID(), params, now)
		if err != nil {
			return err
		}
		return c.AddCard(card, now)
	})
}

func (s *Service) RemoveCard(ctx context.Context, customerID id.CustomerID, cardID id.CardID, reason string) (*models.CustomerView, error) {
	return s.mutate(ctx, "remove_card", customerID, func(_ context.Context, c *models.Customer, now time.Time) error {
		return c.RemoveCard(cardID, reason, now)
	})
}

func (s *Service) UpdateCardExpiration(ctx context.Context, customerID id.CustomerID, cardID id.CardID, expiration string) (*models.CustomerView, error) {
	return s.mutate(ctx, "update_card_expiration", customerID, func(_ context.Context, c *models.Customer, now time.Time) error {
		ym, err := models.ParseYearMonth(expiration)
		if err != nil {
			return err
		}
		return c.UpdateCardExpiration(cardID, ym, now)
	})
}

func (s *Service) UpdateCardNumber(ctx context.Context, customerID id.CustomerID, cardID id.CardID, number, cvv string) (*models.CustomerView, error) {
	return s.mutate(ctx, "update_card_number", customerID, func(_ context.Context, c *models.Customer, now time.Time) error {
		n, err := models.NewCardNumber(number)
		if err != nil {
			return err
		}
		code, err := models.NewCVV(cvv)
		if err != nil {
			return err
		}
		return c.UpdateCardNumber(cardID, n, code, now)
	})
}

// ApplyCardValidation records the external validator's verdict on a card.
func (s *Service) ApplyCardValidation(ctx context.Context, outcome models.CardValidationOutcome) (*models.CustomerView, error) {
	view, err := s.mutate(ctx, "apply_card_validation", outcome.CustomerID, func(_ context.Context, c *models.Customer, now time.Time) error {
		if outcome.Approved {
			return c.ValidateCard(outcome.CardID, now)
		}
		return c.RejectCard(outcome.CardID, outcome.Reason, now)
	})
	if err == nil && s.metrics != nil {
		s.metrics.IncrementValidationOutcome(outcome.Approved)
	}
	return view, err
}

func (s *Service) Activate(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error) {
	return s.transition(ctx, "activate", customerID, (*models.Customer).Activate)
}

func (s *Service) Block(ctx context.Context, customerID id.CustomerID, reason string, requiresManualReview bool) (*models.CustomerView, error) {
	return s.transition(ctx, "block", customerID, func(c *models.Customer, now time.Time) error {
		return c.Block(reason, requiresManualReview, now)
	})
}

// Unblock returns a blocked customer to ACTIVE. administrator identifies the
// operator taking responsibility.
func (s *Service) Unblock(ctx context.Context, customerID id.CustomerID, reason, administrator string) (*models.CustomerView, error) {
	return s.transition(ctx, "unblock", customerID, func(c *models.Customer, now time.Time) error {
		return c.Unblock(reason, administrator, now)
	})
}

func (s *Service) Deactivate(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error) {
	return s.transition(ctx, "deactivate", customerID, (*models.Customer).Deactivate)
}

func (s *Service) Reactivate(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error) {
	return s.transition(ctx, "reactivate", customerID, (*models.Customer).Reactivate)
}

// StartReservation, ConfirmReservation and FinalizeReservation are the
// customer-side steps of the booking saga, driven by the external orchestrator.
func (s *Service) StartReservation(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error) {
	return s.transition(ctx, "start_reservation", customerID, (*models.Customer).StartReservationProcess)
}

func (s *Service) ConfirmReservation(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error) {
	return s.transition(ctx, "confirm_reservation", customerID, (*models.Customer).ConfirmReservation)
}

func (s *Service) FinalizeReservation(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error) {
	return s.transition(ctx, "finalize_reservation", customerID, (*models.Customer).FinalizeReservation)
}

// ValidCards reads through to the store so validity reflects the current month.
func (s *Service) ValidCards(ctx context.Context, customerID id.CustomerID) (cards []models.CardView, err error) {
	ctx, finish := s.begin(ctx, "valid_cards", customerID)
	defer func() { finish(err) }()

	if err := requireCustomerID(customerID); err != nil {
		return nil, err
	}
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	now := requestcontext.Now(ctx)
	valid := customer.ValidCards(now)
	cards = make([]models.CardView, len(valid))
	for i, card := range valid {
		cards[i] = models.NewCardView(card, now)
	}
	return cards, nil
}

// CanMakePayments always reads the store; a payment decision never rests on a
// cached view.
func (s *Service) CanMakePayments(ctx context.Context, customerID id.CustomerID) (ok bool, err error) {
	ctx, finish := s.begin(ctx, "can_make_payments", customerID)
	defer func() { finish(err) }()

	if err := requireCustomerID(customerID); err != nil {
		return false, err
	}
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return false, wrapStoreErr(err)
	}
	return customer.CanMakePayments(), nil
}

// --- unit of work ---

type mutation func(ctx context.Context, c *models.Customer, now time.Time) error

func (s *Service) transition(ctx context.Context, op string, customerID id.CustomerID, fn func(*models.Customer, time.Time) error) (*models.CustomerView, error) {
	view, err := s.mutate(ctx, op, customerID, func(_ context.Context, c *models.Customer, now time.Time) error {
		return fn(c, now)
	})
	if err == nil && s.metrics != nil {
		s.metrics.IncrementTransition(string(view.Status))
	}
	return view, err
}

// mutate loads the aggregate, applies fn, saves it and records its events in
// one transaction. The cache entry is dropped after commit.
func (s *Service) mutate(ctx context.Context, op string, customerID id.CustomerID, fn mutation) (view *models.CustomerView, err error) {
	ctx, finish := s.begin(ctx, op, customerID)
	defer func() { finish(err) }()

	if err := requireCustomerID(customerID); err != nil {
		return nil, err
	}

	var (
		customer *models.Customer
		events   []models.DomainEvent
		now      = requestcontext.Now(ctx)
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.customers.FindByID(txCtx, customerID)
		if err != nil {
			return wrapStoreErr(err)
		}
		if err := fn(txCtx, c, now); err != nil {
			return err
		}
		pending := c.PullEvents()
		if err := s.customers.Update(txCtx, c); err != nil {
			return wrapStoreErr(err)
		}
		if err := s.publish(txCtx, pending); err != nil {
			return err
		}
		customer, events = c, pending
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, customerID, customer.Version())
	s.auditEmitter.emit(ctx, events)
	return models.NewCustomerView(customer, now), nil
}

func (s *Service) publish(ctx context.Context, events []models.DomainEvent) error {
	if s.publisher == nil || len(events) == 0 {
		return nil
	}
	if err := s.publisher.Publish(ctx, events); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record customer events")
	}
	return nil
}

func (s *Service) ensureEmailAvailable(ctx context.Context, email string, self id.CustomerID) error {
	existing, err := s.customers.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	case err != nil:
		return wrapStoreErr(err)
	case existing.ID() != self:
		return duplicateEmailErr()
	}
	return nil
}

func (s *Service) ensureIdentityAvailable(ctx context.Context, identityNumber string) error {
	_, err := s.customers.FindByIdentityNumber(ctx, identityNumber)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	case err != nil:
		return wrapStoreErr(err)
	}
	return duplicateIdentityErr()
}

// --- cache ---

func (s *Service) cached(ctx context.Context, customerID id.CustomerID) *models.CustomerView {
	if s.cache == nil {
		return nil
	}
	view, err := s.cache.Get(ctx, customerID)
	hit := err == nil && view != nil
	if s.metrics != nil {
		s.metrics.IncrementCacheLookup(hit)
	}
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "customer cache read failed", "customer_id", customerID.String(), "error", err)
	}
	if !hit {
		return nil
	}
	return view
}

func (s *Service) fill(ctx context.Context, view *models.CustomerView) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, view); err != nil {
		s.logger.WarnContext(ctx, "customer cache write failed", "customer_id", view.ID.String(), "error", err)
	}
}

// invalidate drops the cached view and bars any fill older than the committed
// version, so a read that loaded before the commit cannot reinstate it.
func (s *Service) invalidate(ctx context.Context, customerID id.CustomerID, version int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, customerID, version); err != nil {
		s.logger.WarnContext(ctx, "customer cache invalidation failed", "customer_id", customerID.String(), "error", err)
	}
}

// --- observability ---

// begin opens a span for op and returns a finisher that records the outcome
// on the span and in metrics.
func (s *Service) begin(ctx context.Context, op string, customerID id.CustomerID) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "customer."+op, trace.WithSpanKind(trace.SpanKindInternal))
	if !customerID.IsNil() {
		span.SetAttributes(attribute.String("customer.id", customerID.String()))
	}
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(op, outcome, start)
		}
	}
}
