package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	dErrors "customerhub/pkg/domain-errors"
	"customerhub/pkg/platform/httputil"
	"customerhub/pkg/requestcontext"
)

// Service is the customer application surface the handler drives.
type Service interface {
	Register(ctx context.Context, params models.RegisterParams) (*models.CustomerView, error)
	Get(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error)
	GetByEmail(ctx context.Context, email string) (*models.CustomerView, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.CustomerView, error)
	UpdatePersonalData(ctx context.Context, customerID id.CustomerID, params models.PersonalDataParams) (*models.CustomerView, error)
	UpdateAddress(ctx context.Context, customerID id.CustomerID, params models.AddressParams) (*models.CustomerView, error)
	AddCard(ctx context.Context, customerID id.CustomerID, params models.CardParams) (*models.CustomerView, error)
	RemoveCard(ctx context.Context, customerID id.CustomerID, cardID id.CardID, reason string) (*models.CustomerView, error)
	UpdateCardExpiration(ctx context.Context, customerID id.CustomerID, cardID id.CardID, expiration string) (*models.CustomerView, error)
	UpdateCardNumber(ctx context.Context, customerID id.CustomerID, cardID id.CardID, number, cvv string) (*models.CustomerView, error)
	ApplyCardValidation(ctx context.Context, outcome models.CardValidationOutcome) (*models.CustomerView, error)
	Activate(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error)
	Block(ctx context.Context, customerID id.CustomerID, reason string, requiresManualReview bool) (*models.CustomerView, error)
	Unblock(ctx context.Context, customerID id.CustomerID, reason, administrator string) (*models.CustomerView, error)
	Deactivate(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error)
	Reactivate(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error)
	StartReservation(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error)
	ConfirmReservation(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error)
	FinalizeReservation(ctx context.Context, customerID id.CustomerID) (*models.CustomerView, error)
	ValidCards(ctx context.Context, customerID id.CustomerID) ([]models.CardView, error)
	CanMakePayments(ctx context.Context, customerID id.CustomerID) (bool, error)
}

// Handler wires customer endpoints to the customer service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the operator-facing customer endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/customers", h.HandleRegister)
	r.Get("/customers", h.HandleList)
	r.Get("/customers/{id}", h.HandleGet)
	r.Put("/customers/{id}/personal-data", h.HandleUpdatePersonalData)
	r.Put("/customers/{id}/address", h.HandleUpdateAddress)
	r.Get("/customers/{id}/cards/valid", h.HandleValidCards)
	r.Get("/customers/{id}/payment-eligibility", h.HandlePaymentEligibility)
	r.Post("/customers/{id}/cards", h.HandleAddCard)
	r.Delete("/customers/{id}/cards/{cardID}", h.HandleRemoveCard)
	r.Put("/customers/{id}/cards/{cardID}/expiration", h.HandleUpdateCardExpiration)
	r.Put("/customers/{id}/cards/{cardID}/number", h.HandleUpdateCardNumber)
	r.Post("/customers/{id}/activate", h.transition("activate", h.service.Activate))
	r.Post("/customers/{id}/deactivate", h.transition("deactivate", h.service.Deactivate))
	r.Post("/customers/{id}/reactivate", h.transition("reactivate", h.service.Reactivate))
	r.Post("/customers/{id}/reservation/start", h.transition("start reservation", h.service.StartReservation))
	r.Post("/customers/{id}/reservation/confirm", h.transition("confirm reservation", h.service.ConfirmReservation))
	r.Post("/customers/{id}/reservation/finalize", h.transition("finalize reservation", h.service.FinalizeReservation))
}

// RegisterAdmin mounts endpoints reserved for administrators. The caller is
// expected to wrap r with admin authorization.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/customers/{id}/block", h.HandleBlock)
	r.Post("/customers/{id}/unblock", h.HandleUnblock)
	r.Post("/customers/{id}/card-validations", h.HandleCardValidation)
}

// HandleRegister handles POST /customers.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	view, err := h.service.Register(ctx, req.toParams())
	if err != nil {
		h.fail(ctx, w, "register customer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view)
}

// HandleGet handles GET /customers/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(ctx, customerID)
	if err != nil {
		h.fail(ctx, w, "get customer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleList handles GET /customers. With ?email= it resolves a single
// customer; otherwise it pages through customers, optionally by ?status=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if email := q.Get("email"); email != "" {
		view, err := h.service.GetByEmail(ctx, email)
		if err != nil {
			h.fail(ctx, w, "get customer by email", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, view)
		return
	}

	filter, err := parseListFilter(q.Get("status"), q.Get("limit"), q.Get("offset"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	views, err := h.service.List(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "list customers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ListResponse{Customers: views, Limit: filter.Limit, Offset: filter.Offset})
}

func (h *Handler) HandleUpdatePersonalData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PersonalDataRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.UpdatePersonalData(ctx, customerID, req.toParams())
	h.respond(ctx, w, "update personal data", view, err)
}

func (h *Handler) HandleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddressRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.UpdateAddress(ctx, customerID, req.toParams())
	h.respond(ctx, w, "update address", view, err)
}

func (h *Handler) HandleAddCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CardRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.AddCard(ctx, customerID, req.toParams())
	if err != nil {
		h.fail(ctx, w, "add card", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view)
}

// HandleRemoveCard handles DELETE /customers/{id}/cards/{cardID}?reason=.
func (h *Handler) HandleRemoveCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, cardID, ok := h.cardPath(w, r)
	if !ok {
		return
	}
	view, err := h.service.RemoveCard(ctx, customerID, cardID, r.URL.Query().Get("reason"))
	h.respond(ctx, w, "remove card", view, err)
}

func (h *Handler) HandleUpdateCardExpiration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, cardID, ok := h.cardPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ExpirationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.UpdateCardExpiration(ctx, customerID, cardID, req.Expiration)
	h.respond(ctx, w, "update card expiration", view, err)
}

func (h *Handler) HandleUpdateCardNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, cardID, ok := h.cardPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CardNumberRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.UpdateCardNumber(ctx, customerID, cardID, req.Number, req.CVV)
	h.respond(ctx, w, "update card number", view, err)
}

func (h *Handler) HandleValidCards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	cards, err := h.service.ValidCards(ctx, customerID)
	if err != nil {
		h.fail(ctx, w, "valid cards", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ValidCardsResponse{Cards: cards})
}

func (h *Handler) HandlePaymentEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	can, err := h.service.CanMakePayments(ctx, customerID)
	if err != nil {
		h.fail(ctx, w, "payment eligibility", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &PaymentEligibilityResponse{CustomerID: customerID, CanMakePayments: can})
}

// HandleBlock handles POST /customers/{id}/block.
func (h *Handler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[BlockRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.Block(ctx, customerID, req.Reason, req.RequiresManualReview)
	h.respond(ctx, w, "block customer", view, err)
}

// HandleUnblock handles POST /customers/{id}/unblock. The administrator is
// the authenticated actor, never a body field.
func (h *Handler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	administrator := requestcontext.ActorID(ctx)
	if administrator == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UnblockRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.Unblock(ctx, customerID, req.Reason, administrator)
	h.respond(ctx, w, "unblock customer", view, err)
}

// HandleCardValidation handles POST /customers/{id}/card-validations.
func (h *Handler) HandleCardValidation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CardValidationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.ApplyCardValidation(ctx, req.toOutcome(customerID))
	h.respond(ctx, w, "apply card validation", view, err)
}

func (h *Handler) transition(op string, fn func(context.Context, id.CustomerID) (*models.CustomerView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		customerID, ok := h.customerID(w, r)
		if !ok {
			return
		}
		view, err := fn(ctx, customerID)
		h.respond(ctx, w, op, view, err)
	}
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, op string, view *models.CustomerView, err error) {
	if err != nil {
		h.fail(ctx, w, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// fail logs server-side failures loudly and client mistakes quietly.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	attrs := []any{"request_id", requestcontext.RequestID(ctx), "operation", op, "error", err}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "customer request failed", attrs...)
	} else {
		h.logger.InfoContext(ctx, "customer request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

func (h *Handler) customerID(w http.ResponseWriter, r *http.Request) (id.CustomerID, bool) {
	customerID, err := id.ParseCustomerID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.CustomerID{}, false
	}
	return customerID, true
}

func (h *Handler) cardPath(w http.ResponseWriter, r *http.Request) (id.CustomerID, id.CardID, bool) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return id.CustomerID{}, id.CardID{}, false
	}
	cardID, err := id.ParseCardID(chi.URLParam(r, "cardID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.CustomerID{}, id.CardID{}, false
	}
	return customerID, cardID, true
}

func parseListFilter(status, limit, offset string) (models.ListFilter, error) {
	var filter models.ListFilter
	if status != "" {
		st, err := models.ParseStatus(status)
		if err != nil {
			return filter, err
		}
		filter.Status = st
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "limit must be an integer")
		}
		filter.Limit = n
	}
	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "offset must be an integer")
		}
		filter.Offset = n
	}
	filter.Normalize()
	return filter, nil
}
