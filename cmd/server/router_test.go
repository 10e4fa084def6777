package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerhub/internal/customer/customertest"
	customerhandler "customerhub/internal/customer/handler"
	"customerhub/internal/customer/models"
	"customerhub/internal/customer/service"
	customerstore "customerhub/internal/customer/store/customer"
	jwttoken "customerhub/internal/jwt_token"
	"customerhub/internal/platform/metrics"
	dErrors "customerhub/pkg/domain-errors"
	"customerhub/pkg/platform/middleware/admin"
	txcontext "customerhub/pkg/platform/tx"
	"customerhub/pkg/testutil"
)

func newTestRouter(t *testing.T) (http.Handler, *jwttoken.JWTService) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtService := jwttoken.NewJWTService("router-test-key", "customerhub", "customerhub-operators")
	reg := prometheus.NewRegistry()
	svc := service.New(customerstore.NewInMemory(), service.WithLogger(log))
	return newRouter(routerDeps{
		logger:    log,
		customers: customerhandler.New(svc, log),
		validator: jwttoken.NewJWTServiceAdapter(jwtService),
		metrics:   metrics.New(reg),
		scrape:    metrics.Handler(reg),
	}), jwtService
}

func token(t *testing.T, jwtService *jwttoken.JWTService, role string) string {
	t.Helper()
	tok, err := jwtService.GenerateOperatorToken("operator-1", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func registerBody() map[string]any {
	p := customertest.RegisterParams("ada@example.com", "IDNUM1")
	return map[string]any{
		"name":            p.Personal.Name,
		"surname":         p.Personal.Surname,
		"email":           p.Personal.Email,
		"phone":           p.Personal.Phone,
		"birth_date":      p.Personal.BirthDate.Format("2006-01-02"),
		"identity_number": p.Personal.IdentityNumber,
		"address": map[string]string{
			"street":      p.Address.Street,
			"city":        p.Address.City,
			"postal_code": p.Address.PostalCode,
			"province":    p.Address.Province,
			"country":     p.Address.Country,
		},
		"card": map[string]string{
			"number":     p.Card.Number,
			"cvv":        p.Card.CVV,
			"expiration": p.Card.Expiration,
		},
	}
}

func TestRouter(t *testing.T) {
	testutil.Given(t, "the customerhub router", func(t *testing.T) {
		router, jwtService := newTestRouter(t)

		testutil.When(t, "calling GET /healthz without a token", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))

			testutil.Then(t, "it should respond ok", func(t *testing.T) {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
			})
		})

		testutil.When(t, "calling the customer API without a token", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/customers", registerBody()))

			testutil.Then(t, "it should be unauthorized", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
			})
		})

		var customerID string
		testutil.When(t, "an operator registers a customer", func(t *testing.T) {
			req := testutil.WithBearer(
				testutil.NewJSONRequest(t, http.MethodPost, "/customers", registerBody()),
				token(t, jwtService, "operator"))
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it should be created pending validation", func(t *testing.T) {
				require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
				view := testutil.UnmarshalResponse[models.CustomerView](t, rr)
				assert.Equal(t, models.StatusPendingValidation, view.Status)
				customerID = view.ID.String()
			})
		})
		require.NotEmpty(t, customerID)

		testutil.When(t, "an operator tries to block the customer", func(t *testing.T) {
			req := testutil.WithBearer(
				testutil.NewJSONRequest(t, http.MethodPost, "/customers/"+customerID+"/block", map[string]string{"reason": "fraud"}),
				token(t, jwtService, "operator"))
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it should be forbidden", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
			})
		})

		testutil.When(t, "an administrator blocks the customer", func(t *testing.T) {
			req := testutil.WithBearer(
				testutil.NewJSONRequest(t, http.MethodPost, "/customers/"+customerID+"/block", map[string]string{"reason": "fraud"}),
				token(t, jwtService, admin.RoleAdmin))
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it should be blocked", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
				assert.Equal(t, models.StatusBlocked, testutil.UnmarshalResponse[models.CustomerView](t, rr).Status)
			})

			testutil.And(t, "it should no longer be payment eligible", func(t *testing.T) {
				req := testutil.WithBearer(
					testutil.NewJSONRequest(t, http.MethodGet, "/customers/"+customerID+"/payment-eligibility", nil),
					token(t, jwtService, "operator"))
				rr := testutil.DoRequest(router, req)
				require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
				assert.False(t, testutil.UnmarshalResponse[customerhandler.PaymentEligibilityResponse](t, rr).CanMakePayments)
			})
		})

		testutil.When(t, "scraping /metrics", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))

			testutil.Then(t, "it should expose request counters by route", func(t *testing.T) {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.Contains(t, rr.Body.String(), `route="/customers"`)
			})
		})
	})
}

func TestCustomerTxRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := newCustomerTx(txcontext.NewPostgres(nil)).RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, dErrors.CodeTimeout, dErrors.CodeOf(err))
	assert.False(t, called)
}
