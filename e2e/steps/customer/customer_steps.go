package customer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario state the customer steps need.
type TestContext interface {
	AuthenticateAs(role string) error
	Do(ctx context.Context, method, path string, body any) error
	ResponseField(path string) (any, error)
	Save(name, value string)
	Expand(s string) string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &customerSteps{tc: tc}
	ctx.Step(`^I register a customer with email "([^"]*)", identity "([^"]*)" and card "([^"]*)" cvv "([^"]*)"$`, s.register)
	ctx.Step(`^I save the customer id$`, s.saveCustomerID)
	ctx.Step(`^an administrator approves the customer's first card$`, s.approveFirstCard)
	ctx.Step(`^I (activate|deactivate|reactivate) the customer$`, s.transition)
	ctx.Step(`^I (start|confirm|finalize) the reservation$`, s.reservation)
	ctx.Step(`^I block the customer because "([^"]*)"$`, s.block)
	ctx.Step(`^I unblock the customer because "([^"]*)"$`, s.unblock)
	ctx.Step(`^the customer status should be "([^"]*)"$`, s.statusIs)
}

type customerSteps struct {
	tc TestContext
}

func (s *customerSteps) register(ctx context.Context, email, identity, number, cvv string) error {
	email, identity = s.tc.Expand(email), s.tc.Expand(identity)
	body := map[string]any{
		"name":            "Ada",
		"surname":         "Lovelace",
		"email":           email,
		"phone":           "+447946095800",
		"birth_date":      "1990-12-10",
		"identity_number": identity,
		"address": map[string]string{
			"street":      "221B Baker Street",
			"city":        "London",
			"postal_code": "NW16XE",
			"province":    "Greater London",
			"country":     "GB",
		},
		"card": map[string]string{
			"number":     number,
			"cvv":        cvv,
			"expiration": "2030-12",
		},
	}
	return s.tc.Do(ctx, http.MethodPost, "/customers", body)
}

func (s *customerSteps) saveCustomerID() error {
	v, err := s.tc.ResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Save("customer_id", fmt.Sprint(v))
	return nil
}

func (s *customerSteps) approveFirstCard(ctx context.Context) error {
	if err := s.tc.Do(ctx, http.MethodGet, "/customers/{customer_id}", nil); err != nil {
		return err
	}
	cardID, err := s.tc.ResponseField("cards.0.id")
	if err != nil {
		return err
	}
	if err := s.tc.AuthenticateAs("admin"); err != nil {
		return err
	}
	return s.tc.Do(ctx, http.MethodPost, "/customers/{customer_id}/card-validations", map[string]any{
		"card_id":  fmt.Sprint(cardID),
		"approved": true,
	})
}

func (s *customerSteps) transition(ctx context.Context, action string) error {
	return s.tc.Do(ctx, http.MethodPost, "/customers/{customer_id}/"+action, nil)
}

func (s *customerSteps) reservation(ctx context.Context, step string) error {
	return s.tc.Do(ctx, http.MethodPost, "/customers/{customer_id}/reservation/"+step, nil)
}

func (s *customerSteps) block(ctx context.Context, reason string) error {
	return s.tc.Do(ctx, http.MethodPost, "/customers/{customer_id}/block", map[string]any{"reason": reason})
}

func (s *customerSteps) unblock(ctx context.Context, reason string) error {
	return s.tc.Do(ctx, http.MethodPost, "/customers/{customer_id}/unblock", map[string]any{"reason": reason})
}

func (s *customerSteps) statusIs(ctx context.Context, expected string) error {
	if err := s.tc.Do(ctx, http.MethodGet, "/customers/{customer_id}", nil); err != nil {
		return err
	}
	got, err := s.tc.ResponseField("status")
	if err != nil {
		return err
	}
	if fmt.Sprint(got) != expected {
		return fmt.Errorf("expected customer status %s, got %v", expected, got)
	}
	return nil
}
