package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario state the generic steps need.
type TestContext interface {
	AuthenticateAs(role string) error
	Do(ctx context.Context, method, path string, body any) error
	LastStatus() int
	ResponseField(path string) (any, error)
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &commonSteps{tc: tc}
	ctx.Step(`^I am authenticated as an? "([^"]*)"$`, s.authenticated)
	ctx.Step(`^I am not authenticated$`, s.anonymous)
	ctx.Step(`^I (GET|POST|DELETE) "([^"]*)"$`, s.request)
	ctx.Step(`^the response status should be (\d+)$`, s.status)
	ctx.Step(`^the error code should be "([^"]*)"$`, s.errorCode)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, s.fieldEquals)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, s.fieldBool)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) authenticated(role string) error { return s.tc.AuthenticateAs(role) }

func (s *commonSteps) anonymous() error { return s.tc.AuthenticateAs("") }

func (s *commonSteps) request(ctx context.Context, method, path string) error {
	return s.tc.Do(ctx, method, path, nil)
}

func (s *commonSteps) status(expected int) error {
	if got := s.tc.LastStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d", expected, got)
	}
	return nil
}

func (s *commonSteps) errorCode(expected string) error {
	return s.fieldEquals("error", expected)
}

func (s *commonSteps) fieldEquals(field, expected string) error {
	v, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) fieldBool(field, expected string) error {
	return s.fieldEquals(field, expected)
}
