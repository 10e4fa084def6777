package e2e

import (
	"github.com/cucumber/godog"

	"customerhub/e2e/steps/common"
	"customerhub/e2e/steps/customer"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	customer.RegisterSteps(ctx, tc)
}
