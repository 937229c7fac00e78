package e2e

import (
	"github.com/cucumber/godog"

	"nidapi/e2e/steps/common"
	"nidapi/e2e/steps/extraction"
	"nidapi/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (principal setup, generic assertions)
	common.RegisterSteps(ctx, tc)

	// Register extraction-specific steps
	extraction.RegisterSteps(ctx, tc)

	// Register rate-limiting steps
	ratelimit.RegisterSteps(ctx, tc)
}
