package e2e

import (
	"github.com/cucumber/godog"

	"qsync/e2e/steps/common"
	"qsync/e2e/steps/push"
	"qsync/e2e/steps/records"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	records.RegisterSteps(ctx, tc)
	push.RegisterSteps(ctx, tc)
}
