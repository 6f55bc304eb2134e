package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the scenario context these steps need.
type TestContext interface {
	GET(path string) error
	StatusCode() int
	ResponseField(field string) (any, error)
	ResponseHas(field string) bool
}

// RegisterSteps registers generic request and response steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the qsync server is reachable$`, steps.serverIsReachable)
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
	ctx.Step(`^the response should not contain "([^"]*)"$`, steps.responseShouldNotContain)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serverIsReachable(ctx context.Context) error {
	if err := s.tc.GET("/healthz"); err != nil {
		return err
	}
	if s.tc.StatusCode() != 200 {
		return fmt.Errorf("healthz returned %d", s.tc.StatusCode())
	}
	return nil
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, status int) error {
	if got := s.tc.StatusCode(); got != status {
		return fmt.Errorf("expected status %d, got %d", status, got)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBe(ctx context.Context, field, want string) error {
	v, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); !strings.EqualFold(got, want) {
		return fmt.Errorf("expected %s to be %q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) responseShouldNotContain(ctx context.Context, field string) error {
	if s.tc.ResponseHas(field) {
		return fmt.Errorf("response unexpectedly contains %q", field)
	}
	return nil
}
