package records

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext is the subset of the scenario context these steps need.
type TestContext interface {
	POST(path string, body any) error
	PUT(path string, body any) error
	DELETE(path string) error
	StatusCode() int
	ResponseField(field string) (any, error)
	Remember(kind, id string)
	Last(kind string) (string, error)
}

// RegisterSteps registers steps that create and change records.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &recordSteps{tc: tc}

	ctx.Step(`^I create a risk "([^"]*)" with consequence (\d+) and likelihood (\d+)$`, steps.createRisk)
	ctx.Step(`^I set the likelihood of the last risk to (\d+)$`, steps.setRiskLikelihood)
	ctx.Step(`^I delete the last risk$`, steps.deleteLast("risk", "/api/risks/"))
	ctx.Step(`^a pending profile "([^"]*)" with standard (\d+) percent$`, steps.pendingProfile)
	ctx.Step(`^an approved profile "([^"]*)" with standard (\d+) percent$`, steps.approvedProfile)
	ctx.Step(`^I transition the last profile to "([^"]*)"$`, steps.transitionProfile)
	ctx.Step(`^I delete the last profile$`, steps.deleteLast("profile", "/api/profiles/"))
	ctx.Step(`^I submit (\d+) over (\d+) for period "([^"]*)"$`, steps.submit)
}

type recordSteps struct {
	tc TestContext
}

// created checks for 201 and remembers the new id under kind.
func (s *recordSteps) created(kind string) error {
	if s.tc.StatusCode() != 201 {
		return fmt.Errorf("create %s returned %d", kind, s.tc.StatusCode())
	}
	v, err := s.tc.ResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Remember(kind, fmt.Sprint(v))
	return nil
}

func (s *recordSteps) createRisk(ctx context.Context, title string, consequence, likelihood int) error {
	if err := s.tc.POST("/api/risks", map[string]any{
		"title":       title,
		"consequence": consequence,
		"likelihood":  likelihood,
	}); err != nil {
		return err
	}
	if s.tc.StatusCode() != 201 {
		return nil
	}
	return s.created("risk")
}

func (s *recordSteps) setRiskLikelihood(ctx context.Context, likelihood int) error {
	id, err := s.tc.Last("risk")
	if err != nil {
		return err
	}
	if err := s.tc.PUT("/api/risks/"+id, map[string]any{"likelihood": likelihood}); err != nil {
		return err
	}
	if s.tc.StatusCode() != 200 {
		return fmt.Errorf("update risk returned %d", s.tc.StatusCode())
	}
	return nil
}

func (s *recordSteps) createProfile(code string, standard int) error {
	// codes are unique per server, so repeated runs need a fresh suffix
	unique := fmt.Sprintf("%s-%s", code, uuid.NewString()[:8])
	if err := s.tc.POST("/api/profiles", map[string]any{
		"code":                  unique,
		"title":                 "E2E " + code,
		"numeratorDefinition":   "events meeting the criterion",
		"denominatorDefinition": "all events",
		"standard":              standard,
		"standardUnit":          "percent",
		"status":                "pending_approval",
	}); err != nil {
		return err
	}
	return s.created("profile")
}

func (s *recordSteps) pendingProfile(ctx context.Context, code string, standard int) error {
	return s.createProfile(code, standard)
}

func (s *recordSteps) approvedProfile(ctx context.Context, code string, standard int) error {
	if err := s.createProfile(code, standard); err != nil {
		return err
	}
	if err := s.transitionProfile(ctx, "approved"); err != nil {
		return err
	}
	if s.tc.StatusCode() != 200 {
		return fmt.Errorf("approve profile returned %d", s.tc.StatusCode())
	}
	return nil
}

func (s *recordSteps) transitionProfile(ctx context.Context, status string) error {
	id, err := s.tc.Last("profile")
	if err != nil {
		return err
	}
	return s.tc.POST("/api/profiles/"+id+"/transition", map[string]any{"status": status})
}

func (s *recordSteps) submit(ctx context.Context, numerator, denominator int, period string) error {
	profileID, err := s.tc.Last("profile")
	if err != nil {
		return err
	}
	if err := s.tc.POST("/api/submissions", map[string]any{
		"profileId":   profileID,
		"period":      period,
		"numerator":   numerator,
		"denominator": denominator,
	}); err != nil {
		return err
	}
	if s.tc.StatusCode() != 201 {
		return nil
	}
	return s.created("submission")
}

func (s *recordSteps) deleteLast(kind, prefix string) func(context.Context) error {
	return func(ctx context.Context) error {
		id, err := s.tc.Last(kind)
		if err != nil {
			return err
		}
		return s.tc.DELETE(prefix + id)
	}
}
