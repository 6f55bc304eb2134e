package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qsync/internal/events"
	"qsync/internal/risk/models"
	"qsync/internal/risk/store"
	"qsync/internal/scoring"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
	"qsync/pkg/platform/audit"
	auditpublisher "qsync/pkg/platform/audit/publisher"
	auditmemory "qsync/pkg/platform/audit/store/memory"
	"qsync/pkg/requestcontext"
)

type fixture struct {
	svc     *Service
	audit   *auditmemory.InMemoryStore
	emitted *[]events.Event
	ctx     context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	bus := events.New()
	var emitted []events.Event
	for _, topic := range events.AllTopics() {
		bus.Subscribe(topic, func(ev events.Event) { emitted = append(emitted, ev) })
	}
	auditStore := auditmemory.NewInMemoryStore()
	svc := New(store.NewInMemory(),
		WithEventPublisher(bus),
		WithAuditPublisher(auditpublisher.NewPublisher(auditStore)),
	)
	ctx := requestcontext.WithActor(context.Background(), "bob", "ED")
	ctx = requestcontext.WithTime(ctx, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return fixture{svc: svc, audit: auditStore, emitted: &emitted, ctx: ctx}
}

func (f fixture) create(t *testing.T) *models.RiskResponse {
	t.Helper()
	resp, err := f.svc.Create(f.ctx, &models.CreateRiskRequest{
		Title:           "Patient falls",
		Consequence:     scoring.Num(3),
		Likelihood:      scoring.Num(4),
		Controllability: scoring.Num(2),
	})
	require.NoError(t, err)
	return resp
}

func riskID(t *testing.T, raw string) id.RiskID {
	t.Helper()
	rid, err := id.ParseRiskID(raw)
	require.NoError(t, err)
	return rid
}

func TestCreateScoresRisk(t *testing.T) {
	f := newFixture(t)
	resp := f.create(t)

	assert.Equal(t, 24.0, resp.RiskScore)
	assert.Equal(t, scoring.RiskHigh, resp.RiskLevel)
	assert.Nil(t, resp.ResidualRiskScore)
	assert.Equal(t, "open", resp.Status)
	assert.Equal(t, "ED", resp.OwnerUnit)
	require.Len(t, *f.emitted, 1)
	assert.Equal(t, events.RiskCreated, (*f.emitted)[0].Topic)
}

func TestUpdateRescores(t *testing.T) {
	f := newFixture(t)
	resp := f.create(t)

	rc, rl := scoring.Num(1), scoring.Num(3)
	updated, err := f.svc.Update(f.ctx, riskID(t, resp.ID), &models.UpdateRiskRequest{
		ResidualConsequence: &rc,
		ResidualLikelihood:  &rl,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ResidualRiskScore)
	assert.Equal(t, 6.0, *updated.ResidualRiskScore)
	assert.Equal(t, scoring.RiskLow, *updated.ResidualRiskLevel)
	assert.True(t, updated.UpdatedAt.After(resp.UpdatedAt))

	t.Run("residual cleared to zero is absent again", func(t *testing.T) {
		zero := scoring.Num(0)
		again, err := f.svc.Update(f.ctx, riskID(t, resp.ID), &models.UpdateRiskRequest{ResidualLikelihood: &zero})
		require.NoError(t, err)
		assert.Nil(t, again.ResidualRiskScore)
		assert.Nil(t, again.ResidualRiskLevel)
	})
}

func TestTransitions(t *testing.T) {
	f := newFixture(t)
	resp := f.create(t)
	rid := riskID(t, resp.ID)

	_, err := f.svc.Transition(f.ctx, rid, &models.TransitionRequest{Status: "closed"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePreconditionFailed))

	*f.emitted = nil
	got, err := f.svc.Transition(f.ctx, rid, &models.TransitionRequest{Status: "Mitigating"})
	require.NoError(t, err)
	assert.Equal(t, "Mitigating", got.StatusLabel)
	require.Len(t, *f.emitted, 2)
	var n events.Notification
	require.NoError(t, json.Unmarshal((*f.emitted)[1].Payload, &n))
	assert.Equal(t, "bob", n.Recipient)

	evs, err := f.audit.ListByRecord(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, string(audit.EventUpdateBlocked), evs[1].Action)
	assert.Equal(t, string(audit.EventStatusTransitioned), evs[2].Action)
}

func TestDeleteIsNeverLocked(t *testing.T) {
	f := newFixture(t)
	resp := f.create(t)
	rid := riskID(t, resp.ID)

	_, err := f.svc.Transition(f.ctx, rid, &models.TransitionRequest{Status: "mitigating"})
	require.NoError(t, err)
	_, err = f.svc.Transition(f.ctx, rid, &models.TransitionRequest{Status: "closed"})
	require.NoError(t, err)

	*f.emitted = nil
	require.NoError(t, f.svc.Delete(f.ctx, rid))
	require.Len(t, *f.emitted, 1)
	assert.Equal(t, events.RiskDeleted, (*f.emitted)[0].Topic)

	err = f.svc.Delete(f.ctx, rid)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestExpectedUpdatedAt(t *testing.T) {
	f := newFixture(t)
	resp := f.create(t)
	old := resp.UpdatedAt.Add(-time.Minute)
	title := "renamed"

	_, err := f.svc.Update(f.ctx, riskID(t, resp.ID), &models.UpdateRiskRequest{Title: &title, ExpectedUpdatedAt: &old})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}
