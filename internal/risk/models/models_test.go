package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qsync/internal/scoring"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestNewRisk(t *testing.T) {
	_, err := NewRisk(id.NewRiskID(), "", StatusOpen, id.SystemUser, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewRisk(id.NewRiskID(), "Falls", StatusClosed, id.SystemUser, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestRiskMachine(t *testing.T) {
	assert.True(t, Machine.CanTransition(StatusOpen, StatusMitigating))
	assert.True(t, Machine.CanTransition(StatusMitigating, StatusClosed))
	assert.True(t, Machine.CanTransition(StatusClosed, StatusOpen))
	assert.False(t, Machine.CanTransition(StatusOpen, StatusClosed))

	st, err := Statuses.Parse("Mitigating")
	require.NoError(t, err)
	assert.Equal(t, StatusMitigating, st)
}

func TestRiskResponseResidualFields(t *testing.T) {
	r, err := NewRisk(id.NewRiskID(), "Patient falls", StatusOpen, "nurse-7", now)
	require.NoError(t, err)
	r.Consequence = scoring.Num(3)
	r.Likelihood = scoring.Num(4)
	r.Controllability = scoring.Num(2)
	r.Rescore()

	resp := NewRiskResponse(r)
	assert.Equal(t, 24.0, resp.RiskScore)
	assert.Equal(t, scoring.RiskHigh, resp.RiskLevel)
	assert.False(t, resp.Locked)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "residualRiskScore")

	r.ResidualConsequence = scoring.Num(1)
	r.ResidualLikelihood = scoring.Num(2)
	r.Rescore()
	resp = NewRiskResponse(r)
	require.NotNil(t, resp.ResidualRiskScore)
	assert.Equal(t, 4.0, *resp.ResidualRiskScore)
	assert.Equal(t, scoring.RiskLow, *resp.ResidualRiskLevel)
}
