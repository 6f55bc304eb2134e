package models

import (
	"time"

	"qsync/internal/lifecycle"
	"qsync/internal/scoring"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusMitigating Status = "mitigating"
	StatusClosed     Status = "closed"
)

var Statuses = lifecycle.NewStatusTable(
	lifecycle.StatusEntry[Status]{Code: StatusOpen, Label: "Open"},
	lifecycle.StatusEntry[Status]{Code: StatusMitigating, Label: "Mitigating"},
	lifecycle.StatusEntry[Status]{Code: StatusClosed, Label: "Closed"},
)

// Machine: Open ↔ Mitigating → Closed; Closed → Open reopens.
var Machine = lifecycle.NewMachine[Status]("", map[Status][]Status{
	StatusOpen:       {StatusMitigating},
	StatusMitigating: {StatusOpen, StatusClosed},
	StatusClosed:     {StatusOpen},
})

// Risk is an assessed hazard. Score and the residual fields are derived by
// Rescore and never accepted from clients.
type Risk struct {
	ID                  id.RiskID
	Title               string
	Description         string
	Category            string
	Consequence         scoring.Number
	Likelihood          scoring.Number
	Controllability     scoring.Number
	ResidualConsequence scoring.Number
	ResidualLikelihood  scoring.Number
	Mitigation          string
	Status              Status
	Score               scoring.RiskScore
	OwnerUnit           string
	CreatedBy           id.UserID
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Lock is always unlocked: nothing references a risk.
func (r *Risk) Lock() lifecycle.LockState {
	return lifecycle.Unlocked()
}

// Rescore recomputes the derived fields from the raw assessment.
func (r *Risk) Rescore() {
	r.Score = scoring.ScoreRisk(scoring.RiskInput{
		Consequence:         r.Consequence,
		Likelihood:          r.Likelihood,
		Controllability:     r.Controllability,
		ResidualConsequence: r.ResidualConsequence,
		ResidualLikelihood:  r.ResidualLikelihood,
	})
}

func NewRisk(riskID id.RiskID, title string, status Status, createdBy id.UserID, now time.Time) (*Risk, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "risk title cannot be empty")
	}
	if status != StatusOpen && status != StatusMitigating {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "a new risk must be open or mitigating")
	}
	return &Risk{
		ID:        riskID,
		Title:     title,
		Status:    status,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
