package models

import (
	"time"

	"qsync/internal/lifecycle"
	"qsync/internal/scoring"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
)

// Profile defines a quality indicator and its target.
//
// Invariants:
//   - Code and Title are non-empty
//   - Standard and StandardUnit are frozen once the profile is locked
//   - RejectionReason is non-empty exactly when Status is rejected
type Profile struct {
	ID                    id.ProfileID
	Code                  string
	Title                 string
	Description           string
	Category              string
	NumeratorDefinition   string
	DenominatorDefinition string
	Standard              scoring.Number
	StandardUnit          scoring.StandardUnit
	Notes                 string
	Status                ProfileStatus
	RejectionReason       string
	OwnerUnit             string
	CreatedBy             id.UserID
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Lock evaluates the delete/edit lock given the number of submissions that
// reference the profile.
func (p *Profile) Lock(submissions int) lifecycle.LockState {
	return lifecycle.EvaluateLock(submissions, p.Status == ProfileApproved)
}

// Indicator returns the scoring parameters submissions are measured against.
func (p *Profile) Indicator() (scoring.Number, scoring.StandardUnit) {
	return p.Standard, p.StandardUnit
}

func NewProfile(profileID id.ProfileID, code, title string, status ProfileStatus, createdBy id.UserID, now time.Time) (*Profile, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "profile code cannot be empty")
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "profile title cannot be empty")
	}
	if status != ProfileDraft && status != ProfilePendingApproval {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "a new profile must be draft or pending approval")
	}
	return &Profile{
		ID:           profileID,
		Code:         code,
		Title:        title,
		StandardUnit: scoring.UnitPercent,
		Status:       status,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
