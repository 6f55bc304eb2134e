package models

import (
	"regexp"
	"time"

	"qsync/internal/lifecycle"
	"qsync/internal/scoring"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidPeriod reports whether p is a YYYY-MM month.
func ValidPeriod(p string) bool {
	return periodPattern.MatchString(p)
}

// Submission is one reporting period's figures for a profile. Achievement and
// Result are derived and never accepted from clients.
type Submission struct {
	ID              id.SubmissionID
	ProfileID       id.ProfileID
	Period          string
	Numerator       scoring.Number
	Denominator     scoring.Number
	Analysis        string
	Status          SubmissionStatus
	RejectionReason string
	Achievement     *float64
	Result          scoring.Result
	OwnerUnit       string
	CreatedBy       id.UserID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Lock evaluates the delete/edit lock given the number of dependent records.
func (s *Submission) Lock(dependents int) lifecycle.LockState {
	return lifecycle.EvaluateLock(dependents, s.Status == SubmissionVerified)
}

// ApplyScore recomputes the derived fields against the profile's target.
func (s *Submission) ApplyScore(p *Profile) {
	standard, unit := p.Indicator()
	score := scoring.ScoreIndicator(scoring.IndicatorInput{
		Numerator:   s.Numerator,
		Denominator: s.Denominator,
		Standard:    standard,
		Unit:        unit,
	})
	s.Achievement = score.Achievement
	s.Result = score.Result
}

func NewSubmission(submissionID id.SubmissionID, profile *Profile, period string, createdBy id.UserID, now time.Time) (*Submission, error) {
	if profile == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "submission requires a profile")
	}
	if !ValidPeriod(period) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "period must be formatted YYYY-MM")
	}
	return &Submission{
		ID:        submissionID,
		ProfileID: profile.ID,
		Period:    period,
		Status:    SubmissionPendingApproval,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SubmissionFilter narrows a submission listing.
type SubmissionFilter struct {
	ProfileID *id.ProfileID
}
