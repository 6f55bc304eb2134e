package models

import (
	"time"

	"qsync/internal/scoring"
)

// ProfileResponse is the UI representation of a profile: the REST body and
// the payload of profile:created and profile:updated.
type ProfileResponse struct {
	ID                    string    `json:"id"`
	Code                  string    `json:"code"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	Category              string    `json:"category"`
	NumeratorDefinition   string    `json:"numeratorDefinition"`
	DenominatorDefinition string    `json:"denominatorDefinition"`
	Standard              *float64  `json:"standard"`
	StandardUnit          string    `json:"standardUnit"`
	Notes                 string    `json:"notes"`
	Status                string    `json:"status"`
	StatusLabel           string    `json:"statusLabel"`
	RejectionReason       string    `json:"rejectionReason,omitempty"`
	OwnerUnit             string    `json:"ownerUnit"`
	CreatedBy             string    `json:"createdBy"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
	SubmissionCount       int       `json:"submissionCount"`
	Locked                bool      `json:"locked"`
	LockedReason          string    `json:"lockedReason,omitempty"`
}

func NewProfileResponse(p *Profile, submissions int) ProfileResponse {
	lock := p.Lock(submissions)
	return ProfileResponse{
		ID:                    p.ID.String(),
		Code:                  p.Code,
		Title:                 p.Title,
		Description:           p.Description,
		Category:              p.Category,
		NumeratorDefinition:   p.NumeratorDefinition,
		DenominatorDefinition: p.DenominatorDefinition,
		Standard:              p.Standard.Ptr(),
		StandardUnit:          string(p.StandardUnit),
		Notes:                 p.Notes,
		Status:                string(p.Status),
		StatusLabel:           ProfileStatuses.Label(p.Status),
		RejectionReason:       p.RejectionReason,
		OwnerUnit:             p.OwnerUnit,
		CreatedBy:             string(p.CreatedBy),
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
		SubmissionCount:       submissions,
		Locked:                lock.Locked,
		LockedReason:          string(lock.Reason),
	}
}

// SubmissionResponse is the UI representation of a submission.
type SubmissionResponse struct {
	ID              string         `json:"id"`
	ProfileID       string         `json:"profileId"`
	Period          string         `json:"period"`
	Numerator       *float64       `json:"numerator"`
	Denominator     *float64       `json:"denominator"`
	Analysis        string         `json:"analysis"`
	Status          string         `json:"status"`
	StatusLabel     string         `json:"statusLabel"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	Achievement     *float64       `json:"achievement"`
	Result          scoring.Result `json:"result"`
	OwnerUnit       string         `json:"ownerUnit"`
	CreatedBy       string         `json:"createdBy"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	Locked          bool           `json:"locked"`
	LockedReason    string         `json:"lockedReason,omitempty"`
}

func NewSubmissionResponse(s *Submission, dependents int) SubmissionResponse {
	lock := s.Lock(dependents)
	return SubmissionResponse{
		ID:              s.ID.String(),
		ProfileID:       s.ProfileID.String(),
		Period:          s.Period,
		Numerator:       s.Numerator.Ptr(),
		Denominator:     s.Denominator.Ptr(),
		Analysis:        s.Analysis,
		Status:          string(s.Status),
		StatusLabel:     SubmissionStatuses.Label(s.Status),
		RejectionReason: s.RejectionReason,
		Achievement:     s.Achievement,
		Result:          s.Result,
		OwnerUnit:       s.OwnerUnit,
		CreatedBy:       string(s.CreatedBy),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		Locked:          lock.Locked,
		LockedReason:    string(lock.Reason),
	}
}
