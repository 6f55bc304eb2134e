package models

import (
	"strings"
	"time"

	"qsync/internal/scoring"
	dErrors "qsync/pkg/domain-errors"
)

const (
	maxShortText = 255
	maxLongText  = 10000
)

type CreateProfileRequest struct {
	Code                  string         `json:"code"`
	Title                 string         `json:"title"`
	Description           string         `json:"description"`
	Category              string         `json:"category"`
	NumeratorDefinition   string         `json:"numeratorDefinition"`
	DenominatorDefinition string         `json:"denominatorDefinition"`
	Standard              scoring.Number `json:"standard"`
	StandardUnit          string         `json:"standardUnit"`
	Notes                 string         `json:"notes"`
	OwnerUnit             string         `json:"ownerUnit"`
	Status                string         `json:"status"`
}

func (r *CreateProfileRequest) Normalize() {
	if r == nil {
		return
	}
	r.Code = strings.TrimSpace(r.Code)
	r.Title = strings.TrimSpace(r.Title)
	r.Category = strings.TrimSpace(r.Category)
	r.OwnerUnit = strings.TrimSpace(r.OwnerUnit)
	r.Status = strings.TrimSpace(r.Status)
}

// Follows validation order: Size -> Required -> Syntax.
func (r *CreateProfileRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Code) > maxShortText || len(r.Title) > maxShortText {
		return dErrors.New(dErrors.CodeValidation, "code and title must be 255 characters or less")
	}
	if len(r.Description) > maxLongText || len(r.Notes) > maxLongText {
		return dErrors.New(dErrors.CodeValidation, "description and notes must be 10000 characters or less")
	}
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	return nil
}

// UpdateProfileRequest is a patch: nil fields are left unchanged.
type UpdateProfileRequest struct {
	Code                  *string         `json:"code,omitempty"`
	Title                 *string         `json:"title,omitempty"`
	Description           *string         `json:"description,omitempty"`
	Category              *string         `json:"category,omitempty"`
	NumeratorDefinition   *string         `json:"numeratorDefinition,omitempty"`
	DenominatorDefinition *string         `json:"denominatorDefinition,omitempty"`
	Standard              *scoring.Number `json:"standard,omitempty"`
	StandardUnit          *string         `json:"standardUnit,omitempty"`
	Notes                 *string         `json:"notes,omitempty"`
	OwnerUnit             *string         `json:"ownerUnit,omitempty"`
	Status                *string         `json:"status,omitempty"`
	RejectionReason       *string         `json:"rejectionReason,omitempty"`
	// ExpectedUpdatedAt makes the write conditional on the stored version.
	ExpectedUpdatedAt *time.Time `json:"expectedUpdatedAt,omitempty"`
}

func (r *UpdateProfileRequest) Normalize() {
	if r == nil {
		return
	}
	trimPtr(r.Code)
	trimPtr(r.Title)
	trimPtr(r.Category)
	trimPtr(r.OwnerUnit)
	trimPtr(r.Status)
}

func (r *UpdateProfileRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Code != nil && *r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code cannot be empty")
	}
	if r.Title != nil && *r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title cannot be empty")
	}
	if (r.Code != nil && len(*r.Code) > maxShortText) || (r.Title != nil && len(*r.Title) > maxShortText) {
		return dErrors.New(dErrors.CodeValidation, "code and title must be 255 characters or less")
	}
	return nil
}

type CreateSubmissionRequest struct {
	ProfileID   string         `json:"profileId"`
	Period      string         `json:"period"`
	Numerator   scoring.Number `json:"numerator"`
	Denominator scoring.Number `json:"denominator"`
	Analysis    string         `json:"analysis"`
	OwnerUnit   string         `json:"ownerUnit"`
}

func (r *CreateSubmissionRequest) Normalize() {
	if r == nil {
		return
	}
	r.ProfileID = strings.TrimSpace(r.ProfileID)
	r.Period = strings.TrimSpace(r.Period)
	r.OwnerUnit = strings.TrimSpace(r.OwnerUnit)
}

func (r *CreateSubmissionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Analysis) > maxLongText {
		return dErrors.New(dErrors.CodeValidation, "analysis must be 10000 characters or less")
	}
	if r.ProfileID == "" {
		return dErrors.New(dErrors.CodeValidation, "profileId is required")
	}
	if r.Period == "" {
		return dErrors.New(dErrors.CodeValidation, "period is required")
	}
	if !ValidPeriod(r.Period) {
		return dErrors.New(dErrors.CodeValidation, "period must be formatted YYYY-MM")
	}
	return nil
}

// UpdateSubmissionRequest is a patch: nil fields are left unchanged. The
// profile a submission belongs to never changes.
type UpdateSubmissionRequest struct {
	Period            *string         `json:"period,omitempty"`
	Numerator         *scoring.Number `json:"numerator,omitempty"`
	Denominator       *scoring.Number `json:"denominator,omitempty"`
	Analysis          *string         `json:"analysis,omitempty"`
	OwnerUnit         *string         `json:"ownerUnit,omitempty"`
	Status            *string         `json:"status,omitempty"`
	RejectionReason   *string         `json:"rejectionReason,omitempty"`
	ExpectedUpdatedAt *time.Time      `json:"expectedUpdatedAt,omitempty"`
}

func (r *UpdateSubmissionRequest) Normalize() {
	if r == nil {
		return
	}
	trimPtr(r.Period)
	trimPtr(r.OwnerUnit)
	trimPtr(r.Status)
}

func (r *UpdateSubmissionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Analysis != nil && len(*r.Analysis) > maxLongText {
		return dErrors.New(dErrors.CodeValidation, "analysis must be 10000 characters or less")
	}
	if r.Period != nil && !ValidPeriod(*r.Period) {
		return dErrors.New(dErrors.CodeValidation, "period must be formatted YYYY-MM")
	}
	return nil
}

// TransitionRequest moves a record to another status.
type TransitionRequest struct {
	Status            string     `json:"status"`
	RejectionReason   string     `json:"rejectionReason"`
	ExpectedUpdatedAt *time.Time `json:"expectedUpdatedAt,omitempty"`
}

func (r *TransitionRequest) Normalize() {
	if r == nil {
		return
	}
	r.Status = strings.TrimSpace(r.Status)
	r.RejectionReason = strings.TrimSpace(r.RejectionReason)
}

func (r *TransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
