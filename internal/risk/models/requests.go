package models

import (
	"strings"
	"time"

	"qsync/internal/scoring"
	dErrors "qsync/pkg/domain-errors"
)

const (
	maxTitle = 255
	maxText  = 10000
)

type CreateRiskRequest struct {
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	Category            string         `json:"category"`
	Consequence         scoring.Number `json:"consequence"`
	Likelihood          scoring.Number `json:"likelihood"`
	Controllability     scoring.Number `json:"controllability"`
	ResidualConsequence scoring.Number `json:"residualConsequence"`
	ResidualLikelihood  scoring.Number `json:"residualLikelihood"`
	Mitigation          string         `json:"mitigation"`
	Status              string         `json:"status"`
	OwnerUnit           string         `json:"ownerUnit"`
}

func (r *CreateRiskRequest) Normalize() {
	if r == nil {
		return
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Category = strings.TrimSpace(r.Category)
	r.Status = strings.TrimSpace(r.Status)
	r.OwnerUnit = strings.TrimSpace(r.OwnerUnit)
}

func (r *CreateRiskRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Title) > maxTitle {
		return dErrors.New(dErrors.CodeValidation, "title must be 255 characters or less")
	}
	if len(r.Description) > maxText || len(r.Mitigation) > maxText {
		return dErrors.New(dErrors.CodeValidation, "description and mitigation must be 10000 characters or less")
	}
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	return nil
}

// UpdateRiskRequest is a patch. Every field of a risk stays editable.
type UpdateRiskRequest struct {
	Title               *string         `json:"title,omitempty"`
	Description         *string         `json:"description,omitempty"`
	Category            *string         `json:"category,omitempty"`
	Consequence         *scoring.Number `json:"consequence,omitempty"`
	Likelihood          *scoring.Number `json:"likelihood,omitempty"`
	Controllability     *scoring.Number `json:"controllability,omitempty"`
	ResidualConsequence *scoring.Number `json:"residualConsequence,omitempty"`
	ResidualLikelihood  *scoring.Number `json:"residualLikelihood,omitempty"`
	Mitigation          *string         `json:"mitigation,omitempty"`
	Status              *string         `json:"status,omitempty"`
	OwnerUnit           *string         `json:"ownerUnit,omitempty"`
	ExpectedUpdatedAt   *time.Time      `json:"expectedUpdatedAt,omitempty"`
}

func (r *UpdateRiskRequest) Normalize() {
	if r == nil {
		return
	}
	for _, s := range []*string{r.Title, r.Category, r.Status, r.OwnerUnit} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}

func (r *UpdateRiskRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Title != nil {
		if *r.Title == "" {
			return dErrors.New(dErrors.CodeValidation, "title cannot be empty")
		}
		if len(*r.Title) > maxTitle {
			return dErrors.New(dErrors.CodeValidation, "title must be 255 characters or less")
		}
	}
	return nil
}

type TransitionRequest struct {
	Status            string     `json:"status"`
	ExpectedUpdatedAt *time.Time `json:"expectedUpdatedAt,omitempty"`
}

func (r *TransitionRequest) Normalize() {
	if r != nil {
		r.Status = strings.TrimSpace(r.Status)
	}
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
