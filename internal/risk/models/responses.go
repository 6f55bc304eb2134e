package models

import (
	"time"

	"qsync/internal/scoring"
)

// RiskResponse is the REST body and the payload of risk:created and risk:updated.
// Residual fields are omitted when the residual risk was not assessed.
type RiskResponse struct {
	ID                  string             `json:"id"`
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	Category            string             `json:"category"`
	Consequence         *float64           `json:"consequence"`
	Likelihood          *float64           `json:"likelihood"`
	Controllability     *float64           `json:"controllability"`
	ResidualConsequence *float64           `json:"residualConsequence"`
	ResidualLikelihood  *float64           `json:"residualLikelihood"`
	Mitigation          string             `json:"mitigation"`
	Status              string             `json:"status"`
	StatusLabel         string             `json:"statusLabel"`
	RiskScore           float64            `json:"riskScore"`
	RiskLevel           scoring.RiskLevel  `json:"riskLevel"`
	ResidualRiskScore   *float64           `json:"residualRiskScore,omitempty"`
	ResidualRiskLevel   *scoring.RiskLevel `json:"residualRiskLevel,omitempty"`
	OwnerUnit           string             `json:"ownerUnit"`
	CreatedBy           string             `json:"createdBy"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`
	Locked              bool               `json:"locked"`
	LockedReason        string             `json:"lockedReason,omitempty"`
}

func NewRiskResponse(r *Risk) RiskResponse {
	lock := r.Lock()
	return RiskResponse{
		ID:                  r.ID.String(),
		Title:               r.Title,
		Description:         r.Description,
		Category:            r.Category,
		Consequence:         r.Consequence.Ptr(),
		Likelihood:          r.Likelihood.Ptr(),
		Controllability:     r.Controllability.Ptr(),
		ResidualConsequence: r.ResidualConsequence.Ptr(),
		ResidualLikelihood:  r.ResidualLikelihood.Ptr(),
		Mitigation:          r.Mitigation,
		Status:              string(r.Status),
		StatusLabel:         Statuses.Label(r.Status),
		RiskScore:           r.Score.Score,
		RiskLevel:           r.Score.Level,
		ResidualRiskScore:   r.Score.ResidualScore,
		ResidualRiskLevel:   r.Score.ResidualLevel,
		OwnerUnit:           r.OwnerUnit,
		CreatedBy:           string(r.CreatedBy),
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
		Locked:              lock.Locked,
		LockedReason:        string(lock.Reason),
	}
}
