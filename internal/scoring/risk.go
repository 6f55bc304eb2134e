// Package scoring derives the computed fields of synchronized records.
//
// Everything here is a total function: inputs are coerced (see Number) and no
// function returns an error, so callers always get a result to persist.
package scoring

// RiskLevel is the band a consequence × likelihood product falls into.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskExtreme  RiskLevel = "Extreme"
)

// Fixed breakpoints of the 5x5 risk matrix.
const (
	lowMax      = 3
	moderateMax = 6
	highMax     = 12
)

// LevelFor maps cxl = consequence × likelihood onto a risk band.
func LevelFor(cxl float64) RiskLevel {
	switch {
	case cxl <= lowMax:
		return RiskLow
	case cxl <= moderateMax:
		return RiskModerate
	case cxl <= highMax:
		return RiskHigh
	default:
		return RiskExtreme
	}
}

// RiskInput holds the raw assessment values.
type RiskInput struct {
	Consequence         Number
	Likelihood          Number
	Controllability     Number
	ResidualConsequence Number
	ResidualLikelihood  Number
}

// RiskScore holds the derived values. Residual fields are nil when the residual risk
// was not assessed, which is different from being assessed at zero.
type RiskScore struct {
	CxL           float64
	Level         RiskLevel
	Score         float64
	ResidualCxL   *float64
	ResidualScore *float64
	ResidualLevel *RiskLevel
}

// EffectiveControllability coerces controllability to at least 1.
func EffectiveControllability(n Number) float64 {
	if v := n.Float(); v >= 1 {
		return v
	}
	return 1
}

// ScoreRisk computes level, score and, when assessed, the residual values.
func ScoreRisk(in RiskInput) RiskScore {
	ctrl := EffectiveControllability(in.Controllability)
	cxl := in.Consequence.Float() * in.Likelihood.Float()
	out := RiskScore{
		CxL:   cxl,
		Level: LevelFor(cxl),
		Score: cxl * ctrl,
	}
	if in.ResidualConsequence.Positive() && in.ResidualLikelihood.Positive() {
		rcxl := in.ResidualConsequence.Value * in.ResidualLikelihood.Value
		rscore := rcxl * ctrl
		rlevel := LevelFor(rcxl)
		out.ResidualCxL = &rcxl
		out.ResidualScore = &rscore
		out.ResidualLevel = &rlevel
	}
	return out
}
