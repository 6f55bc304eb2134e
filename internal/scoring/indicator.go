package scoring

import (
	"math"
	"strings"
)

// StandardUnit is the unit an indicator target is expressed in. Percentage units
// compare higher-is-better, duration units lower-is-better.
type StandardUnit string

const (
	UnitPercent StandardUnit = "percent"
	UnitMinutes StandardUnit = "minutes"
	UnitHours   StandardUnit = "hours"
	UnitDays    StandardUnit = "days"
)

// ParseStandardUnit normalizes a unit label. Unknown labels fall back to percent.
func ParseStandardUnit(s string) StandardUnit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minute", "minutes", "min", "mins":
		return UnitMinutes
	case "hour", "hours", "hr", "hrs":
		return UnitHours
	case "day", "days":
		return UnitDays
	default:
		return UnitPercent
	}
}

// IsDuration reports whether the unit measures elapsed time.
func (u StandardUnit) IsDuration() bool {
	switch u {
	case UnitMinutes, UnitHours, UnitDays:
		return true
	default:
		return false
	}
}

// Result is the pass/fail outcome of a submission against its profile target.
type Result string

const (
	ResultMeetsStandard Result = "meets_standard"
	ResultBelowStandard Result = "below_standard"
	ResultNotApplicable Result = "not_applicable"
)

// IndicatorInput holds the raw figures of one reporting period.
type IndicatorInput struct {
	Numerator   Number
	Denominator Number
	Standard    Number
	Unit        StandardUnit
}

// IndicatorScore is nil-achievement with ResultNotApplicable when the denominator is 0.
type IndicatorScore struct {
	Achievement *float64
	Result      Result
}

// ScoreIndicator derives the achievement ratio and its result.
func ScoreIndicator(in IndicatorInput) IndicatorScore {
	den := in.Denominator.Float()
	if den == 0 {
		return IndicatorScore{Result: ResultNotApplicable}
	}
	num := in.Numerator.Float()
	standard := in.Standard.Float()

	if in.Unit.IsDuration() {
		achievement := num / den
		result := ResultBelowStandard
		if achievement <= standard {
			result = ResultMeetsStandard
		}
		return IndicatorScore{Achievement: &achievement, Result: result}
	}

	achievement := round(num/den*100, 1)
	result := ResultBelowStandard
	if achievement >= standard {
		result = ResultMeetsStandard
	}
	return IndicatorScore{Achievement: &achievement, Result: result}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
