package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForBreakpoints(t *testing.T) {
	tests := []struct {
		consequence, likelihood float64
		cxl                     float64
		want                    RiskLevel
	}{
		{3, 1, 3, RiskLow},
		{1, 4, 4, RiskModerate},
		{3, 2, 6, RiskModerate},
		{1, 7, 7, RiskHigh},
		{3, 4, 12, RiskHigh},
		{5, 3, 15, RiskExtreme},
		{5, 5, 25, RiskExtreme},
	}
	for _, tt := range tests {
		score := ScoreRisk(RiskInput{Consequence: Num(tt.consequence), Likelihood: Num(tt.likelihood)})
		assert.Equal(t, tt.cxl, score.CxL)
		assert.Equal(t, tt.want, score.Level, "cxl=%v", tt.cxl)
	}
}

// Every cell of the 5x5 matrix depends only on the product.
func TestLevelIsFunctionOfProduct(t *testing.T) {
	byProduct := map[float64]RiskLevel{}
	for c := 1.0; c <= 5; c++ {
		for l := 1.0; l <= 5; l++ {
			level := ScoreRisk(RiskInput{Consequence: Num(c), Likelihood: Num(l)}).Level
			if prev, ok := byProduct[c*l]; ok {
				require.Equal(t, prev, level, "c=%v l=%v", c, l)
			}
			byProduct[c*l] = level
			assert.Equal(t, LevelFor(c*l), level)
		}
	}
}

func TestScoreRisk(t *testing.T) {
	t.Run("controllability multiplies the score", func(t *testing.T) {
		score := ScoreRisk(RiskInput{Consequence: Num(4), Likelihood: Num(3), Controllability: Num(2)})
		assert.Equal(t, 24.0, score.Score)
		assert.Equal(t, RiskHigh, score.Level)
	})

	t.Run("missing or sub-1 controllability defaults to 1", func(t *testing.T) {
		assert.Equal(t, 6.0, ScoreRisk(RiskInput{Consequence: Num(2), Likelihood: Num(3)}).Score)
		assert.Equal(t, 6.0, ScoreRisk(RiskInput{Consequence: Num(2), Likelihood: Num(3), Controllability: Num(0)}).Score)
	})

	t.Run("residual computed only when both inputs are positive", func(t *testing.T) {
		score := ScoreRisk(RiskInput{
			Consequence: Num(5), Likelihood: Num(4), Controllability: Num(2),
			ResidualConsequence: Num(2), ResidualLikelihood: Num(2),
		})
		require.NotNil(t, score.ResidualScore)
		assert.Equal(t, 8.0, *score.ResidualScore)
		assert.Equal(t, 4.0, *score.ResidualCxL)
		assert.Equal(t, RiskModerate, *score.ResidualLevel)
	})

	t.Run("residual absent is not zero", func(t *testing.T) {
		partial := ScoreRisk(RiskInput{Consequence: Num(5), Likelihood: Num(4), ResidualConsequence: Num(2)})
		assert.Nil(t, partial.ResidualScore)
		assert.Nil(t, partial.ResidualLevel)

		zero := ScoreRisk(RiskInput{Consequence: Num(5), Likelihood: Num(4), ResidualConsequence: Num(0), ResidualLikelihood: Num(3)})
		assert.Nil(t, zero.ResidualScore)
	})
}

func TestScoreIndicator(t *testing.T) {
	t.Run("percentage meets at equality", func(t *testing.T) {
		score := ScoreIndicator(IndicatorInput{Numerator: Num(190), Denominator: Num(200), Standard: Num(95), Unit: UnitPercent})
		require.NotNil(t, score.Achievement)
		assert.Equal(t, 95.0, *score.Achievement)
		assert.Equal(t, ResultMeetsStandard, score.Result)
	})

	t.Run("percentage rounds to one decimal", func(t *testing.T) {
		score := ScoreIndicator(IndicatorInput{Numerator: Num(2), Denominator: Num(3), Standard: Num(80), Unit: UnitPercent})
		assert.Equal(t, 66.7, *score.Achievement)
		assert.Equal(t, ResultBelowStandard, score.Result)
	})

	t.Run("duration is lower-is-better without scaling", func(t *testing.T) {
		score := ScoreIndicator(IndicatorInput{Numerator: Num(45), Denominator: Num(1), Standard: Num(60), Unit: UnitMinutes})
		assert.Equal(t, 45.0, *score.Achievement)
		assert.Equal(t, ResultMeetsStandard, score.Result)

		slow := ScoreIndicator(IndicatorInput{Numerator: Num(150), Denominator: Num(2), Standard: Num(60), Unit: UnitMinutes})
		assert.Equal(t, 75.0, *slow.Achievement)
		assert.Equal(t, ResultBelowStandard, slow.Result)
	})

	t.Run("duration is not rounded at the boundary", func(t *testing.T) {
		at := ScoreIndicator(IndicatorInput{Numerator: Num(60), Denominator: Num(1), Standard: Num(60), Unit: UnitMinutes})
		assert.Equal(t, ResultMeetsStandard, at.Result)

		above := ScoreIndicator(IndicatorInput{Numerator: Num(60.004), Denominator: Num(1), Standard: Num(60), Unit: UnitMinutes})
		assert.Equal(t, 60.004, *above.Achievement)
		assert.Equal(t, ResultBelowStandard, above.Result)

		third := ScoreIndicator(IndicatorInput{Numerator: Num(100), Denominator: Num(3), Standard: Num(40), Unit: UnitHours})
		assert.InDelta(t, 33.3333, *third.Achievement, 0.0001)
	})

	t.Run("zero denominator is not applicable", func(t *testing.T) {
		for _, numerator := range []Number{Num(0), Num(12), {}} {
			score := ScoreIndicator(IndicatorInput{Numerator: numerator, Denominator: Num(0), Standard: Num(90)})
			assert.Equal(t, ResultNotApplicable, score.Result)
			assert.Nil(t, score.Achievement)
		}
		assert.Equal(t, ResultNotApplicable, ScoreIndicator(IndicatorInput{Numerator: Num(3)}).Result)
	})
}

func TestParseStandardUnit(t *testing.T) {
	assert.Equal(t, UnitMinutes, ParseStandardUnit(" Minutes "))
	assert.Equal(t, UnitHours, ParseStandardUnit("hr"))
	assert.Equal(t, UnitDays, ParseStandardUnit("day"))
	assert.Equal(t, UnitPercent, ParseStandardUnit("%"))
	assert.Equal(t, UnitPercent, ParseStandardUnit(""))
	assert.True(t, UnitDays.IsDuration())
	assert.False(t, UnitPercent.IsDuration())
}

func TestNumberCoercion(t *testing.T) {
	var in struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		D Number `json:"d"`
		E Number `json:"e"`
		F Number `json:"f"`
		G Number `json:"g"`
		H Number `json:"h"`
	}
	raw := `{"a": 12.5, "b": "190", "c": null, "d": "n/a", "e": {"x":1}, "f": "1,250", "g": "1,5", "h": " 7.25 "}`
	require.NoError(t, json.Unmarshal([]byte(raw), &in))

	assert.Equal(t, Num(12.5), in.A)
	assert.Equal(t, Num(190), in.B)
	assert.False(t, in.C.Valid)
	assert.False(t, in.D.Valid)
	assert.Equal(t, 0.0, in.D.Float())
	assert.False(t, in.E.Valid)
	assert.False(t, in.F.Valid)
	assert.False(t, in.G.Valid)
	assert.Equal(t, 0.0, in.G.Float())
	assert.Equal(t, Num(7.25), in.H)

	out, err := json.Marshal(struct {
		A Number `json:"a"`
		C Number `json:"c"`
	}{A: in.A, C: in.C})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":12.5,"c":null}`, string(out))
}
