package algo

import (
	"math"
	"testing"

	"github.com/sleepdata/cpapinsight/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreTherapyEffectiveness(t *testing.T) {
	tests := []struct {
		name       string
		in         TherapyInputs
		overall    float64
		label      string
		components map[schema.BreakdownKey]float64
		recs       int
	}{
		{
			name:    "well controlled month",
			in:      TherapyInputs{AHI: 3, CompliancePercent: 100, LeakRate: 15, UsageHours: 7.5, SampleSize: 30},
			overall: 94,
			label:   "excellent",
			components: map[schema.BreakdownKey]float64{
				schema.BreakdownAHI:        85,
				schema.BreakdownCompliance: 100,
				schema.BreakdownLeak:       100,
				schema.BreakdownSleep:      100,
			},
		},
		{
			name:    "perfect inputs",
			in:      TherapyInputs{AHI: 0, CompliancePercent: 100, LeakRate: 0, UsageHours: 9, SampleSize: 7},
			overall: 100,
			label:   "excellent",
		},
		{
			name:    "struggling therapy",
			in:      TherapyInputs{AHI: 12, CompliancePercent: 60, LeakRate: 45, UsageHours: 5, SampleSize: 14},
			overall: 53,
			label:   "moderate",
			components: map[schema.BreakdownKey]float64{
				schema.BreakdownAHI:        40,
				schema.BreakdownCompliance: 60,
				schema.BreakdownLeak:       60,
				schema.BreakdownSleep:      70,
			},
			recs: 3,
		},
		{
			name:    "pathological extremes",
			in:      TherapyInputs{AHI: 1000, CompliancePercent: 0, LeakRate: 1000, UsageHours: 0, SampleSize: 3},
			overall: 9,
			label:   "needs attention",
			recs:    4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := ScoreTherapyEffectiveness(tt.in)
			assert.Equal(t, schema.EffectivenessScore, score.Type)
			assert.True(t, score.Sufficient)
			assert.Equal(t, tt.overall, score.Overall)
			assert.Equal(t, tt.label, score.Label)
			if tt.components != nil {
				assert.Equal(t, tt.components, score.Components)
			}
			assert.Len(t, score.Recommendations, tt.recs)
		})
	}
}

func TestScoreTherapyEffectivenessInsufficient(t *testing.T) {
	score := ScoreTherapyEffectiveness(TherapyInputs{AHI: 2})
	assert.False(t, score.Sufficient)
	assert.Equal(t, 0.0, score.Overall)
	assert.Equal(t, "insufficient data", score.Label)
	assert.Empty(t, score.Components)
	assert.Len(t, score.Weights, 4)
}

func TestScoreTherapyEffectivenessDoesNotShareWeights(t *testing.T) {
	in := TherapyInputs{AHI: 1, CompliancePercent: 90, LeakRate: 10, UsageHours: 8, SampleSize: 10}
	first := ScoreTherapyEffectiveness(in)
	first.Weights[schema.BreakdownAHI] = 0

	second := ScoreTherapyEffectiveness(in)
	assert.Equal(t, 0.40, second.Weights[schema.BreakdownAHI])
	assert.Equal(t, 95.0, second.Overall)
}

func TestScoreMaskFit(t *testing.T) {
	tests := []struct {
		leak    float64
		overall float64
	}{
		{0, 100},
		{19.9, 100},
		{20, 90},
		{29, 90},
		{30, 80},
		{45, 70},
		{55, 60},
		{60, 40},
		{75, 25},
		{80, 20},
		{500, 20},
	}
	for _, tt := range tests {
		score := ScoreMaskFit(MaskFitInputs{LeakRate: tt.leak, SampleSize: 7})
		assert.Equal(t, tt.overall, score.Overall, "leak %v", tt.leak)
		assert.Equal(t, map[schema.BreakdownKey]float64{schema.BreakdownLeak: 1.0}, score.Weights)
	}
}

func TestScoreMaskFitIsMonotonic(t *testing.T) {
	prev := math.Inf(1)
	for leak := 0.0; leak <= 150; leak += 0.5 {
		score := ScoreMaskFit(MaskFitInputs{LeakRate: leak, SampleSize: 1})
		assert.LessOrEqual(t, score.Overall, prev, "leak %v", leak)
		prev = score.Overall
	}
}

func TestScoreMaskFitLabels(t *testing.T) {
	assert.Equal(t, "excellent seal", ScoreMaskFit(MaskFitInputs{LeakRate: 5, SampleSize: 1}).Label)
	poor := ScoreMaskFit(MaskFitInputs{LeakRate: 70, SampleSize: 1})
	assert.Equal(t, "poor seal", poor.Label)
	assert.NotEmpty(t, poor.Recommendations)
	assert.False(t, ScoreMaskFit(MaskFitInputs{LeakRate: 5}).Sufficient)
}

func TestScoreSleepQuality(t *testing.T) {
	tests := []struct {
		name    string
		in      TherapyInputs
		overall float64
		label   string
	}{
		{"ideal", TherapyInputs{AHI: 2, UsageHours: 8, CompliancePercent: 100, SampleSize: 30}, 100, "excellent"},
		{"mild ahi", TherapyInputs{AHI: 8, UsageHours: 7, CompliancePercent: 90, SampleSize: 30}, 83, "good"},
		{"short nights", TherapyInputs{AHI: 20, UsageHours: 4, CompliancePercent: 50, SampleSize: 30}, 50, "poor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := ScoreSleepQuality(tt.in)
			assert.Equal(t, tt.overall, score.Overall)
			assert.Equal(t, tt.label, score.Label)
		})
	}
}

func TestTherapyInputsFrom(t *testing.T) {
	in := TherapyInputsFrom(
		schema.MetricWindow{Mean: 2, RecordCount: 10},
		schema.MetricWindow{Mean: 18, RecordCount: 9},
		schema.MetricWindow{Mean: 6.5, RecordCount: 10},
		schema.ComplianceResult{Percentage: 80},
	)
	require.Equal(t, 9, in.SampleSize)
	assert.Equal(t, TherapyInputs{AHI: 2, CompliancePercent: 80, LeakRate: 18, UsageHours: 6.5, SampleSize: 9}, in)
	assert.Equal(t, MaskFitInputs{LeakRate: 18, SampleSize: 9}, MaskFitInputsFrom(schema.MetricWindow{Mean: 18, RecordCount: 9}))
}

func TestScoresTreatNonFiniteAsZero(t *testing.T) {
	score := ScoreTherapyEffectiveness(TherapyInputs{AHI: math.NaN(), CompliancePercent: math.Inf(1), LeakRate: math.NaN(), UsageHours: math.Inf(-1), SampleSize: 1})
	assert.Equal(t, 0.0, score.Overall)
	assert.Equal(t, 0.0, ScoreMaskFit(MaskFitInputs{LeakRate: math.NaN(), SampleSize: 1}).Overall)
}

func FuzzScoreTherapyEffectiveness(f *testing.F) {
	f.Add(3.0, 100.0, 15.0, 7.5)
	f.Add(1000.0, 0.0, 1000.0, 0.0)
	f.Add(0.0, 250.0, 0.0, 24.0)
	f.Fuzz(func(t *testing.T, ahi, compliance, leak, usage float64) {
		in := TherapyInputs{AHI: math.Abs(ahi), CompliancePercent: math.Abs(compliance), LeakRate: math.Abs(leak), UsageHours: math.Abs(usage), SampleSize: 1}
		for _, score := range []float64{
			ScoreTherapyEffectiveness(in).Overall,
			ScoreSleepQuality(in).Overall,
			ScoreMaskFit(MaskFitInputs{LeakRate: in.LeakRate, SampleSize: 1}).Overall,
		} {
			if score < 0 || score > 100 || math.IsNaN(score) {
				t.Fatalf("score %v out of bounds for %+v", score, in)
			}
		}
	})
}

func BenchmarkScoreTherapyEffectiveness(b *testing.B) {
	in := TherapyInputs{AHI: 4.2, CompliancePercent: 86, LeakRate: 22, UsageHours: 6.4, SampleSize: 30}
	for b.Loop() {
		_ = ScoreTherapyEffectiveness(in)
	}
}
