package algo

import (
	"maps"
	"math"
	"slices"

	"github.com/sleepdata/cpapinsight/schema"
)

// insufficientLabel marks scores computed from an empty window.
const insufficientLabel = "insufficient data"

// recommendationThreshold is the component score below which a recommendation is made.
const recommendationThreshold = 70.0

// TherapyInputs are the window aggregates the therapy scores are built from.
type TherapyInputs struct {
	AHI               float64
	CompliancePercent float64
	LeakRate          float64
	UsageHours        float64
	SampleSize        int
}

// MaskFitInputs are the window aggregates the mask fit score is built from.
type MaskFitInputs struct {
	LeakRate   float64
	SampleSize int
}

// TherapyInputsFrom assembles score inputs from window aggregates.
// The sample size is the smallest record count among the windows.
func TherapyInputsFrom(ahi, leak, usage schema.MetricWindow, compliance schema.ComplianceResult) TherapyInputs {
	return TherapyInputs{
		AHI:               ahi.Mean,
		CompliancePercent: compliance.Percentage,
		LeakRate:          leak.Mean,
		UsageHours:        usage.Mean,
		SampleSize:        min(ahi.RecordCount, leak.RecordCount, usage.RecordCount),
	}
}

// MaskFitInputsFrom assembles mask fit inputs from the leak window.
func MaskFitInputsFrom(leak schema.MetricWindow) MaskFitInputs {
	return MaskFitInputs{LeakRate: leak.Mean, SampleSize: leak.RecordCount}
}

func finite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// ahiControlScore loses 5 points per event per hour.
func ahiControlScore(ahi float64) float64 {
	v, ok := finite(ahi)
	if !ok {
		return 0
	}
	return math.Max(0, 100-v*5)
}

func leakManagementScore(leak float64) float64 {
	v, ok := finite(leak)
	if !ok {
		return 0
	}
	switch {
	case v < 20:
		return 100
	case v < 40:
		return 80
	case v < 60:
		return 60
	case v < 80:
		return 40
	default:
		return 20
	}
}

func sleepDurationScore(hours float64) float64 {
	v, ok := finite(hours)
	if !ok {
		return 0
	}
	switch {
	case v >= 7:
		return 100
	case v >= 6:
		return 85
	case v >= 4:
		return 70
	default:
		return 50
	}
}

func complianceScore(pct float64) float64 {
	v, ok := finite(pct)
	if !ok {
		return 0
	}
	return clamp100(v)
}

func weightedOverall(components, weights map[schema.BreakdownKey]float64) float64 {
	var sum float64
	for _, k := range slices.Sorted(maps.Keys(weights)) {
		sum += components[k] * weights[k]
	}
	return clamp100(math.Round(sum))
}

// EffectivenessLabel describes a therapy effectiveness score.
func EffectivenessLabel(overall float64) string {
	switch {
	case overall >= 85:
		return "excellent"
	case overall >= 70:
		return "good"
	case overall >= 50:
		return "moderate"
	default:
		return "needs attention"
	}
}

var effectivenessAdvice = []struct {
	key    schema.BreakdownKey
	advice string
}{
	{schema.BreakdownAHI, "Review mask seal and pressure settings with your provider to lower AHI"},
	{schema.BreakdownCompliance, "Use therapy for at least 4 hours every night"},
	{schema.BreakdownLeak, "Check mask fit and cushion wear to reduce leaks"},
	{schema.BreakdownSleep, "Extend nightly usage toward 7 or more hours"},
}

// ScoreTherapyEffectiveness blends AHI control, compliance, leak management
// and sleep duration into one 0-100 score.
func ScoreTherapyEffectiveness(in TherapyInputs) schema.CompositeScore {
	score := schema.CompositeScore{
		Type:       schema.EffectivenessScore,
		Weights:    schema.GetDefaultWeights(schema.EffectivenessScore),
		Components: map[schema.BreakdownKey]float64{},
		SampleSize: in.SampleSize,
	}
	if in.SampleSize <= 0 {
		score.Label = insufficientLabel
		return score
	}

	score.Sufficient = true
	score.Components[schema.BreakdownAHI] = ahiControlScore(in.AHI)
	score.Components[schema.BreakdownCompliance] = complianceScore(in.CompliancePercent)
	score.Components[schema.BreakdownLeak] = leakManagementScore(in.LeakRate)
	score.Components[schema.BreakdownSleep] = sleepDurationScore(in.UsageHours)
	score.Overall = weightedOverall(score.Components, score.Weights)
	score.Label = EffectivenessLabel(score.Overall)

	for _, a := range effectivenessAdvice {
		if score.Components[a.key] < recommendationThreshold {
			score.Recommendations = append(score.Recommendations, a.advice)
		}
	}
	return score
}

// maskFitFromLeak maps the mean leak onto a monotonic 0-100 scale with a floor of 20.
func maskFitFromLeak(leak float64) float64 {
	v, ok := finite(leak)
	if !ok {
		return 0
	}
	switch {
	case v < 20:
		return 100
	case v < 30:
		return 90
	case v < 40:
		return 80
	case v < 50:
		return 70
	case v < 60:
		return 60
	default:
		return math.Max(20, 100-v)
	}
}

// MaskFitLabel describes a mask fit score.
func MaskFitLabel(overall float64) string {
	switch {
	case overall >= 90:
		return "excellent seal"
	case overall >= 70:
		return "good seal"
	case overall >= 50:
		return "fair seal"
	default:
		return "poor seal"
	}
}

// ScoreMaskFit scores the mask seal from the mean leak rate alone.
func ScoreMaskFit(in MaskFitInputs) schema.CompositeScore {
	score := schema.CompositeScore{
		Type:       schema.MaskFitScore,
		Weights:    schema.GetDefaultWeights(schema.MaskFitScore),
		Components: map[schema.BreakdownKey]float64{},
		SampleSize: in.SampleSize,
	}
	if in.SampleSize <= 0 {
		score.Label = insufficientLabel
		return score
	}

	score.Sufficient = true
	score.Components[schema.BreakdownLeak] = maskFitFromLeak(in.LeakRate)
	score.Overall = weightedOverall(score.Components, score.Weights)
	score.Label = MaskFitLabel(score.Overall)
	if score.Overall < recommendationThreshold {
		score.Recommendations = []string{"Readjust headgear straps and inspect the cushion for wear"}
	}
	return score
}

func ahiBandScore(ahi float64) float64 {
	v, ok := finite(ahi)
	if !ok {
		return 0
	}
	switch {
	case v < 5:
		return 100
	case v < 15:
		return 75
	case v < 30:
		return 50
	default:
		return 25
	}
}

// SleepQualityLabel describes a sleep quality score.
func SleepQualityLabel(overall float64) string {
	switch {
	case overall >= 90:
		return "excellent"
	case overall >= 75:
		return "good"
	case overall >= 60:
		return "fair"
	default:
		return "poor"
	}
}

// ScoreSleepQuality blends the AHI band, usage toward 8 hours and compliance.
func ScoreSleepQuality(in TherapyInputs) schema.CompositeScore {
	score := schema.CompositeScore{
		Type:       schema.SleepQualityScore,
		Weights:    schema.GetDefaultWeights(schema.SleepQualityScore),
		Components: map[schema.BreakdownKey]float64{},
		SampleSize: in.SampleSize,
	}
	if in.SampleSize <= 0 {
		score.Label = insufficientLabel
		return score
	}

	usage := 0.0
	if v, ok := finite(in.UsageHours); ok {
		usage = clamp100(v / 8 * 100)
	}

	score.Sufficient = true
	score.Components[schema.BreakdownAHI] = ahiBandScore(in.AHI)
	score.Components[schema.BreakdownUsage] = usage
	score.Components[schema.BreakdownCompliance] = complianceScore(in.CompliancePercent)
	score.Overall = weightedOverall(score.Components, score.Weights)
	score.Label = SleepQualityLabel(score.Overall)
	return score
}
