package core

import (
	"testing"

	"github.com/sleepdata/cpapinsight/core/agg"
	"github.com/sleepdata/cpapinsight/core/algo"
	"github.com/sleepdata/cpapinsight/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInsightsExcellentTherapy(t *testing.T) {
	insights := GenerateInsights(steadyNights(30, nil), testRef)

	require.Len(t, insights, 1)
	in := insights[0]
	assert.Equal(t, schema.AchievementInsight, in.Kind)
	assert.Equal(t, schema.OverallMetric, in.Metric)
	assert.Equal(t, "Excellent Therapy Control", in.Title)
	assert.False(t, in.Actionable)
	assert.Equal(t, schema.Undetermined, in.TrendDirection)
	assert.Equal(t, schema.HighLevel, in.Confidence)
	assert.Equal(t, 30.0, in.DataPoints["current_streak"])
	assert.Contains(t, in.Message, "30 night streak")
}

func TestGenerateInsightsLeakWorsening(t *testing.T) {
	records := steadyNights(30, func(daysAgo int, r *schema.SessionRecord) {
		r.LeakRate = 20
		if daysAgo < schema.RecentWindowDays {
			r.LeakRate = 45
		}
	})

	insights := GenerateInsights(records, testRef)

	in, ok := findInsight(insights, "Leak Rate Worsening")
	require.True(t, ok, "expected a leak trend insight in %v", insights)
	assert.Equal(t, schema.ConcernInsight, in.Kind)
	assert.Equal(t, schema.LeakMetric, in.Metric)
	assert.Equal(t, schema.Worsening, in.TrendDirection)
	assert.Positive(t, in.Priority)
	assert.True(t, in.Actionable)
	assert.NotEmpty(t, in.RecommendedActions)
	assert.Equal(t, 45.0, in.DataPoints["recent"])

	// The high leak rule fires as well but loses the per-metric dedupe.
	_, dup := findInsight(insights, "Mask Fit Optimization")
	assert.False(t, dup)
	_, achievement := findInsight(insights, "Excellent Therapy Control")
	assert.False(t, achievement)
}

func TestGenerateInsightsEmptyHistory(t *testing.T) {
	tests := []struct {
		name    string
		records []schema.SessionRecord
	}{
		{"no records", nil},
		{"single night", steadyNights(1, nil)},
		{"only future nights", []schema.SessionRecord{{Date: testRef.AddDate(0, 0, 3), DurationHours: 7}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights := GenerateInsights(tt.records, testRef)
			assert.NotNil(t, insights)
			assert.Empty(t, insights)
		})
	}
}

func TestGenerateInsightsLowCompliance(t *testing.T) {
	records := steadyNights(30, func(_ int, r *schema.SessionRecord) { r.DurationHours = 2 })

	insights := GenerateInsights(records, testRef)

	require.NotEmpty(t, insights)
	top := insights[0]
	assert.Equal(t, "Compliance Below Insurance Target", top.Title)
	assert.Equal(t, schema.ComplianceMetric, top.Metric)
	assert.Equal(t, schema.HighLevel, top.ClinicalRelevance)
	assert.Equal(t, 109, top.Priority)
	assert.Equal(t, 21.0, top.DataPoints["nights_needed"])

	in, ok := findInsight(insights, "Sleep Duration Focus")
	require.True(t, ok)
	assert.Equal(t, schema.UsageMetric, in.Metric)
}

func TestGenerateInsightsCustomRule(t *testing.T) {
	records := steadyNights(30, func(_ int, r *schema.SessionRecord) { r.DurationHours = 5 })

	_, lenient := findInsight(GenerateInsightsWithRule(records, testRef, algo.DefaultComplianceRule), "Compliance Below Insurance Target")
	assert.False(t, lenient)

	strict := algo.ComplianceRule{MinHours: 6, TargetPercent: 70}
	_, flagged := findInsight(GenerateInsightsWithRule(records, testRef, strict), "Compliance Below Insurance Target")
	assert.True(t, flagged)
}

func TestGenerateInsightsCentralApnea(t *testing.T) {
	records := steadyNights(30, func(_ int, r *schema.SessionRecord) {
		r.Events = schema.EventCounts{Central: 10, Obstructive: 2, Hypopnea: 1}
	})

	in, ok := findInsight(GenerateInsights(records, testRef), "Elevated Central Apneas")
	require.True(t, ok)
	assert.Equal(t, schema.CentralRatioMetric, in.Metric)
	assert.Equal(t, schema.AlertInsight, in.Kind)
	assert.Equal(t, schema.Stable, in.TrendDirection)
	assert.InDelta(t, 10.0/13.0, in.DataPoints["central_ratio"], 1e-9)
}

func TestGenerateInsightsPressureInstability(t *testing.T) {
	records := steadyNights(30, func(daysAgo int, r *schema.SessionRecord) {
		if daysAgo%2 == 0 {
			r.Pressure = 6
		} else {
			r.Pressure = 14
		}
	})

	in, ok := findInsight(GenerateInsights(records, testRef), "Pressure Fluctuation")
	require.True(t, ok)
	assert.Equal(t, schema.PressureMetric, in.Metric)
	assert.Equal(t, schema.Undetermined, in.TrendDirection)
	assert.Greater(t, in.DataPoints["pressure_mad"], pressureSpreadThreshold)
}

func TestAHISpike(t *testing.T) {
	records := steadyNights(30, func(daysAgo int, r *schema.SessionRecord) {
		r.AHI = 3
		if daysAgo == 1 {
			r.AHI = 20
		}
	})
	valid, _ := agg.Sanitize(records)
	ic := newInsightContext(valid, testRef, algo.DefaultComplianceRule)

	in, ok := ic.ahiSpike()
	require.True(t, ok)
	assert.Equal(t, "Sudden AHI Increase", in.Title)
	assert.Equal(t, 20.0, in.DataPoints["peak_ahi"])
	assert.Equal(t, 3.0, in.DataPoints["calm_ahi"])
	assert.Equal(t, schema.Worsening, in.TrendDirection)

	// The AHI trend outranks the spike for the same metric.
	insights := GenerateInsights(records, testRef)
	top, ok := findInsight(insights, "AHI Trending Higher")
	require.True(t, ok)
	assert.Equal(t, schema.AHIMetric, top.Metric)
}

func TestAHISpikeNeedsCalmNight(t *testing.T) {
	records := steadyNights(30, func(daysAgo int, r *schema.SessionRecord) {
		r.AHI = 18
	})
	valid, _ := agg.Sanitize(records)
	ic := newInsightContext(valid, testRef, algo.DefaultComplianceRule)

	_, ok := ic.ahiSpike()
	assert.False(t, ok)

	in, ok := findInsight(GenerateInsights(records, testRef), "Elevated AHI")
	require.True(t, ok)
	assert.Equal(t, schema.HighLevel, in.ClinicalRelevance)
}

func TestGenerateInsightsImprovement(t *testing.T) {
	records := steadyNights(30, func(daysAgo int, r *schema.SessionRecord) {
		r.AHI = 4
		if daysAgo < schema.RecentWindowDays {
			r.AHI = 1
		}
	})

	in, ok := findInsight(GenerateInsights(records, testRef), "AHI Improving")
	require.True(t, ok)
	assert.Equal(t, schema.ImprovementInsight, in.Kind)
	assert.Equal(t, schema.Improving, in.TrendDirection)
	assert.False(t, in.Actionable)
}

func TestGenerateInsightsInvariants(t *testing.T) {
	records := steadyNights(45, func(daysAgo int, r *schema.SessionRecord) {
		r.DurationHours = float64(3 + daysAgo%5)
		r.AHI = float64(daysAgo%20) + 0.5
		r.LeakRate = float64(10 + daysAgo%40)
		r.Pressure = float64(6 + daysAgo%9)
	})

	insights := GenerateInsights(records, testRef)
	require.NotEmpty(t, insights)

	seen := map[schema.Metric]bool{}
	achievements := 0
	for i, in := range insights {
		assert.False(t, seen[in.Metric], "duplicate metric %s", in.Metric)
		seen[in.Metric] = true
		if i > 0 {
			assert.GreaterOrEqual(t, insights[i-1].Priority, in.Priority)
		}
		if in.Kind == schema.AchievementInsight {
			achievements++
		}
		assert.NotEmpty(t, in.Title)
		assert.NotEmpty(t, in.Message)
	}
	assert.LessOrEqual(t, achievements, 1)

	assert.Equal(t, insights, GenerateInsights(records, testRef))
}
