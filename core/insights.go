package core

import (
	"fmt"
	"math"
	"time"

	"github.com/sleepdata/cpapinsight/core/agg"
	"github.com/sleepdata/cpapinsight/core/algo"
	"github.com/sleepdata/cpapinsight/schema"
)

// Absolute rule thresholds.
const (
	centralRatioThreshold   = 0.5  // share of events that are central
	pressureSpreadThreshold = 2.0  // cmH2O mean absolute deviation
	elevatedAHIThreshold    = 15.0 // events/hr, moderate apnea
	spikeAHIThreshold       = 15.0
	spikeCalmAHI            = 8.0
	spikeLookbackNights     = 5
	shortSleepHours         = 6.0
	lowEffectiveness        = 50.0
	excellentCompliance     = 90.0
	excellentEffectiveness  = 85.0
	excellentAHI            = 5.0
)

// Base priorities per rule. Priority multiplies these by 10 and adds up to 9
// for the size of the deviation.
const (
	basePriorityCompliance      = 10
	basePriorityAHIWorsening    = 9
	basePriorityLeakTrend       = 8
	basePriorityAHISpike        = 8
	basePriorityHighLeak        = 7
	basePriorityCentral         = 7
	basePriorityComplianceTrend = 7
	basePriorityShortSleep      = 6
	basePriorityUsageTrend      = 6
	basePriorityEffective       = 6
	basePriorityPressure        = 5
	basePriorityImprovement     = 4
	basePriorityAchievement     = 3
)

var (
	ahiActions = []string{
		"Check the mask seal, since leaks reduce effective pressure",
		"Note sleep position, as back sleeping can raise events",
		"Ask your provider whether a pressure adjustment is needed",
		"Limit alcohol and sedatives close to bedtime",
	}
	leakActions = []string{
		"Readjust headgear straps for a snug but comfortable fit",
		"Inspect the cushion or pillows for wear and replace if needed",
		"Ask your provider about a different mask size or style",
		"Clean mask components daily to keep the seal effective",
	}
	usageActions = []string{
		"Start therapy 30 minutes earlier at bedtime",
		"Keep a consistent sleep schedule, including weekends",
		"Review ramp and humidity comfort settings",
	}
	complianceActions = []string{
		"Put the mask on every night, including naps",
		"Review mask comfort and fit if it wakes you up",
		"Ask your equipment provider about comfort features such as ramp and humidification",
		"Contact your sleep specialist if usage barriers persist",
	}
	centralActions = []string{
		"Share this pattern with your sleep physician",
		"Ask whether a change in pressure or device mode is appropriate",
	}
	pressureActions = []string{
		"Review the auto-titration pressure range with your provider",
		"Check for mask leaks that can drive pressure swings",
	}
)

type metricText struct {
	name string
	unit string
}

var metricTexts = map[schema.Metric]metricText{
	schema.AHIMetric:        {"AHI", " events/hr"},
	schema.LeakMetric:       {"leak rate", " L/min"},
	schema.UsageMetric:      {"nightly usage", " hours"},
	schema.ComplianceMetric: {"compliance", "%"},
}

type trendRule struct {
	worseKind    schema.InsightKind
	worseTitle   string
	worseBase    int
	improveTitle string
	relevance    schema.Level
	actions      []string
}

var trendRules = map[schema.Metric]trendRule{
	schema.AHIMetric: {
		worseKind:    schema.AlertInsight,
		worseTitle:   "AHI Trending Higher",
		worseBase:    basePriorityAHIWorsening,
		improveTitle: "AHI Improving",
		relevance:    schema.HighLevel,
		actions:      ahiActions,
	},
	schema.LeakMetric: {
		worseKind:    schema.ConcernInsight,
		worseTitle:   "Leak Rate Worsening",
		worseBase:    basePriorityLeakTrend,
		improveTitle: "Mask Seal Improving",
		relevance:    schema.MediumLevel,
		actions:      leakActions,
	},
	schema.UsageMetric: {
		worseKind:    schema.ConcernInsight,
		worseTitle:   "Nightly Usage Declining",
		worseBase:    basePriorityUsageTrend,
		improveTitle: "Nightly Usage Increasing",
		relevance:    schema.MediumLevel,
		actions:      usageActions,
	},
	schema.ComplianceMetric: {
		worseKind:    schema.ConcernInsight,
		worseTitle:   "Compliance Slipping",
		worseBase:    basePriorityComplianceTrend,
		improveTitle: "Compliance Improving",
		relevance:    schema.HighLevel,
		actions:      complianceActions,
	},
}

// insightContext holds the windows and scores every rule reads from.
type insightContext struct {
	ref      time.Time
	records  []schema.SessionRecord
	recent   map[schema.Metric]schema.MetricWindow
	baseline map[schema.Metric]schema.MetricWindow

	compliance30  schema.ComplianceResult
	streak        int
	rule          algo.ComplianceRule
	trends        map[schema.Metric]schema.MetricTrend
	effectiveness schema.CompositeScore
}

// GenerateInsights compares the last 7 nights against the 30 night baseline,
// applies the absolute rules and returns the ranked insights, one per metric.
// A history of one night or less yields no insights.
func GenerateInsights(records []schema.SessionRecord, ref time.Time) []schema.Insight {
	return GenerateInsightsWithRule(records, ref, algo.DefaultComplianceRule)
}

// GenerateInsightsWithRule is GenerateInsights under an explicit compliance rule.
func GenerateInsightsWithRule(records []schema.SessionRecord, ref time.Time, rule algo.ComplianceRule) []schema.Insight {
	valid, _ := agg.Sanitize(records)
	if len(agg.Select(valid, schema.BaselineWindowDays, ref)) <= 1 {
		return []schema.Insight{}
	}
	ic := newInsightContext(valid, ref, rule)
	return algo.RankInsights(ic.evaluate(), 0)
}

func newInsightContext(valid []schema.SessionRecord, ref time.Time, rule algo.ComplianceRule) *insightContext {
	ic := &insightContext{
		ref:      ref,
		records:  valid,
		rule:     rule,
		recent:   make(map[schema.Metric]schema.MetricWindow),
		baseline: make(map[schema.Metric]schema.MetricWindow),
		trends:   make(map[schema.Metric]schema.MetricTrend),
	}
	for _, m := range []schema.Metric{schema.AHIMetric, schema.LeakMetric, schema.UsageMetric, schema.PressureMetric} {
		ic.recent[m] = agg.Aggregate(valid, m, schema.RecentWindowDays, ref)
		ic.baseline[m] = agg.Aggregate(valid, m, schema.BaselineWindowDays, ref)
	}

	log := algo.NewNightLog(valid)
	compliance7 := log.Evaluate(ref, schema.RecentWindowDays, rule)
	ic.compliance30 = log.Evaluate(ref, schema.BaselineWindowDays, rule)
	ic.streak = ic.compliance30.CurrentStreak

	ic.trends = computeTrends(ic.recent, ic.baseline, compliance7, ic.compliance30)
	ic.trends[schema.CentralRatioMetric] = ic.centralRatioTrend()

	ic.effectiveness = algo.ScoreTherapyEffectiveness(algo.TherapyInputsFrom(
		ic.baseline[schema.AHIMetric], ic.baseline[schema.LeakMetric], ic.baseline[schema.UsageMetric], ic.compliance30))
	return ic
}

// computeTrends detects the direction of every tracked metric.
func computeTrends(recent, baseline map[schema.Metric]schema.MetricWindow, compliance7, compliance30 schema.ComplianceResult) map[schema.Metric]schema.MetricTrend {
	trends := make(map[schema.Metric]schema.MetricTrend, len(schema.TrackedMetrics))
	for _, m := range schema.TrackedMetrics {
		if m == schema.ComplianceMetric {
			trends[m] = algo.DetectTrend(m, compliance7.Percentage, compliance30.Percentage, compliance7.NightsWithData, compliance30.NightsWithData)
			continue
		}
		r, b := recent[m], baseline[m]
		trends[m] = algo.DetectTrend(m, r.Mean, b.Mean, r.RecordCount, b.RecordCount)
	}
	return trends
}

func centralRatio(e schema.EventCounts) (float64, bool) {
	total := e.Total()
	if total <= 0 {
		return 0, false
	}
	return e.Central / total, true
}

func (ic *insightContext) centralRatioTrend() schema.MetricTrend {
	r7, ok7 := centralRatio(agg.EventTotals(ic.records, schema.RecentWindowDays, ic.ref))
	r30, ok30 := centralRatio(agg.EventTotals(ic.records, schema.BaselineWindowDays, ic.ref))
	n7, n30 := 0, 0
	if ok7 {
		n7 = ic.recent[schema.AHIMetric].RecordCount
	}
	if ok30 {
		n30 = ic.baseline[schema.AHIMetric].RecordCount
	}
	return algo.DetectTrend(schema.CentralRatioMetric, r7, r30, n7, n30)
}

func (ic *insightContext) direction(m schema.Metric) schema.TrendDirection {
	if tr, ok := ic.trends[m]; ok {
		return tr.Direction
	}
	return schema.Undetermined
}

func (ic *insightContext) newInsight(kind schema.InsightKind, metric schema.Metric, relevance schema.Level, base int, deviation float64, nights, windowDays int) schema.Insight {
	return schema.Insight{
		Kind:              kind,
		Metric:            metric,
		Confidence:        algo.ConfidenceFor(nights, windowDays),
		ClinicalRelevance: relevance,
		Priority:          algo.Priority(base, deviation),
		TrendDirection:    ic.direction(metric),
		Actionable:        kind != schema.AchievementInsight && kind != schema.ImprovementInsight,
		DataPoints:        map[string]float64{},
	}
}

// evaluate runs every rule and returns the unranked insights.
func (ic *insightContext) evaluate() []schema.Insight {
	var out []schema.Insight
	out = append(out, ic.trendInsights()...)
	for _, rule := range []func() (schema.Insight, bool){
		ic.highLeak,
		ic.lowCompliance,
		ic.centralApnea,
		ic.pressureInstability,
		ic.elevatedAHI,
		ic.ahiSpike,
		ic.shortSleep,
		ic.lowEffectiveness,
	} {
		if in, ok := rule(); ok {
			out = append(out, in)
		}
	}
	if in, ok := ic.excellentControl(out); ok {
		out = append(out, in)
	}
	return out
}

func (ic *insightContext) trendInsights() []schema.Insight {
	var out []schema.Insight
	for _, m := range schema.TrackedMetrics {
		tr := ic.trends[m]
		rule := trendRules[m]
		text := metricTexts[m]

		var in schema.Insight
		switch tr.Direction {
		case schema.Worsening:
			in = ic.newInsight(rule.worseKind, m, rule.relevance, rule.worseBase, tr.RelativeChange, tr.RecentCount, schema.RecentWindowDays)
			in.Title = rule.worseTitle
			in.RecommendedActions = rule.actions
		case schema.Improving:
			in = ic.newInsight(schema.ImprovementInsight, m, rule.relevance, basePriorityImprovement, tr.RelativeChange, tr.RecentCount, schema.RecentWindowDays)
			in.Title = rule.improveTitle
		default:
			continue
		}
		in.Message = fmt.Sprintf("Your %s over the last %d nights averaged %.1f%s, %+.0f%% compared with the %d-night average of %.1f%s.",
			text.name, schema.RecentWindowDays, tr.Recent, text.unit, tr.RelativeChange*100, schema.BaselineWindowDays, tr.Baseline, text.unit)
		in.DataPoints["recent"] = tr.Recent
		in.DataPoints["baseline"] = tr.Baseline
		in.DataPoints["relative_change"] = tr.RelativeChange
		out = append(out, in)
	}
	return out
}

func (ic *insightContext) highLeak() (schema.Insight, bool) {
	w := ic.recent[schema.LeakMetric]
	if w.RecordCount == 0 || w.Mean <= algo.HighLeakThreshold {
		return schema.Insight{}, false
	}
	in := ic.newInsight(schema.RecommendationInsight, schema.LeakMetric, schema.MediumLevel, basePriorityHighLeak,
		(w.Mean-algo.HighLeakThreshold)/algo.HighLeakThreshold, w.RecordCount, schema.RecentWindowDays)
	in.Title = "Mask Fit Optimization"
	in.Message = fmt.Sprintf("Average leak over the last %d nights is %.1f L/min, above the %.0f L/min seal target. Better mask fit can improve comfort and therapy effectiveness.",
		schema.RecentWindowDays, w.Mean, algo.HighLeakThreshold)
	in.RecommendedActions = leakActions
	in.DataPoints["avg_leak"] = w.Mean
	in.DataPoints["threshold"] = algo.HighLeakThreshold
	return in, true
}

func (ic *insightContext) lowCompliance() (schema.Insight, bool) {
	c := ic.compliance30
	if c.Undetermined || c.Percentage >= ic.rule.TargetPercent {
		return schema.Insight{}, false
	}
	in := ic.newInsight(schema.ConcernInsight, schema.ComplianceMetric, schema.HighLevel, basePriorityCompliance,
		(ic.rule.TargetPercent-c.Percentage)/ic.rule.TargetPercent, c.NightsWithData, schema.BaselineWindowDays)
	in.Title = "Compliance Below Insurance Target"
	in.Message = fmt.Sprintf("%d of the last %d nights met the %.0f hour minimum (%.0f%%). %d more compliant nights are needed to reach %.0f%%.",
		c.CompliantNights, c.TotalNights, ic.rule.MinHours, c.Percentage, c.NightsNeeded, ic.rule.TargetPercent)
	in.RecommendedActions = complianceActions
	in.DataPoints["compliance_pct"] = c.Percentage
	in.DataPoints["compliant_nights"] = float64(c.CompliantNights)
	in.DataPoints["nights_needed"] = float64(c.NightsNeeded)
	return in, true
}

func (ic *insightContext) centralApnea() (schema.Insight, bool) {
	events := agg.EventTotals(ic.records, schema.RecentWindowDays, ic.ref)
	ratio, ok := centralRatio(events)
	if !ok || ratio <= centralRatioThreshold {
		return schema.Insight{}, false
	}
	nights := ic.recent[schema.AHIMetric].RecordCount
	in := ic.newInsight(schema.AlertInsight, schema.CentralRatioMetric, schema.HighLevel, basePriorityCentral,
		(ratio-centralRatioThreshold)/centralRatioThreshold, nights, schema.RecentWindowDays)
	in.Title = "Elevated Central Apneas"
	in.Message = fmt.Sprintf("Central apneas made up %.0f%% of respiratory events over the last %d nights. A high central share may need clinical review.",
		ratio*100, schema.RecentWindowDays)
	in.RecommendedActions = centralActions
	in.DataPoints["central_ratio"] = ratio
	in.DataPoints["central_events"] = events.Central
	in.DataPoints["total_events"] = events.Total()
	return in, true
}

func (ic *insightContext) pressureInstability() (schema.Insight, bool) {
	w := ic.recent[schema.PressureMetric]
	if w.RecordCount < 2 || w.Variance <= pressureSpreadThreshold {
		return schema.Insight{}, false
	}
	in := ic.newInsight(schema.RecommendationInsight, schema.PressureMetric, schema.MediumLevel, basePriorityPressure,
		(w.Variance-pressureSpreadThreshold)/pressureSpreadThreshold, w.RecordCount, schema.RecentWindowDays)
	in.Title = "Pressure Fluctuation"
	in.Message = fmt.Sprintf("Average pressure varied by %.1f cmH2O night to night over the last %d nights (range %.1f to %.1f).",
		w.Variance, schema.RecentWindowDays, w.Min, w.Max)
	in.RecommendedActions = pressureActions
	in.DataPoints["pressure_mad"] = w.Variance
	in.DataPoints["pressure_avg"] = w.Mean
	return in, true
}

func (ic *insightContext) elevatedAHI() (schema.Insight, bool) {
	w := ic.recent[schema.AHIMetric]
	if w.RecordCount == 0 || w.Mean < elevatedAHIThreshold {
		return schema.Insight{}, false
	}
	in := ic.newInsight(schema.AlertInsight, schema.AHIMetric, schema.HighLevel, basePriorityAHIWorsening,
		(w.Mean-elevatedAHIThreshold)/elevatedAHIThreshold, w.RecordCount, schema.RecentWindowDays)
	in.Title = "Elevated AHI"
	in.Message = fmt.Sprintf("AHI averaged %.1f events/hr over the last %d nights, in the moderate range or above.",
		w.Mean, schema.RecentWindowDays)
	in.RecommendedActions = ahiActions
	in.DataPoints["avg_ahi"] = w.Mean
	return in, true
}

// ahiSpike looks for a night in the last few with AHI above the spike level
// that follows a calm night earlier in the recent window.
func (ic *insightContext) ahiSpike() (schema.Insight, bool) {
	nights := agg.Select(ic.records, schema.RecentWindowDays, ic.ref)
	peak, calm := 0.0, math.Inf(1)
	found := false
	for i, r := range nights {
		if schema.DaysBetween(r.Date, ic.ref) >= spikeLookbackNights || r.AHI <= spikeAHIThreshold {
			continue
		}
		for _, earlier := range nights[:i] {
			if earlier.AHI < spikeCalmAHI {
				found = true
				peak = math.Max(peak, r.AHI)
				calm = math.Min(calm, earlier.AHI)
				break
			}
		}
	}
	if !found {
		return schema.Insight{}, false
	}
	in := ic.newInsight(schema.AlertInsight, schema.AHIMetric, schema.HighLevel, basePriorityAHISpike,
		(peak-spikeAHIThreshold)/spikeAHIThreshold, len(nights), schema.RecentWindowDays)
	in.Title = "Sudden AHI Increase"
	in.Message = fmt.Sprintf("AHI reached %.1f events/hr in the last %d nights after recently being as low as %.1f.",
		peak, spikeLookbackNights, calm)
	in.RecommendedActions = ahiActions
	in.DataPoints["peak_ahi"] = peak
	in.DataPoints["calm_ahi"] = calm
	return in, true
}

func (ic *insightContext) shortSleep() (schema.Insight, bool) {
	w := ic.recent[schema.UsageMetric]
	if w.RecordCount == 0 || w.Mean >= shortSleepHours {
		return schema.Insight{}, false
	}
	in := ic.newInsight(schema.RecommendationInsight, schema.UsageMetric, schema.MediumLevel, basePriorityShortSleep,
		(shortSleepHours-w.Mean)/shortSleepHours, w.RecordCount, schema.RecentWindowDays)
	in.Title = "Sleep Duration Focus"
	in.Message = fmt.Sprintf("Therapy averaged %.1f hours per night over the last %d nights. Seven or more hours gives the most benefit.",
		w.Mean, schema.RecentWindowDays)
	in.RecommendedActions = usageActions
	in.DataPoints["avg_hours"] = w.Mean
	return in, true
}

func (ic *insightContext) lowEffectiveness() (schema.Insight, bool) {
	s := ic.effectiveness
	if !s.Sufficient || s.Overall >= lowEffectiveness {
		return schema.Insight{}, false
	}
	in := ic.newInsight(schema.ConcernInsight, schema.EffectivenessMetric, schema.HighLevel, basePriorityEffective,
		(lowEffectiveness-s.Overall)/lowEffectiveness, s.SampleSize, schema.BaselineWindowDays)
	in.Title = "Therapy Effectiveness Needs Attention"
	in.Message = fmt.Sprintf("The therapy effectiveness score over the last %d nights is %.0f out of 100.",
		schema.BaselineWindowDays, s.Overall)
	in.RecommendedActions = s.Recommendations
	for k, v := range s.Components {
		in.DataPoints[string(k)] = v
	}
	in.DataPoints["overall"] = s.Overall
	return in, true
}

// excellentControl is the single achievement, emitted only when nothing else
// raised a concern.
func (ic *insightContext) excellentControl(fired []schema.Insight) (schema.Insight, bool) {
	for _, in := range fired {
		if in.Actionable {
			return schema.Insight{}, false
		}
	}
	ahi, leak := ic.baseline[schema.AHIMetric], ic.baseline[schema.LeakMetric]
	if ahi.RecordCount == 0 || ahi.Mean >= excellentAHI || leak.Mean >= algo.HighLeakThreshold ||
		ic.compliance30.Percentage < excellentCompliance || ic.effectiveness.Overall < excellentEffectiveness {
		return schema.Insight{}, false
	}

	in := ic.newInsight(schema.AchievementInsight, schema.OverallMetric, schema.LowLevel, basePriorityAchievement,
		0, ahi.RecordCount, schema.BaselineWindowDays)
	in.Title = "Excellent Therapy Control"
	in.Message = fmt.Sprintf("AHI averaged %.1f events/hr with %.0f%% compliance over the last %d nights.",
		ahi.Mean, ic.compliance30.Percentage, schema.BaselineWindowDays)
	if ic.streak >= schema.RecentWindowDays {
		in.Message += fmt.Sprintf(" You are on a %d night streak.", ic.streak)
	}
	in.DataPoints["avg_ahi"] = ahi.Mean
	in.DataPoints["compliance_pct"] = ic.compliance30.Percentage
	in.DataPoints["effectiveness"] = ic.effectiveness.Overall
	in.DataPoints["current_streak"] = float64(ic.streak)
	in.DataPoints["longest_streak"] = float64(ic.compliance30.LongestStreak)
	return in, true
}
