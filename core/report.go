package core

import (
	"time"

	"github.com/sleepdata/cpapinsight/core/agg"
	"github.com/sleepdata/cpapinsight/core/algo"
	"github.com/sleepdata/cpapinsight/schema"
)

// DefaultInsightLimit caps the insights attached to a report.
const DefaultInsightLimit = 8

// reportWindows are the trailing windows summarized for each report metric.
var reportWindows = []int{schema.RecentWindowDays, schema.BaselineWindowDays, schema.ExtendedWindowDays}

// reportMetrics are the per-night metrics summarized in a report.
var reportMetrics = []schema.Metric{schema.AHIMetric, schema.LeakMetric, schema.UsageMetric, schema.PressureMetric}

// Options tunes an analysis.
type Options struct {
	Rule  algo.ComplianceRule
	Limit int // insight cap, zero for DefaultInsightLimit, negative for no cap
}

// DefaultOptions returns the insurance compliance rule and the default insight cap.
func DefaultOptions() Options {
	return Options{Rule: algo.DefaultComplianceRule, Limit: DefaultInsightLimit}
}

func (o Options) rule() algo.ComplianceRule {
	if o.Rule.MinHours <= 0 && o.Rule.TargetPercent <= 0 {
		return algo.DefaultComplianceRule
	}
	return o.Rule
}

func (o Options) limit() int {
	switch {
	case o.Limit == 0:
		return DefaultInsightLimit
	case o.Limit < 0:
		return 0
	default:
		return o.Limit
	}
}

// Analyze produces the full report for the records as of ref. Invalid records
// are left out of every statistic and listed in the report's skipped set.
func Analyze(records []schema.SessionRecord, ref time.Time, opts Options) schema.Report {
	valid, skipped := agg.Sanitize(records)
	rule := opts.rule()

	report := schema.Report{
		ReferenceDate:   schema.Day(ref),
		RecordCount:     len(valid),
		Skipped:         skipped,
		Windows:         make(map[schema.Metric]map[int]schema.MetricWindow, len(reportMetrics)),
		Classifications: make(map[schema.Metric]schema.ClassificationResult, len(algo.ClassifiedMetrics)),
		Compliance:      make(map[int]schema.ComplianceResult, 2),
	}

	for _, m := range reportMetrics {
		byWindow := make(map[int]schema.MetricWindow, len(reportWindows))
		for _, days := range reportWindows {
			byWindow[days] = agg.Aggregate(valid, m, days, ref)
		}
		report.Windows[m] = byWindow
	}

	thirty, ninety := algo.EvaluateInsuranceWindows(valid, ref, rule)
	report.Compliance[schema.InsuranceWindowDays] = thirty
	report.Compliance[schema.ExtendedWindowDays] = ninety

	baseline := func(m schema.Metric) schema.MetricWindow { return report.Windows[m][schema.BaselineWindowDays] }
	for _, m := range algo.ClassifiedMetrics {
		var value float64
		var present bool
		if m == schema.ComplianceMetric {
			value, present = thirty.Percentage, !thirty.Undetermined
		} else {
			w := baseline(m)
			value, present = w.Mean, w.RecordCount > 0
		}
		if !present {
			continue
		}
		res, err := algo.Classify(m, value)
		if err == nil {
			report.Classifications[m] = res
		}
	}

	log := algo.NewNightLog(valid)
	recentCompliance := log.Evaluate(ref, schema.RecentWindowDays, rule)
	recent := make(map[schema.Metric]schema.MetricWindow, len(reportMetrics))
	base := make(map[schema.Metric]schema.MetricWindow, len(reportMetrics))
	for _, m := range reportMetrics {
		recent[m] = report.Windows[m][schema.RecentWindowDays]
		base[m] = baseline(m)
	}
	report.Trends = computeTrends(recent, base, recentCompliance, thirty)

	report.Scores = scoreWindow(base, thirty)
	report.Insights = algo.RankInsights(GenerateInsightsWithRule(valid, ref, rule), opts.limit())
	return report
}

// scoreWindow computes every composite score from one set of window summaries.
func scoreWindow(windows map[schema.Metric]schema.MetricWindow, compliance schema.ComplianceResult) map[schema.ScoreType]schema.CompositeScore {
	in := algo.TherapyInputsFrom(windows[schema.AHIMetric], windows[schema.LeakMetric], windows[schema.UsageMetric], compliance)
	return map[schema.ScoreType]schema.CompositeScore{
		schema.EffectivenessScore: algo.ScoreTherapyEffectiveness(in),
		schema.MaskFitScore:       algo.ScoreMaskFit(algo.MaskFitInputsFrom(windows[schema.LeakMetric])),
		schema.SleepQualityScore:  algo.ScoreSleepQuality(in),
	}
}

// ScoreRecords computes every composite score over a trailing window of valid records.
func ScoreRecords(records []schema.SessionRecord, ref time.Time, windowDays int, rule algo.ComplianceRule) map[schema.ScoreType]schema.CompositeScore {
	valid, _ := agg.Sanitize(records)
	windows := make(map[schema.Metric]schema.MetricWindow, 3)
	for _, m := range []schema.Metric{schema.AHIMetric, schema.LeakMetric, schema.UsageMetric} {
		windows[m] = agg.Aggregate(valid, m, windowDays, ref)
	}
	compliance := algo.NewNightLog(valid).Evaluate(ref, windowDays, rule)
	return scoreWindow(windows, compliance)
}
