package core

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sleepdata/cpapinsight/core/agg"
	"github.com/sleepdata/cpapinsight/core/algo"
	"github.com/sleepdata/cpapinsight/schema"
)

// comparedMetrics are the per-night metrics compared between two periods.
var comparedMetrics = []schema.Metric{schema.AHIMetric, schema.LeakMetric, schema.UsageMetric, schema.PressureMetric}

// ComparePeriods summarizes the window ending at baseRef and the window ending
// at targetRef and reports how each metric and score moved between them.
func ComparePeriods(records []schema.SessionRecord, baseRef, targetRef time.Time, windowDays int, rule algo.ComplianceRule) schema.ComparisonResult {
	valid, _ := agg.Sanitize(records)
	log := algo.NewNightLog(valid)

	var metrics []schema.ComparisonDetails
	for _, m := range comparedMetrics {
		before := agg.Aggregate(valid, m, windowDays, baseRef)
		after := agg.Aggregate(valid, m, windowDays, targetRef)
		present := before.RecordCount > 0 && after.RecordCount > 0
		metrics = append(metrics, compareValues(string(m), before.Mean, after.Mean, present, schema.LowerIsBetter(m)))
	}

	beforeC := log.Evaluate(baseRef, windowDays, rule)
	afterC := log.Evaluate(targetRef, windowDays, rule)
	metrics = append(metrics, compareValues(string(schema.ComplianceMetric), beforeC.Percentage, afterC.Percentage,
		!beforeC.Undetermined && !afterC.Undetermined, false))

	beforeS := ScoreRecords(valid, baseRef, windowDays, rule)
	afterS := ScoreRecords(valid, targetRef, windowDays, rule)
	var scores []schema.ComparisonDetails
	for _, st := range schema.AllScoreTypes {
		b, a := beforeS[st], afterS[st]
		scores = append(scores, compareValues(string(st), b.Overall, a.Overall, b.Sufficient && a.Sufficient, false))
	}

	sortComparisonResults(metrics)
	sortComparisonResults(scores)

	var summary schema.ComparisonSummary
	for _, d := range append(append([]schema.ComparisonDetails{}, metrics...), scores...) {
		switch d.Status {
		case schema.ImprovedStatus:
			summary.Improved++
		case schema.DeclinedStatus:
			summary.Declined++
		case schema.UnchangedStatus:
			summary.Unchanged++
		}
	}

	return schema.ComparisonResult{
		BaseRef:    schema.Day(baseRef),
		TargetRef:  schema.Day(targetRef),
		WindowDays: windowDays,
		Metrics:    metrics,
		Scores:     scores,
		Summary:    summary,
	}
}

func compareValues(key string, before, after float64, present, lowerIsBetter bool) schema.ComparisonDetails {
	d := schema.ComparisonDetails{Key: key, Before: before, After: after, Status: schema.UnknownStatus}
	if !present {
		return d
	}
	d.Delta = after - before
	d.Status = determineStatus(d.Delta, lowerIsBetter)
	return d
}

// determineStatus classifies a delta by the direction that counts as better.
func determineStatus(delta float64, lowerIsBetter bool) schema.Status {
	switch {
	case math.IsNaN(delta):
		return schema.UnknownStatus
	case math.Abs(delta) < 1e-9:
		return schema.UnchangedStatus
	case (delta < 0) == lowerIsBetter:
		return schema.ImprovedStatus
	default:
		return schema.DeclinedStatus
	}
}

// sortComparisonResults sorts comparison results by absolute delta, then delta sign, then key.
func sortComparisonResults(results []schema.ComparisonDetails) {
	sort.SliceStable(results, func(i, j int) bool {
		a := results[i]
		b := results[j]

		absA := math.Abs(a.Delta)
		absB := math.Abs(b.Delta)
		if absA != absB {
			return absA > absB
		}

		// Positive before negative
		if a.Delta != b.Delta {
			return a.Delta > b.Delta
		}

		return strings.Compare(a.Key, b.Key) < 0
	})
}
