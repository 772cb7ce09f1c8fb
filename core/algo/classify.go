// Package algo holds the pure scoring, classification and ranking algorithms.
package algo

import (
	"errors"
	"fmt"
	"math"

	"github.com/sleepdata/cpapinsight/schema"
)

// ErrUnknownMetric is returned when a metric has no classification table.
var ErrUnknownMetric = errors.New("unknown metric")

// HighLeakThreshold is the average leak in L/min above which the mask seal is considered poor.
const HighLeakThreshold = 24.0

type bandTable struct {
	thresholds schema.Thresholds
	labels     [4]string // ordered excellent, good, warning, critical
}

var bandTables = map[schema.Metric]bandTable{
	schema.AHIMetric: {
		thresholds: schema.Thresholds{Excellent: 5, Good: 15, Warning: 30},
		labels:     [4]string{"normal", "mild", "moderate", "severe"},
	},
	schema.LeakMetric: {
		thresholds: schema.Thresholds{Excellent: 20, Good: HighLeakThreshold, Warning: 50},
		labels:     [4]string{"excellent", "good", "elevated", "high"},
	},
	schema.ComplianceMetric: {
		thresholds: schema.Thresholds{Excellent: 90, Good: 70, Warning: 50, HigherIsBetter: true},
		labels:     [4]string{"excellent", "good", "fair", "poor"},
	},
	schema.UsageMetric: {
		thresholds: schema.Thresholds{Excellent: 7, Good: 6, Warning: 4, HigherIsBetter: true},
		labels:     [4]string{"excellent", "good", "fair", "insufficient"},
	},
}

// ClassifiedMetrics lists the metrics Classify accepts, in display order.
var ClassifiedMetrics = []schema.Metric{schema.AHIMetric, schema.LeakMetric, schema.ComplianceMetric, schema.UsageMetric}

// ThresholdsFor returns the band cut points for a metric.
func ThresholdsFor(metric schema.Metric) (schema.Thresholds, bool) {
	table, ok := bandTables[metric]
	return table.thresholds, ok
}

// Classify maps a metric value onto its band. Boundary values fall into the
// better band. Non-finite or negative values take the worst band and are
// flagged Unknown.
func Classify(metric schema.Metric, value float64) (schema.ClassificationResult, error) {
	res := schema.ClassificationResult{Metric: metric, Value: value}
	table, ok := bandTables[metric]
	if !ok {
		res.Band = schema.CriticalBand
		res.Unknown = true
		return res, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	res.Thresholds = table.thresholds

	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		res.Band = schema.CriticalBand
		res.Label = table.labels[3]
		res.Unknown = true
		return res, nil
	}

	res.Band = bandFor(table.thresholds, value)
	res.Label = table.labels[schema.BandRank(res.Band)]
	return res, nil
}

func bandFor(t schema.Thresholds, v float64) schema.Band {
	if t.HigherIsBetter {
		switch {
		case v >= t.Excellent:
			return schema.ExcellentBand
		case v >= t.Good:
			return schema.GoodBand
		case v >= t.Warning:
			return schema.WarningBand
		default:
			return schema.CriticalBand
		}
	}
	switch {
	case v < t.Excellent:
		return schema.ExcellentBand
	case v < t.Good:
		return schema.GoodBand
	case v < t.Warning:
		return schema.WarningBand
	default:
		return schema.CriticalBand
	}
}
