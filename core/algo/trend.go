package algo

import (
	"math"

	"github.com/sleepdata/cpapinsight/schema"
)

// DefaultDeadBand is the relative change treated as noise when a metric has no explicit band.
const DefaultDeadBand = 0.05

// TrendDeadBands holds the relative change below which a metric is considered stable.
var TrendDeadBands = map[schema.Metric]float64{
	schema.AHIMetric:        0.20,
	schema.LeakMetric:       0.05,
	schema.UsageMetric:      0.05,
	schema.ComplianceMetric: 0.05,
}

// DeadBandFor returns the stable band for a metric.
func DeadBandFor(m schema.Metric) float64 {
	if band, ok := TrendDeadBands[m]; ok {
		return band
	}
	return DefaultDeadBand
}

// DetectTrend compares a recent mean against a baseline mean. The trend is
// undetermined when either side has no data or the baseline is zero.
func DetectTrend(metric schema.Metric, recent, baseline float64, recentCount, baselineCount int) schema.MetricTrend {
	trend := schema.MetricTrend{
		Metric:        metric,
		Recent:        recent,
		Baseline:      baseline,
		RecentCount:   recentCount,
		BaselineCount: baselineCount,
		Direction:     schema.Undetermined,
	}
	if recentCount == 0 || baselineCount == 0 || baseline == 0 {
		return trend
	}
	change := (recent - baseline) / baseline
	if math.IsNaN(change) || math.IsInf(change, 0) {
		return trend
	}

	trend.RelativeChange = change
	switch {
	case math.Abs(change) <= DeadBandFor(metric):
		trend.Direction = schema.Stable
	case (change < 0) == schema.LowerIsBetter(metric):
		trend.Direction = schema.Improving
	default:
		trend.Direction = schema.Worsening
	}
	return trend
}
