package schema

import "time"

// MetricTrend compares a metric's recent window against its baseline.
type MetricTrend struct {
	Metric         Metric         `json:"metric"`
	Recent         float64        `json:"recent"`
	Baseline       float64        `json:"baseline"`
	RecentCount    int            `json:"recent_count"`
	BaselineCount  int            `json:"baseline_count"`
	RelativeChange float64        `json:"relative_change"`
	Direction      TrendDirection `json:"direction"`
}

// Report is the full analysis of a record collection at a reference date.
type Report struct {
	ReferenceDate   time.Time                       `json:"reference_date"`
	RecordCount     int                             `json:"record_count"`
	Skipped         []SkippedRecord                 `json:"skipped,omitempty"`
	Windows         map[Metric]map[int]MetricWindow `json:"windows"`
	Classifications map[Metric]ClassificationResult `json:"classifications"`
	Compliance      map[int]ComplianceResult        `json:"compliance"`
	Trends          map[Metric]MetricTrend          `json:"trends"`
	Scores          map[ScoreType]CompositeScore    `json:"scores"`
	Insights        []Insight                       `json:"insights"`
}

// ComparisonDetails holds the before/after values of one compared key.
type ComparisonDetails struct {
	Key    string  `json:"key"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Delta  float64 `json:"delta"`
	Status Status  `json:"status"`
}

// ComparisonSummary aggregates the comparison outcome.
type ComparisonSummary struct {
	Improved  int `json:"improved"`
	Declined  int `json:"declined"`
	Unchanged int `json:"unchanged"`
}

// ComparisonResult compares two analysis periods.
type ComparisonResult struct {
	BaseRef    time.Time           `json:"base_ref"`
	TargetRef  time.Time           `json:"target_ref"`
	WindowDays int                 `json:"window_days"`
	Metrics    []ComparisonDetails `json:"metrics"`
	Scores     []ComparisonDetails `json:"scores"`
	Summary    ComparisonSummary   `json:"summary"`
}

// TimeseriesPoint is one set of composite scores at a reference date.
type TimeseriesPoint struct {
	ReferenceDate time.Time             `json:"reference_date"`
	RecordCount   int                   `json:"record_count"`
	Scores        map[ScoreType]float64 `json:"scores"`
}

// TimeseriesResult is a series of composite scores ordered oldest first.
type TimeseriesResult struct {
	IntervalDays int               `json:"interval_days"`
	WindowDays   int               `json:"window_days"`
	Points       []TimeseriesPoint `json:"points"`
}

// CheckViolation describes one failed therapy gate.
type CheckViolation struct {
	Rule      string  `json:"rule"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

// CheckResult is the outcome of the therapy gate.
type CheckResult struct {
	ReferenceDate time.Time        `json:"reference_date"`
	Passed        bool             `json:"passed"`
	Compliance    ComplianceResult `json:"compliance"`
	Effectiveness CompositeScore   `json:"effectiveness"`
	Violations    []CheckViolation `json:"violations,omitempty"`
}
