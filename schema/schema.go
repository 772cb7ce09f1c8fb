// Package schema holds the data model shared by the engine, the stores and the transports.
package schema

import (
	"math"
	"time"
)

// DateFormat is the canonical calendar date representation.
const DateFormat = "2006-01-02"

// EventCounts holds per-night respiratory event counts.
type EventCounts struct {
	Central     float64 `json:"central"`
	Obstructive float64 `json:"obstructive"`
	Hypopnea    float64 `json:"hypopnea"`
}

// Total returns the sum of all event counts.
func (e EventCounts) Total() float64 {
	return e.Central + e.Obstructive + e.Hypopnea
}

// SessionRecord is one night of CPAP therapy.
type SessionRecord struct {
	Date          time.Time   `json:"date"`
	DurationHours float64     `json:"duration_hours"`
	AHI           float64     `json:"ahi"`
	LeakRate      float64     `json:"leak_rate"`
	Pressure      float64     `json:"pressure"`
	Events        EventCounts `json:"events"`

	// Optional device detail, zero when the provider does not report it.
	Leak95      float64 `json:"leak_95,omitempty"`
	LeakMax     float64 `json:"leak_max,omitempty"`
	PressureMin float64 `json:"pressure_min,omitempty"`
	Pressure95  float64 `json:"pressure_95,omitempty"`
	PressureMax float64 `json:"pressure_max,omitempty"`
	MaskType    string  `json:"mask_type,omitempty"`
}

// Validate returns a non-empty reason when the record is malformed.
func (r SessionRecord) Validate() string {
	if r.Date.IsZero() {
		return "missing date"
	}
	checks := []struct {
		name  string
		value float64
	}{
		{"duration", r.DurationHours},
		{"ahi", r.AHI},
		{"leak rate", r.LeakRate},
		{"pressure", r.Pressure},
		{"central events", r.Events.Central},
		{"obstructive events", r.Events.Obstructive},
		{"hypopnea events", r.Events.Hypopnea},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return c.name + " is not a finite number"
		}
		if c.value < 0 {
			return c.name + " is negative"
		}
	}
	return ""
}

// Day normalizes a timestamp to its calendar date at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(Day(b).Sub(Day(a)).Hours() / 24))
}

// MetricWindow is the summary of one metric over a trailing window.
type MetricWindow struct {
	Metric      Metric    `json:"metric"`
	WindowDays  int       `json:"window_days"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	RecordCount int       `json:"record_count"`
	Mean        float64   `json:"mean"`
	Variance    float64   `json:"variance"` // mean absolute deviation
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
}

// SkippedRecord describes an input record excluded from analysis.
type SkippedRecord struct {
	Index  int       `json:"index"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// Thresholds are the band cut points that produced a classification.
type Thresholds struct {
	Excellent      float64 `json:"excellent"`
	Good           float64 `json:"good"`
	Warning        float64 `json:"warning"`
	HigherIsBetter bool    `json:"higher_is_better"`
}

// ClassificationResult is a metric value mapped onto a band.
type ClassificationResult struct {
	Metric     Metric     `json:"metric"`
	Value      float64    `json:"value"`
	Band       Band       `json:"band"`
	Label      string     `json:"label"`
	Unknown    bool       `json:"unknown"`
	Thresholds Thresholds `json:"thresholds"`
}

// ComplianceResult is the insurance usage evaluation over one window.
type ComplianceResult struct {
	WindowDays      int       `json:"window_days"`
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	CompliantNights int       `json:"compliant_nights"`
	TotalNights     int       `json:"total_nights"`
	NightsWithData  int       `json:"nights_with_data"`
	Percentage      float64   `json:"percentage"`
	MeetsThreshold  bool      `json:"meets_threshold"`
	CurrentStreak   int       `json:"current_streak"`
	LongestStreak   int       `json:"longest_streak"`
	RequiredNights  int       `json:"required_nights"`
	NightsNeeded    int       `json:"nights_needed"`
	Undetermined    bool      `json:"undetermined"`
}

// CompositeScore is a weighted 0-100 score with its component breakdown.
type CompositeScore struct {
	Type            ScoreType                `json:"type"`
	Overall         float64                  `json:"overall"`
	Components      map[BreakdownKey]float64 `json:"components"`
	Weights         map[BreakdownKey]float64 `json:"weights"`
	Label           string                   `json:"label"`
	SampleSize      int                      `json:"sample_size"`
	Sufficient      bool                     `json:"sufficient"`
	Recommendations []string                 `json:"recommendations,omitempty"`
}

// Insight is a ranked, human-readable finding about the therapy data.
type Insight struct {
	Kind               InsightKind        `json:"kind"`
	Metric             Metric             `json:"metric"`
	Title              string             `json:"title"`
	Message            string             `json:"message"`
	Confidence         Level              `json:"confidence"`
	ClinicalRelevance  Level              `json:"clinical_relevance"`
	Priority           int                `json:"priority"`
	RecommendedActions []string           `json:"recommended_actions,omitempty"`
	TrendDirection     TrendDirection     `json:"trend_direction"`
	Actionable         bool               `json:"actionable"`
	DataPoints         map[string]float64 `json:"data_points,omitempty"`
}
