// Package agg computes trailing-window statistics over nightly session records.
package agg

import (
	"math"
	"sort"
	"time"

	"github.com/sleepdata/cpapinsight/schema"
)

// AllTime selects every record up to the reference date.
const AllTime = -1

// Selector extracts a numeric value from a session record.
type Selector func(schema.SessionRecord) float64

var selectors = map[schema.Metric]Selector{
	schema.AHIMetric:         func(r schema.SessionRecord) float64 { return r.AHI },
	schema.LeakMetric:        func(r schema.SessionRecord) float64 { return r.LeakRate },
	schema.Leak95Metric:      func(r schema.SessionRecord) float64 { return r.Leak95 },
	schema.UsageMetric:       func(r schema.SessionRecord) float64 { return r.DurationHours },
	schema.PressureMetric:    func(r schema.SessionRecord) float64 { return r.Pressure },
	schema.CentralMetric:     func(r schema.SessionRecord) float64 { return r.Events.Central },
	schema.ObstructiveMetric: func(r schema.SessionRecord) float64 { return r.Events.Obstructive },
	schema.HypopneaMetric:    func(r schema.SessionRecord) float64 { return r.Events.Hypopnea },
}

// SelectorFor returns the built-in selector for a per-night metric.
func SelectorFor(m schema.Metric) (Selector, bool) {
	sel, ok := selectors[m]
	return sel, ok
}

// Window is a span of calendar days ending on a reference date.
type Window struct {
	From time.Time
	To   time.Time
	Days int
}

// NewWindow returns the window of windowDays calendar days ending on ref's date.
// A negative windowDays leaves the window without a lower bound.
func NewWindow(windowDays int, ref time.Time) Window {
	to := schema.Day(ref)
	if windowDays < 0 {
		return Window{To: to, Days: AllTime}
	}
	return Window{From: to.AddDate(0, 0, 1-windowDays), To: to, Days: windowDays}
}

// Unbounded reports whether the window has no lower bound.
func (w Window) Unbounded() bool {
	return w.Days < 0
}

// Contains reports whether the calendar date of d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	day := schema.Day(d)
	if day.After(w.To) {
		return false
	}
	return w.Unbounded() || !day.Before(w.From)
}

// Sanitize partitions records into valid ones and skipped ones with a reason.
func Sanitize(records []schema.SessionRecord) ([]schema.SessionRecord, []schema.SkippedRecord) {
	valid := make([]schema.SessionRecord, 0, len(records))
	var skipped []schema.SkippedRecord
	for i, r := range records {
		if reason := r.Validate(); reason != "" {
			skipped = append(skipped, schema.SkippedRecord{Index: i, Date: r.Date, Reason: reason})
			continue
		}
		valid = append(valid, r)
	}
	return valid, skipped
}

// Select returns the valid records inside the window, one per calendar day,
// sorted by date. When a day holds several records the longest night wins and
// the first one seen breaks ties.
func Select(records []schema.SessionRecord, windowDays int, ref time.Time) []schema.SessionRecord {
	w := NewWindow(windowDays, ref)
	var selected []schema.SessionRecord
	byDay := make(map[time.Time]int)
	for _, r := range records {
		if r.Validate() != "" || !w.Contains(r.Date) {
			continue
		}
		day := schema.Day(r.Date)
		if i, ok := byDay[day]; ok {
			if r.DurationHours > selected[i].DurationHours {
				selected[i] = r
			}
			continue
		}
		byDay[day] = len(selected)
		selected = append(selected, r)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Date.Before(selected[j].Date)
	})
	return selected
}

// Aggregate summarizes a built-in metric over the trailing window.
// Unknown metrics yield an empty window.
func Aggregate(records []schema.SessionRecord, metric schema.Metric, windowDays int, ref time.Time) schema.MetricWindow {
	sel, ok := SelectorFor(metric)
	if !ok {
		w := NewWindow(windowDays, ref)
		return schema.MetricWindow{Metric: metric, WindowDays: windowDays, From: w.From, To: w.To}
	}
	return AggregateWith(records, metric, sel, windowDays, ref)
}

// AggregateWith summarizes sel over the trailing window. The mean of an empty
// window is 0, so callers check RecordCount first.
func AggregateWith(records []schema.SessionRecord, metric schema.Metric, sel Selector, windowDays int, ref time.Time) schema.MetricWindow {
	w := NewWindow(windowDays, ref)
	selected := Select(records, windowDays, ref)

	out := schema.MetricWindow{
		Metric:      metric,
		WindowDays:  windowDays,
		From:        w.From,
		To:          w.To,
		RecordCount: len(selected),
	}
	if len(selected) == 0 {
		return out
	}
	if w.Unbounded() {
		out.From = schema.Day(selected[0].Date)
	}

	values := make([]float64, len(selected))
	for i, r := range selected {
		values[i] = sel(r)
	}
	out.Mean, out.Variance, out.Min, out.Max = Summarize(values)
	return out
}

// Summarize returns the mean, mean absolute deviation, min and max of values.
// Non-finite values are ignored.
func Summarize(values []float64) (mean, mad, lo, hi float64) {
	var sum float64
	n := 0
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if n == 0 {
		return 0, 0, 0, 0
	}
	mean = sum / float64(n)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		mad += math.Abs(v - mean)
	}
	mad /= float64(n)
	return mean, mad, lo, hi
}

// EventTotals sums the event counts of the valid records inside the window.
func EventTotals(records []schema.SessionRecord, windowDays int, ref time.Time) schema.EventCounts {
	var total schema.EventCounts
	for _, r := range Select(records, windowDays, ref) {
		total.Central += r.Events.Central
		total.Obstructive += r.Events.Obstructive
		total.Hypopnea += r.Events.Hypopnea
	}
	return total
}
