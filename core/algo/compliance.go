package algo

import (
	"math"
	"time"

	"github.com/sleepdata/cpapinsight/core/agg"
	"github.com/sleepdata/cpapinsight/schema"
)

// ComplianceRule is the usage rule a night is judged against.
type ComplianceRule struct {
	MinHours      float64 // usage needed for a night to count
	TargetPercent float64 // share of nights needed to meet the rule
}

// DefaultComplianceRule is the common insurance rule: 4 hours on 70% of nights.
var DefaultComplianceRule = ComplianceRule{MinHours: 4.0, TargetPercent: 70.0}

// NightLog indexes nightly usage by calendar date so several windows can be
// evaluated from one pass over the records.
type NightLog struct {
	usage map[time.Time]float64
	first time.Time
}

// NewNightLog builds the index from the valid records. When a date appears
// more than once the longest usage wins.
func NewNightLog(records []schema.SessionRecord) *NightLog {
	l := &NightLog{usage: make(map[time.Time]float64, len(records))}
	for _, r := range records {
		if r.Validate() != "" {
			continue
		}
		day := schema.Day(r.Date)
		if hours, ok := l.usage[day]; !ok || r.DurationHours > hours {
			l.usage[day] = r.DurationHours
		}
		if l.first.IsZero() || day.Before(l.first) {
			l.first = day
		}
	}
	return l
}

// Usage returns the recorded usage hours for a date.
func (l *NightLog) Usage(day time.Time) (float64, bool) {
	hours, ok := l.usage[schema.Day(day)]
	return hours, ok
}

func (l *NightLog) compliant(day time.Time, rule ComplianceRule) bool {
	hours, ok := l.usage[day]
	return ok && hours >= rule.MinHours
}

// Streak counts consecutive compliant nights walking backward from ref.
// A missing night ends the streak.
func (l *NightLog) Streak(ref time.Time, rule ComplianceRule) int {
	streak := 0
	for day := schema.Day(ref); l.compliant(day, rule); day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// Evaluate applies the rule over the windowDays calendar nights ending on ref.
// Nights without a record count as non-compliant. For agg.AllTime the window
// starts at the earliest record.
func (l *NightLog) Evaluate(ref time.Time, windowDays int, rule ComplianceRule) schema.ComplianceResult {
	w := agg.NewWindow(windowDays, ref)
	res := schema.ComplianceResult{WindowDays: windowDays, From: w.From, To: w.To}
	if w.Unbounded() {
		res.From = l.first
		if l.first.IsZero() || l.first.After(w.To) {
			res.From = w.To.AddDate(0, 0, 1)
		}
	}

	run := 0
	for day := res.From; !day.After(res.To); day = day.AddDate(0, 0, 1) {
		res.TotalNights++
		if _, ok := l.usage[day]; ok {
			res.NightsWithData++
		}
		if l.compliant(day, rule) {
			res.CompliantNights++
			run++
			res.LongestStreak = max(res.LongestStreak, run)
		} else {
			run = 0
		}
	}
	res.CurrentStreak = l.Streak(ref, rule)

	if res.TotalNights == 0 {
		res.Undetermined = true
		return res
	}
	res.Percentage = float64(res.CompliantNights) * 100 / float64(res.TotalNights)
	res.MeetsThreshold = res.Percentage >= rule.TargetPercent
	res.RequiredNights = int(math.Ceil(rule.TargetPercent*float64(res.TotalNights)/100 - 1e-9))
	res.NightsNeeded = max(0, res.RequiredNights-res.CompliantNights)
	return res
}

// EvaluateCompliance applies the default rule over one window.
func EvaluateCompliance(records []schema.SessionRecord, ref time.Time, windowDays int) schema.ComplianceResult {
	return NewNightLog(records).Evaluate(ref, windowDays, DefaultComplianceRule)
}

// EvaluateInsuranceWindows evaluates the 30 and 90 night windows from a single index.
func EvaluateInsuranceWindows(records []schema.SessionRecord, ref time.Time, rule ComplianceRule) (thirty, ninety schema.ComplianceResult) {
	log := NewNightLog(records)
	thirty = log.Evaluate(ref, schema.InsuranceWindowDays, rule)
	ninety = log.Evaluate(ref, schema.ExtendedWindowDays, rule)
	return thirty, ninety
}
