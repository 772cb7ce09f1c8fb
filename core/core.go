// Package core has core logic for loading sessions, analysis and scoring.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sleepdata/cpapinsight/core/agg"
	"github.com/sleepdata/cpapinsight/core/algo"
	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/internal/outwriter"
	"github.com/sleepdata/cpapinsight/schema"
)

// ExecutorFunc defines the function signature for executing different analysis modes.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, source contract.SessionSource) error

// windowMetrics are the per-night metrics summarized by the window command.
var windowMetrics = []schema.Metric{
	schema.AHIMetric,
	schema.LeakMetric,
	schema.Leak95Metric,
	schema.UsageMetric,
	schema.PressureMetric,
	schema.CentralMetric,
	schema.ObstructiveMetric,
	schema.HypopneaMetric,
}

// RuleFromConfig builds the compliance rule configured for the analysis.
func RuleFromConfig(cfg *contract.Config) algo.ComplianceRule {
	return algo.ComplianceRule{MinHours: cfg.ComplianceMinHours, TargetPercent: cfg.ComplianceTarget}
}

// warnSkipped reports a record left out of the analysis.
var warnSkipped = func(profile string, s schema.SkippedRecord) {
	what := fmt.Sprintf("skipping record %d of profile %q", s.Index, profile)
	if !s.Date.IsZero() {
		what = fmt.Sprintf("skipping record %d (%s) of profile %q", s.Index, s.Date.Format(schema.DateFormat), profile)
	}
	contract.LogWarn(what, errors.New(s.Reason))
}

// loadRecords fetches every session up to ref and splits off invalid ones.
// Every skipped record is logged, whatever the caller's header settings.
func loadRecords(ctx context.Context, cfg *contract.Config, source contract.SessionSource, ref time.Time) ([]schema.SessionRecord, []schema.SkippedRecord, error) {
	if source == nil {
		return nil, nil, errors.New("no session source configured")
	}
	records, err := source.LoadSessions(ctx, cfg.Profile, time.Time{}, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	valid, skipped := agg.Sanitize(records)
	for _, s := range skipped {
		warnSkipped(cfg.Profile, s)
	}
	if len(valid) == 0 {
		return nil, skipped, contract.ErrNoRecords
	}
	return valid, skipped, nil
}

// printAnalysisHeader announces an analysis on stderr for table output.
func printAnalysisHeader(ctx context.Context, cfg *contract.Config, what string, ref time.Time) {
	if shouldSuppressHeader(ctx) || cfg.Output != schema.TextOut {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "🔎 %s for profile %q as of %s\n", what, cfg.Profile, ref.Format(schema.DateFormat))
}

// recordRun writes a snapshot of the scores when the source keeps a run history.
func recordRun(ctx context.Context, cfg *contract.Config, source contract.SessionSource, ref time.Time, recordCount int, scores map[schema.ScoreType]schema.CompositeScore) {
	if shouldSkipRunRecord(ctx) {
		return
	}
	recorder, ok := source.(contract.RunRecorder)
	if !ok {
		return
	}
	params := map[string]any{
		"window_days":          cfg.WindowDays,
		"compliance_min_hours": cfg.ComplianceMinHours,
		"compliance_target":    cfg.ComplianceTarget,
		"limit":                cfg.ResultLimit,
	}
	if _, err := recorder.RecordRun(ctx, cfg.Profile, ref, recordCount, params, scores); err != nil {
		contract.LogWarn("failed to record analysis run", err)
	}
}

// GetReportResults runs the full analysis at the configured reference date.
func GetReportResults(ctx context.Context, cfg *contract.Config, source contract.SessionSource) (schema.Report, time.Duration, error) {
	start := time.Now()
	printAnalysisHeader(ctx, cfg, "Building therapy report", cfg.ReferenceDate)
	records, skipped, err := loadRecords(ctx, cfg, source, cfg.ReferenceDate)
	if err != nil {
		return schema.Report{}, 0, err
	}
	report := Analyze(records, cfg.ReferenceDate, Options{Rule: RuleFromConfig(cfg), Limit: cfg.ResultLimit})
	report.Skipped = skipped
	recordRun(ctx, cfg, source, cfg.ReferenceDate, report.RecordCount, report.Scores)
	return report, time.Since(start), nil
}

// GetInsightsResults returns the ranked insights capped at the result limit.
func GetInsightsResults(ctx context.Context, cfg *contract.Config, source contract.SessionSource) ([]schema.Insight, time.Duration, error) {
	start := time.Now()
	printAnalysisHeader(ctx, cfg, "Generating insights", cfg.ReferenceDate)
	records, _, err := loadRecords(ctx, cfg, source, cfg.ReferenceDate)
	if err != nil {
		return nil, 0, err
	}
	insights := algo.RankInsights(GenerateInsightsWithRule(records, cfg.ReferenceDate, RuleFromConfig(cfg)), cfg.ResultLimit)
	return insights, time.Since(start), nil
}

// GetComplianceResults evaluates the compliance rule over the configured window.
func GetComplianceResults(ctx context.Context, cfg *contract.Config, source contract.SessionSource) (schema.ComplianceResult, time.Duration, error) {
	start := time.Now()
	printAnalysisHeader(ctx, cfg, "Evaluating compliance", cfg.ReferenceDate)
	records, _, err := loadRecords(ctx, cfg, source, cfg.ReferenceDate)
	if err != nil {
		return schema.ComplianceResult{}, 0, err
	}
	result := algo.NewNightLog(records).Evaluate(cfg.ReferenceDate, cfg.WindowDays, RuleFromConfig(cfg))
	return result, time.Since(start), nil
}

// GetScoresResults computes every composite score over the configured window.
func GetScoresResults(ctx context.Context, cfg *contract.Config, source contract.SessionSource) (map[schema.ScoreType]schema.CompositeScore, time.Duration, error) {
	start := time.Now()
	printAnalysisHeader(ctx, cfg, "Scoring therapy", cfg.ReferenceDate)
	records, _, err := loadRecords(ctx, cfg, source, cfg.ReferenceDate)
	if err != nil {
		return nil, 0, err
	}
	scores := ScoreRecords(records, cfg.ReferenceDate, cfg.WindowDays, RuleFromConfig(cfg))
	recordRun(ctx, cfg, source, cfg.ReferenceDate, len(agg.Select(records, cfg.WindowDays, cfg.ReferenceDate)), scores)
	return scores, time.Since(start), nil
}

// GetWindowResults summarizes every per-night metric over the configured window.
func GetWindowResults(ctx context.Context, cfg *contract.Config, source contract.SessionSource) ([]schema.MetricWindow, time.Duration, error) {
	start := time.Now()
	printAnalysisHeader(ctx, cfg, "Summarizing window", cfg.ReferenceDate)
	records, _, err := loadRecords(ctx, cfg, source, cfg.ReferenceDate)
	if err != nil {
		return nil, 0, err
	}
	windows := make([]schema.MetricWindow, len(windowMetrics))
	for i, m := range windowMetrics {
		windows[i] = agg.Aggregate(records, m, cfg.WindowDays, cfg.ReferenceDate)
	}
	return windows, time.Since(start), nil
}

// GetCompareResults compares the window ending at the base ref with the one ending at the target ref.
func GetCompareResults(ctx context.Context, cfg *contract.Config, source contract.SessionSource) (schema.ComparisonResult, time.Duration, error) {
	start := time.Now()
	if !cfg.CompareMode {
		return schema.ComparisonResult{}, 0, errors.New("--base-ref is required for comparison")
	}
	printAnalysisHeader(ctx, cfg, fmt.Sprintf("Comparing %s with", cfg.BaseRef.Format(schema.DateFormat)), cfg.TargetRef)
	records, _, err := loadRecords(ctx, cfg, source, cfg.TargetRef)
	if err != nil {
		return schema.ComparisonResult{}, 0, err
	}
	result := ComparePeriods(records, cfg.BaseRef, cfg.TargetRef, cfg.WindowDays, RuleFromConfig(cfg))
	return result, time.Since(start), nil
}

// GetTimeseriesResults computes the composite scores at evenly spaced reference dates.
func GetTimeseriesResults(ctx context.Context, cfg *contract.Config, source contract.SessionSource) (schema.TimeseriesResult, time.Duration, error) {
	start := time.Now()
	if cfg.TimeseriesPoints < 1 {
		return schema.TimeseriesResult{}, 0, errors.New("--points must be at least 1")
	}
	printAnalysisHeader(ctx, cfg, "Building score timeseries", cfg.ReferenceDate)
	records, _, err := loadRecords(ctx, cfg, source, cfg.ReferenceDate)
	if err != nil {
		return schema.TimeseriesResult{}, 0, err
	}
	result, err := ScoreTimeseries(records, cfg.ReferenceDate, cfg.TimeseriesInterval, cfg.TimeseriesPoints, cfg.WindowDays, RuleFromConfig(cfg))
	if err != nil {
		return schema.TimeseriesResult{}, 0, err
	}
	return result, time.Since(start), nil
}

// GetCheckResults gates the therapy at the reference date. A profile without
// sessions is checked rather than rejected so that the gate fails.
func GetCheckResults(ctx context.Context, cfg *contract.Config, source contract.SessionSource) (schema.CheckResult, time.Duration, error) {
	start := time.Now()
	records, _, err := loadRecords(ctx, cfg, source, cfg.ReferenceDate)
	if err != nil && !errors.Is(err, contract.ErrNoRecords) {
		return schema.CheckResult{}, 0, err
	}
	result := CheckTherapy(records, cfg.ReferenceDate, RuleFromConfig(cfg), cfg.EffectivenessThreshold)
	return result, time.Since(start), nil
}

// ExecuteReport runs the full analysis and prints the report.
func ExecuteReport(ctx context.Context, cfg *contract.Config, source contract.SessionSource) error {
	report, duration, err := GetReportResults(ctx, cfg, source)
	if err != nil {
		return err
	}
	return outwriter.PrintReport(report, cfg, duration)
}

// ExecuteInsights prints the ranked insights.
func ExecuteInsights(ctx context.Context, cfg *contract.Config, source contract.SessionSource) error {
	insights, duration, err := GetInsightsResults(ctx, cfg, source)
	if err != nil {
		return err
	}
	return outwriter.PrintInsights(insights, cfg, duration)
}

// ExecuteCompliance prints the compliance evaluation.
func ExecuteCompliance(ctx context.Context, cfg *contract.Config, source contract.SessionSource) error {
	result, duration, err := GetComplianceResults(ctx, cfg, source)
	if err != nil {
		return err
	}
	return outwriter.PrintCompliance(result, cfg, duration)
}

// ExecuteScores prints the composite scores.
func ExecuteScores(ctx context.Context, cfg *contract.Config, source contract.SessionSource) error {
	scores, duration, err := GetScoresResults(ctx, cfg, source)
	if err != nil {
		return err
	}
	return outwriter.PrintScores(scores, cfg, duration)
}

// ExecuteWindow prints the window summaries.
func ExecuteWindow(ctx context.Context, cfg *contract.Config, source contract.SessionSource) error {
	windows, duration, err := GetWindowResults(ctx, cfg, source)
	if err != nil {
		return err
	}
	return outwriter.PrintWindows(windows, cfg, duration)
}

// ExecuteCompare prints the period comparison.
func ExecuteCompare(ctx context.Context, cfg *contract.Config, source contract.SessionSource) error {
	result, duration, err := GetCompareResults(ctx, cfg, source)
	if err != nil {
		return err
	}
	return outwriter.PrintComparisonResults(result, cfg, duration)
}

// ExecuteTimeseries prints the score timeseries.
func ExecuteTimeseries(ctx context.Context, cfg *contract.Config, source contract.SessionSource) error {
	result, duration, err := GetTimeseriesResults(ctx, cfg, source)
	if err != nil {
		return err
	}
	return outwriter.PrintTimeseriesResults(result, cfg, duration)
}

// ExecuteCheck runs the therapy gate for CI-style automation and exits with
// a non-zero code when any rule fails.
func ExecuteCheck(ctx context.Context, cfg *contract.Config, source contract.SessionSource) error {
	result, duration, err := GetCheckResults(ctx, cfg, source)
	if err != nil {
		return err
	}
	printCheckResult(os.Stdout, &result, RuleFromConfig(cfg), duration)
	if !result.Passed {
		fmt.Printf("%d violation(s) found\n", len(result.Violations))
		os.Exit(1)
	}
	return nil
}
