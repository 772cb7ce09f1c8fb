package core

import (
	"fmt"
	"io"
	"time"

	"github.com/sleepdata/cpapinsight/core/agg"
	"github.com/sleepdata/cpapinsight/core/algo"
	"github.com/sleepdata/cpapinsight/schema"
)

// DefaultEffectivenessThreshold is the lowest passing effectiveness score.
const DefaultEffectivenessThreshold = 50.0

// Check rule names.
const (
	complianceRuleName    = "compliance"
	effectivenessRuleName = "effectiveness"
)

// CheckTherapy gates the therapy on 30-night insurance compliance and on the
// effectiveness score over the same window. A window without any data fails
// both rules.
func CheckTherapy(records []schema.SessionRecord, ref time.Time, rule algo.ComplianceRule, effectivenessThreshold float64) schema.CheckResult {
	valid, _ := agg.Sanitize(records)
	compliance := algo.NewNightLog(valid).Evaluate(ref, schema.InsuranceWindowDays, rule)
	effectiveness := ScoreRecords(valid, ref, schema.InsuranceWindowDays, rule)[schema.EffectivenessScore]

	result := schema.CheckResult{
		ReferenceDate: schema.Day(ref),
		Compliance:    compliance,
		Effectiveness: effectiveness,
	}

	if !compliance.MeetsThreshold {
		result.Violations = append(result.Violations, schema.CheckViolation{
			Rule:      complianceRuleName,
			Value:     compliance.Percentage,
			Threshold: rule.TargetPercent,
			Message: fmt.Sprintf("%d of %d nights used at least %.1f hours, %d more needed",
				compliance.CompliantNights, compliance.TotalNights, rule.MinHours, compliance.NightsNeeded),
		})
	}
	if !effectiveness.Sufficient || effectiveness.Overall < effectivenessThreshold {
		msg := fmt.Sprintf("effectiveness score %.0f is %s", effectiveness.Overall, effectiveness.Label)
		if !effectiveness.Sufficient {
			msg = "no nights to score"
		}
		result.Violations = append(result.Violations, schema.CheckViolation{
			Rule:      effectivenessRuleName,
			Value:     effectiveness.Overall,
			Threshold: effectivenessThreshold,
			Message:   msg,
		})
	}
	result.Passed = len(result.Violations) == 0
	return result
}

// printCheckResult prints the check result in a concise format suitable for CI/CD.
func printCheckResult(w io.Writer, result *schema.CheckResult, rule algo.ComplianceRule, duration time.Duration) {
	printCheckHeader(w, result, rule, duration)

	if result.Passed {
		printCheckSuccess(w, result)
	} else {
		printCheckFailure(w, result)
	}
}

// printCheckHeader prints the common header information for check results.
func printCheckHeader(w io.Writer, result *schema.CheckResult, rule algo.ComplianceRule, duration time.Duration) {
	_, _ = fmt.Fprintln(w, "Therapy Check Results:")

	labels := []string{"Reference:", "Window:", "Rule:"}
	values := []any{
		result.ReferenceDate.Format(schema.DateFormat),
		fmt.Sprintf("%d nights", schema.InsuranceWindowDays),
		fmt.Sprintf(">= %.1f hours on %.0f%% of nights", rule.MinHours, rule.TargetPercent),
	}

	maxLabelLen := 0
	for _, label := range labels {
		maxLabelLen = max(maxLabelLen, len(label))
	}
	for i, label := range labels {
		_, _ = fmt.Fprintf(w, "  %-*s %v\n", maxLabelLen+1, label, values[i])
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Checked %d nights in %v\n\n", result.Compliance.NightsWithData, duration)
}

func printCheckSuccess(w io.Writer, result *schema.CheckResult) {
	_, _ = fmt.Fprintf(w, "✅ Therapy passed all checks\n\n")
	_, _ = fmt.Fprintln(w, "Values observed:")
	_, _ = fmt.Fprintf(w, "  compliance: %.1f%% (%d/%d nights, streak %d)\n",
		result.Compliance.Percentage, result.Compliance.CompliantNights, result.Compliance.TotalNights, result.Compliance.CurrentStreak)
	_, _ = fmt.Fprintf(w, "  effectiveness: %.0f (%s)\n", result.Effectiveness.Overall, result.Effectiveness.Label)
}

func printCheckFailure(w io.Writer, result *schema.CheckResult) {
	_, _ = fmt.Fprintf(w, "❌ Therapy check failed: %d violation(s) found\n\n", len(result.Violations))
	for _, v := range result.Violations {
		_, _ = fmt.Fprintf(w, "  - %s: %.1f < %.1f (%s)\n", v.Rule, v.Value, v.Threshold, v.Message)
	}
	_, _ = fmt.Fprintln(w)
}
