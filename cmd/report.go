package cmd

import (
	"fmt"
	"strconv"

	"github.com/sleepdata/cpapinsight/core"
	"github.com/sleepdata/cpapinsight/core/algo"
	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/internal/outwriter"
	"github.com/sleepdata/cpapinsight/schema"
	"github.com/spf13/cobra"
)

// runAnalysis executes an analysis against the selected session source.
func runAnalysis(what string, executeFunc core.ExecutorFunc) {
	if err := executeFunc(rootCtx, cfg, source); err != nil {
		contract.LogFatal("Cannot run "+what, err)
	}
}

// reportCmd runs the full therapy analysis.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the full therapy report: scores, classifications, compliance, trends and insights.",
	Long: `Run every analysis at the reference date and print a single report.

The report contains:
- Composite scores (therapy effectiveness, mask fit, sleep quality)
- Clinical classification of the 30-night AHI, leak, compliance and usage
- Insurance compliance over 7, 30 and 90 nights
- Recent (7 nights) versus baseline (30 nights) trends
- Ranked insights with recommended actions

Each run is recorded in the store's run history unless --input is used.

Examples:
  # Report for the default profile as of today
  cpapinsight report

  # Analyze an export file without touching the store
  cpapinsight report --input sessions.csv

  # Report as of a past date with window details
  cpapinsight report --ref 2024-03-01 --detail

  # Export the report as JSON
  cpapinsight report --output json --output-file report.json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runAnalysis("therapy report", core.ExecuteReport)
	},
}

// insightsCmd prints the ranked insights.
var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show prioritized insights about recent therapy.",
	Long: `Generate insights from the last 7 and 30 nights and rank them by priority.

Insights cover high leak, low compliance, central apneas, pressure instability,
elevated or spiking AHI, short sleep, low effectiveness and improving or
worsening trends. A single achievement is reported when nothing needs attention.

Examples:
  # Top 5 insights
  cpapinsight insights --limit 5

  # Include the recommended actions
  cpapinsight insights --explain`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runAnalysis("insight generation", core.ExecuteInsights)
	},
}

// scoresCmd prints the composite scores.
var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Show the therapy effectiveness, mask fit and sleep quality scores.",
	Long: `Compute the 0-100 composite scores over the window ending at the reference date.

Use --detail to print the component breakdown of each score.

Examples:
  cpapinsight scores
  cpapinsight scores --window 14 --detail`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runAnalysis("scoring", core.ExecuteScores)
	},
}

// windowCmd prints per-metric window summaries.
var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Summarize every nightly metric over a window.",
	Long: `Print count, mean, variance, minimum and maximum of each nightly metric
over the window ending at the reference date.

Examples:
  cpapinsight window --window 7
  cpapinsight window --ref "2 weeks ago" --output csv`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runAnalysis("window summary", core.ExecuteWindow)
	},
}

// classifyCmd classifies a single value without loading sessions.
var classifyCmd = &cobra.Command{
	Use:   "classify <metric> <value>",
	Short: "Classify a metric value into a clinical band.",
	Long: fmt.Sprintf(`Classify a single value as excellent, good, warning or critical.

Supported metrics: %v

Examples:
  cpapinsight classify ahi 3.2
  cpapinsight classify leak_rate 30`, algo.ClassifiedMetrics),
	Args: cobra.ExactArgs(2),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return loadAndValidate()
	},
	Run: func(_ *cobra.Command, args []string) {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			contract.LogFatal("Cannot classify value", fmt.Errorf("invalid value %q: %w", args[1], err))
		}
		result, err := algo.Classify(schema.Metric(args[0]), value)
		if err != nil {
			contract.LogFatal("Cannot classify value", err)
		}
		if err := outwriter.PrintClassification(result, cfg); err != nil {
			contract.LogFatal("Cannot print classification", err)
		}
	},
}
