package cmd

import (
	"github.com/sleepdata/cpapinsight/core"
	"github.com/spf13/cobra"
)

// complianceCmd evaluates insurance compliance.
var complianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Evaluate insurance compliance over a window.",
	Long: `Count the nights with at least --compliance-min-hours of usage in the window
ending at the reference date. Nights without a session count as non-compliant.

Shows the compliant percentage, whether the --compliance-target is met, the
current and longest compliant streaks, and how many more compliant nights are needed.

Examples:
  # Standard 30-night insurance check (4 hours on 70% of nights)
  cpapinsight compliance

  # Stricter personal goal over 90 nights
  cpapinsight compliance --window 90 --compliance-min-hours 6 --compliance-target 90`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runAnalysis("compliance evaluation", core.ExecuteCompliance)
	},
}

// checkCmd gates therapy for scripts and scheduled jobs.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Gate therapy on compliance and effectiveness (non-zero exit on violations)",
	Long: `Check the 30 nights ending at the reference date against the compliance rule
and the minimum therapy effectiveness score.

Exits with status 1 when any check fails, so it fits cron jobs and scripts that
alert a care team. A profile without sessions fails the check.

Examples:
  # Default gate: 70% of nights with 4+ hours and effectiveness of at least 50
  cpapinsight check

  # Stricter effectiveness gate for a specific patient
  cpapinsight check --profile alice --effectiveness-threshold 75`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runAnalysis("therapy check", core.ExecuteCheck)
	},
}
