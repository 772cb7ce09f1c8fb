package cmd

import (
	"errors"

	"github.com/sleepdata/cpapinsight/core"
	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/spf13/cobra"
)

// compareCmd compares two windows of therapy.
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare therapy metrics and scores between two reference dates.",
	Long: `Compare the window ending at --base-ref with the window ending at --target-ref.

Ideal for:
- Equipment changes - did the new mask reduce leak?
- Pressure adjustments - did AHI drop after the titration?
- Habit changes - did usage improve after a routine change?

Each metric and composite score is shown with before/after values, the delta
and whether it improved, declined or stayed the same.

Examples:
  # Compare last month with this month
  cpapinsight compare --base-ref "30 days ago"

  # Compare two fixed dates over 14-night windows
  cpapinsight compare --base-ref 2024-01-31 --target-ref 2024-02-29 --window 14`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if !cfg.CompareMode {
			contract.LogFatal("Cannot run comparison", errors.New("--base-ref must be provided"))
		}
		runAnalysis("comparison", core.ExecuteCompare)
	},
}
