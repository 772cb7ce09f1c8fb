package cmd

import (
	"github.com/sleepdata/cpapinsight/core"
	"github.com/spf13/cobra"
)

// timeseriesCmd tracks the composite scores over time.
var timeseriesCmd = &cobra.Command{
	Use:   "timeseries",
	Short: "Track how the composite scores change over time",
	Long: `Compute the composite scores at evenly spaced reference dates ending at --ref.

Each point scores the window of --window nights ending at its reference date,
helping you:
- See when therapy effectiveness started to slip
- Confirm that a new mask improved the mask fit score
- Follow sleep quality through a schedule change

Examples:
  # Weekly scores over the last 8 weeks
  cpapinsight timeseries --interval 7 --points 8

  # Monthly effectiveness over half a year with 14-night windows
  cpapinsight timeseries --interval "1 month" --points 6 --window 14`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runAnalysis("timeseries analysis", core.ExecuteTimeseries)
	},
}
