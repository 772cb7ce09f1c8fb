// Package cmd defines the command-line interface for cpapinsight.
package cmd

import (
	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(complianceCmd)
	rootCmd.AddCommand(scoresCmd)
	rootCmd.AddCommand(windowCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(timeseriesCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the store subcommands to the parent store command
	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeExportCmd)
	storeCmd.AddCommand(storeMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("input", "", "Session export (csv, json or parquet) to analyze instead of the store")
	rootCmd.PersistentFlags().String("ref", "", "Reference date the windows end on: YYYY-MM-DD, today, yesterday or 'N days ago'")
	rootCmd.PersistentFlags().StringP("profile", "p", contract.DefaultProfile, "Patient profile the sessions belong to")
	rootCmd.PersistentFlags().Bool("detail", false, "Print per-window statistics and extra columns")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of insights or runs to display")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().Int("window", contract.DefaultWindowDays, "Window length in nights")
	rootCmd.PersistentFlags().Float64("compliance-min-hours", contract.DefaultComplianceMinHours, "Minimum usage in hours for a night to count as compliant")
	rootCmd.PersistentFlags().Float64("compliance-target", contract.DefaultComplianceTarget, "Percentage of compliant nights required")
	rootCmd.PersistentFlags().String("store-backend", string(schema.SQLiteBackend), "Session store backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("store-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("pprof", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of insightsCmd to Viper
	insightsCmd.Flags().Bool("explain", false, "Print the recommended actions of each insight")
	if err := viper.BindPFlags(insightsCmd.Flags()); err != nil {
		contract.LogFatal("Error binding insights flags", err)
	}

	// Bind all flags of compareCmd to Viper
	compareCmd.Flags().String("base-ref", "", "Reference date of the BEFORE window")
	compareCmd.Flags().String("target-ref", "", "Reference date of the AFTER window (defaults to --ref)")
	if err := viper.BindPFlags(compareCmd.Flags()); err != nil {
		contract.LogFatal("Error binding compare flags", err)
	}

	// Bind all flags of timeseriesCmd to Viper
	timeseriesCmd.Flags().String("interval", "7", "Spacing between points (e.g., 7, '2 weeks', '1 month')")
	timeseriesCmd.Flags().Int("points", contract.DefaultPoints, "Number of points")
	if err := viper.BindPFlags(timeseriesCmd.Flags()); err != nil {
		contract.LogFatal("Error binding timeseries flags", err)
	}

	// Bind all flags of checkCmd to Viper
	checkCmd.Flags().Float64("effectiveness-threshold", contract.DefaultEffectivenessThreshold, "Minimum therapy effectiveness score")
	if err := viper.BindPFlags(checkCmd.Flags()); err != nil {
		contract.LogFatal("Error binding check flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("listen", contract.DefaultListenAddr, "Address the HTTP API listens on")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of storeMigrateCmd to Viper
	storeMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(storeMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding store migrate flags", err)
	}
}
