package cmd

import (
	"fmt"
	"os"

	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/internal/importer"
	"github.com/sleepdata/cpapinsight/internal/outwriter"
	"github.com/sleepdata/cpapinsight/internal/sessionstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// importCmd loads an export file into the store.
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a session export (csv, json or parquet) into the store",
	Long: `Read nightly sessions from a device export and store them under --profile.

A stored night is replaced when the same date is imported again. Invalid
records (missing date, negative or non-finite values) are skipped, and when a
file holds several sessions for one night the longest is kept.

Examples:
  # Import a CSV export for the default profile
  cpapinsight import sessions.csv

  # Import a JSON export for another patient into PostgreSQL
  cpapinsight import export.json --profile bob --store-backend postgresql \
    --store-db-connect "host=localhost dbname=cpap user=cpap"`,
	Args:    cobra.ExactArgs(1),
	PreRunE: storeSetup,
	Run: func(_ *cobra.Command, args []string) {
		if err := requireStore(); err != nil {
			contract.LogFatal("Cannot import sessions", err)
		}
		records, err := importer.ReadFile(args[0])
		if err != nil {
			contract.LogFatal("Cannot read session export", err)
		}
		n, err := store.UpsertSessions(rootCtx, cfg.Profile, records)
		if err != nil {
			contract.LogFatal("Cannot import sessions", err)
		}
		fmt.Printf("Imported %d of %d sessions for profile %q.\n", n, len(records), cfg.Profile)
	},
}

// runsCmd lists the recorded analysis runs.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the recorded analysis runs of a profile",
	Long: `Show the most recent analysis runs stored for --profile, newest first.

Every report and scores command run against the store records the reference
date, the number of nights analyzed, the configuration and the composite scores.
Use --detail to include the configuration of each run.

Examples:
  cpapinsight runs --limit 20
  cpapinsight runs --detail --output json`,
	PreRunE: storeSetup,
	Run: func(_ *cobra.Command, _ []string) {
		runs, err := store.ListRuns(rootCtx, cfg.Profile, cfg.ResultLimit)
		if err != nil {
			contract.LogFatal("Cannot list analysis runs", err)
		}
		if err := outwriter.PrintRuns(runs, cfg); err != nil {
			contract.LogFatal("Cannot print analysis runs", err)
		}
	},
}

// storeCmd focused on session store management.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the session store and its run history",
	Long: `Manage the database holding imported sessions and the analysis run history.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show store statistics
  export  - Export data to Parquet for analytics
  clear   - Remove all stored data
  migrate - Run database schema migrations

Examples:
  # Check store status
  cpapinsight store status

  # Export for analysis in pandas/DuckDB
  cpapinsight store export --output-file therapy`,
}

// storeStatusCmd shows store status.
var storeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display session store statistics and connection details",
	Long: `Show the backend, the number of stored sessions and runs, the range of
stored nights and the size of every table.

Examples:
  cpapinsight store status
  cpapinsight store status --store-backend mysql --store-db-connect "user:pass@tcp(localhost:3306)/cpap"`,
	PreRunE: storeSetup,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := store.GetStatus(rootCtx)
		if err != nil {
			contract.LogFatal("Failed to get store status", err)
		}
		sessionstore.PrintStoreStatus(os.Stdout, status)
	},
}

// storeClearCmd clears the store.
var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored sessions and analysis runs",
	Long: `Delete every stored session, analysis run and run score.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  # Export before clearing
  cpapinsight store export --output-file backup
  cpapinsight store clear`,
	PreRunE: storeSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := requireStore(); err != nil {
			contract.LogFatal("Failed to clear store", err)
		}
		if err := store.Clear(rootCtx); err != nil {
			contract.LogFatal("Failed to clear store", err)
		}
		fmt.Println("Session store cleared successfully.")
	},
}

// storeExportCmd exports stored data to Parquet files.
var storeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored sessions and runs to Parquet for BI tools and analytics",
	Long: `Export the sessions, analysis runs and run scores of --profile to Parquet.

Writes three files next to the --output-file prefix:
  <prefix>.sessions.parquet
  <prefix>.analysis_runs.parquet
  <prefix>.run_scores.parquet

Requires: --output-file parameter

Examples:
  cpapinsight store export --output-file therapy
  duckdb -c "SELECT date, ahi FROM read_parquet('therapy.sessions.parquet') ORDER BY date"`,
	PreRunE: storeSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := sessionstore.ExportParquet(rootCtx, store, cfg.Profile, cfg.OutputFile, os.Stdout); err != nil {
			contract.LogFatal("Failed to export store data", err)
		}
	},
}

// storeMigrateCmd runs database migrations for the session store.
var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the session store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  cpapinsight store migrate

  # Migrate to specific version
  cpapinsight store migrate --target-version 2

  # Rollback everything
  cpapinsight store migrate --target-version 0`,
	// Migrations run on the raw database, so the store is not opened here.
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return loadAndValidate()
	},
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := sessionstore.MigrateStore(cfg.StoreBackend, cfg.StoreDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
