package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/internal/importer"
	"github.com/sleepdata/cpapinsight/internal/sessionstore"
	"github.com/sleepdata/cpapinsight/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// profiling holds the pprof configuration.
var profiling = &contract.PprofConfig{}

// source serves sessions to the analysis commands. It is the store unless --input is set.
var source contract.SessionSource

// store is the session store opened by sharedSetup or storeSetup.
var store contract.SessionStore

// startProfiling starts CPU profiling if enabled.
func startProfiling() error {
	if !profiling.Enabled {
		return nil
	}

	cpuFile, err := os.Create(profiling.Prefix + ".cpu.prof")
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		return fmt.Errorf("could not start CPU profiling: %w", err)
	}

	// Memory profiling will be captured at the end
	_, err = fmt.Fprintf(os.Stderr, "Profiling enabled. CPU profile: %s.cpu.prof, Memory profile: %s.mem.prof\n", profiling.Prefix, profiling.Prefix)
	return err
}

// stopProfiling stops profiling and writes memory profile.
func stopProfiling() error {
	if !profiling.Enabled {
		return nil
	}

	pprof.StopCPUProfile()

	memFile, err := os.Create(profiling.Prefix + ".mem.prof")
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = memFile.Close() }()

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}

	_, err = fmt.Fprintf(os.Stderr, "Profiling complete. Use 'go tool pprof %s.cpu.prof' to analyze.\n", profiling.Prefix)
	return err
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "cpapinsight",
	Short:              "Analyze nightly CPAP therapy data for compliance, effectiveness and trends.",
	Long:               `cpapinsight turns nightly CPAP session exports into compliance checks, clinical classifications, composite scores and prioritized insights.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("CPAPINSIGHT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("limit", contract.DefaultResultLimit)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("profile", contract.DefaultProfile)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("ref", "today")
	viper.SetDefault("window", contract.DefaultWindowDays)
	viper.SetDefault("compliance-min-hours", contract.DefaultComplianceMinHours)
	viper.SetDefault("compliance-target", contract.DefaultComplianceTarget)
	viper.SetDefault("effectiveness-threshold", contract.DefaultEffectivenessThreshold)
	viper.SetDefault("store-backend", schema.SQLiteBackend)
	viper.SetDefault("store-db-connect", "")
	viper.SetDefault("listen", contract.DefaultListenAddr)
	viper.SetDefault("color", "yes")
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".cpapinsight") // Name of config file (without extension)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// loadAndValidate merges file, env and flags into the raw input and validates it into cfg.
func loadAndValidate() error {
	if err := loadConfigFile(); err != nil {
		return err
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return contract.ProcessAndValidate(cfg, input, time.Now())
}

// openStore opens the configured session store, migrating it to the latest schema.
func openStore() error {
	s, err := sessionstore.NewSessionStore(cfg.StoreBackend, cfg.StoreDBConnect)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	store = s
	return nil
}

// sharedSetup validates the config and selects the session source of the analysis commands.
func sharedSetup(_ context.Context, _ *cobra.Command, _ []string) error {
	contract.ProcessPprofConfig(profiling, viper.GetString("pprof"))
	if err := startProfiling(); err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}

	if err := loadAndValidate(); err != nil {
		return err
	}

	// An export file is analyzed directly and never touches the store.
	if cfg.InputPath != "" {
		source = importer.NewFileSource(cfg.InputPath)
		return nil
	}
	if err := openStore(); err != nil {
		return err
	}
	source = store
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// storeSetup validates the config and always opens the store.
func storeSetup(_ *cobra.Command, _ []string) error {
	if err := loadAndValidate(); err != nil {
		return err
	}
	return openStore()
}

// requireStore fails when the store is disabled.
func requireStore() error {
	if cfg.StoreBackend == schema.NoneBackend {
		return sessionstore.ErrStoreDisabled
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Shutdown closes the store and stops profiling if enabled.
func Shutdown() error {
	if store != nil {
		if err := store.Close(); err != nil {
			contract.LogWarn("failed to close session store", err)
		}
	}
	return stopProfiling()
}
