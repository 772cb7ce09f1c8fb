package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/sleepdata/cpapinsight/schema"
)

// Default values for configuration.
const (
	DefaultResultLimit            = 8
	MaxResultLimit                = 100
	DefaultPrecision              = 1
	DefaultProfile                = "default"
	DefaultWindowDays             = 30
	MaxWindowDays                 = 3650
	DefaultComplianceMinHours     = 4.0
	DefaultComplianceTarget       = 70.0
	DefaultEffectivenessThreshold = 50.0
	DefaultIntervalDays           = 7
	DefaultPoints                 = 8
	DefaultListenAddr             = "127.0.0.1:8080"
)

// Config holds the runtime configuration for the analysis.
// This struct is the "final, validated" config.
type Config struct {
	InputPath     string    // session export to read instead of the store
	ReferenceDate time.Time // calendar date every window ends on
	Profile       string

	ResultLimit int
	Precision   int
	Output      schema.OutputMode
	OutputFile  string
	Width       int // Terminal width override (0 = auto-detect)
	Detail      bool
	Explain     bool
	UseColors   bool

	ComplianceMinHours     float64
	ComplianceTarget       float64
	EffectivenessThreshold float64
	WindowDays             int

	CompareMode bool
	BaseRef     time.Time
	TargetRef   time.Time

	TimeseriesInterval int // days between points
	TimeseriesPoints   int

	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext

	ListenAddr string
}

// PprofConfig holds CPU and heap profiling settings.
type PprofConfig struct {
	Enabled bool
	Prefix  string
}

// ProcessPprofConfig enables profiling when a file prefix is given.
func ProcessPprofConfig(pprof *PprofConfig, prefix string) {
	prefix = strings.TrimSpace(prefix)
	pprof.Enabled = prefix != ""
	pprof.Prefix = prefix
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Input          string `mapstructure:"input"`
	Ref            string `mapstructure:"ref"`
	Profile        string `mapstructure:"profile"`
	OutputFile     string `mapstructure:"output-file"`
	Limit          int    `mapstructure:"limit"`
	Precision      int    `mapstructure:"precision"`
	Output         string `mapstructure:"output"`
	Detail         bool   `mapstructure:"detail"`
	Width          int    `mapstructure:"width"`
	Color          string `mapstructure:"color"`
	StoreBackend   string `mapstructure:"store-backend"`
	StoreDBConnect string `mapstructure:"store-db-connect"`

	// --- Compliance and gate settings ---
	ComplianceMinHours     float64 `mapstructure:"compliance-min-hours"`
	ComplianceTarget       float64 `mapstructure:"compliance-target"`
	EffectivenessThreshold float64 `mapstructure:"effectiveness-threshold"`
	Window                 int     `mapstructure:"window"`

	// --- Fields from insightsCmd.Flags() ---
	Explain bool `mapstructure:"explain"`

	// --- Fields from compareCmd.Flags() ---
	BaseRef   string `mapstructure:"base-ref"`
	TargetRef string `mapstructure:"target-ref"`

	// --- Fields from timeseriesCmd.Flags() ---
	Interval string `mapstructure:"interval"`
	Points   int    `mapstructure:"points"`

	// --- Fields from serveCmd.Flags() ---
	Listen string `mapstructure:"listen"`
}

// Clone returns a copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// CloneWithReferenceDate creates a copy of the Config ending its windows on ref.
func (c *Config) CloneWithReferenceDate(ref time.Time) *Config {
	clone := c.Clone()
	clone.ReferenceDate = schema.Day(ref)
	return clone
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct. Relative dates resolve against now.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput, now time.Time) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processReferenceDate(cfg, input, now); err != nil {
		return err
	}
	if err := processComplianceRule(cfg, input); err != nil {
		return err
	}
	if err := processCompareMode(cfg, input, now); err != nil {
		return err
	}
	if err := processTimeseriesMode(cfg, input); err != nil {
		return err
	}
	return validateBackendConfigs(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates the session store backend configuration.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	backend := strings.ToLower(strings.TrimSpace(input.StoreBackend))
	if backend == "" {
		backend = string(schema.SQLiteBackend)
	}
	cfg.StoreBackend = schema.DatabaseBackend(backend)
	if _, ok := schema.ValidStoreBackends[cfg.StoreBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql, none", input.StoreBackend)
	}
	cfg.StoreDBConnect = input.StoreDBConnect
	return ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreDBConnect)
}

// validateSimpleInputs processes and validates all non-date fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.InputPath = strings.TrimSpace(input.Input)
	cfg.OutputFile = input.OutputFile
	cfg.Detail = input.Detail
	cfg.Explain = input.Explain
	cfg.Width = input.Width
	cfg.ListenAddr = input.Listen
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}

	cfg.Profile = strings.TrimSpace(input.Profile)
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	if input.Precision < 1 || input.Precision > 2 {
		return fmt.Errorf("precision must be 1 or 2 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", cfg.Output)
	}
	if cfg.Width < 0 {
		return fmt.Errorf("width cannot be negative (received %d)", cfg.Width)
	}
	return nil
}

// processReferenceDate resolves the date every analysis window ends on.
func processReferenceDate(cfg *Config, input *ConfigRawInput, now time.Time) error {
	ref, err := ParseReferenceDate(input.Ref, now)
	if err != nil {
		return fmt.Errorf("invalid --ref value: %w", err)
	}
	cfg.ReferenceDate = ref
	return nil
}

// processComplianceRule validates the insurance rule, the gate threshold and the window.
func processComplianceRule(cfg *Config, input *ConfigRawInput) error {
	cfg.ComplianceMinHours = input.ComplianceMinHours
	if cfg.ComplianceMinHours == 0 {
		cfg.ComplianceMinHours = DefaultComplianceMinHours
	}
	if cfg.ComplianceMinHours < 0 || cfg.ComplianceMinHours > 24 {
		return fmt.Errorf("compliance-min-hours must be between 0 and 24 (received %.2f)", cfg.ComplianceMinHours)
	}

	cfg.ComplianceTarget = input.ComplianceTarget
	if cfg.ComplianceTarget == 0 {
		cfg.ComplianceTarget = DefaultComplianceTarget
	}
	if cfg.ComplianceTarget < 0 || cfg.ComplianceTarget > 100 {
		return fmt.Errorf("compliance-target must be between 0 and 100 (received %.2f)", cfg.ComplianceTarget)
	}

	cfg.EffectivenessThreshold = input.EffectivenessThreshold
	if cfg.EffectivenessThreshold == 0 {
		cfg.EffectivenessThreshold = DefaultEffectivenessThreshold
	}
	if cfg.EffectivenessThreshold < 0 || cfg.EffectivenessThreshold > 100 {
		return fmt.Errorf("effectiveness-threshold must be between 0 and 100 (received %.2f)", cfg.EffectivenessThreshold)
	}

	cfg.WindowDays = input.Window
	if cfg.WindowDays == 0 {
		cfg.WindowDays = DefaultWindowDays
	}
	if cfg.WindowDays < 1 || cfg.WindowDays > MaxWindowDays {
		return fmt.Errorf("window must be between 1 and %d days (received %d)", MaxWindowDays, cfg.WindowDays)
	}
	return nil
}

// processCompareMode handles the comparison reference dates.
func processCompareMode(cfg *Config, input *ConfigRawInput, now time.Time) error {
	baseStr := strings.TrimSpace(input.BaseRef)
	targetStr := strings.TrimSpace(input.TargetRef)

	if baseStr == "" && targetStr == "" {
		cfg.CompareMode = false
		return nil
	}
	cfg.CompareMode = true

	if baseStr == "" {
		return fmt.Errorf("must specify --base-ref when running the compare command")
	}
	base, err := ParseReferenceDate(baseStr, now)
	if err != nil {
		return fmt.Errorf("invalid --base-ref value: %w", err)
	}
	cfg.BaseRef = base

	cfg.TargetRef = cfg.ReferenceDate
	if targetStr != "" {
		target, err := ParseReferenceDate(targetStr, now)
		if err != nil {
			return fmt.Errorf("invalid --target-ref value: %w", err)
		}
		cfg.TargetRef = target
	}

	if cfg.BaseRef.After(cfg.TargetRef) {
		return fmt.Errorf("base ref (%s) cannot be after target ref (%s)",
			cfg.BaseRef.Format(schema.DateFormat), cfg.TargetRef.Format(schema.DateFormat))
	}
	return nil
}

// processTimeseriesMode handles the timeseries parameters.
func processTimeseriesMode(cfg *Config, input *ConfigRawInput) error {
	cfg.TimeseriesInterval = DefaultIntervalDays
	if input.Interval != "" {
		days, err := ParseIntervalDays(input.Interval)
		if err != nil {
			return fmt.Errorf("invalid interval: %w", err)
		}
		cfg.TimeseriesInterval = days
	}

	cfg.TimeseriesPoints = input.Points
	if cfg.TimeseriesPoints == 0 {
		cfg.TimeseriesPoints = DefaultPoints
	}
	if cfg.TimeseriesPoints < 1 {
		return fmt.Errorf("--points must be at least 1")
	}
	return nil
}

// RevalidateCompare re-parses comparison dates for a per-request config copy.
func RevalidateCompare(cfg *Config, baseRef, targetRef string, now time.Time) error {
	return processCompareMode(cfg, &ConfigRawInput{BaseRef: baseRef, TargetRef: targetRef}, now)
}
