package contract

import (
	"testing"
	"time"

	"github.com/sleepdata/cpapinsight/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 30, 22, 45, 0, 0, time.UTC)

func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		Limit:     8,
		Precision: 1,
		Output:    "text",
		Color:     "yes",
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError bool
	}{
		{name: "valid minimal config", mutate: func(*ConfigRawInput) {}},
		{name: "invalid limit (zero)", mutate: func(in *ConfigRawInput) { in.Limit = 0 }, expectError: true},
		{name: "invalid limit (too large)", mutate: func(in *ConfigRawInput) { in.Limit = MaxResultLimit + 1 }, expectError: true},
		{name: "invalid precision", mutate: func(in *ConfigRawInput) { in.Precision = 3 }, expectError: true},
		{name: "invalid output format", mutate: func(in *ConfigRawInput) { in.Output = "xml" }, expectError: true},
		{name: "parquet output", mutate: func(in *ConfigRawInput) { in.Output = "PARQUET" }},
		{name: "invalid color", mutate: func(in *ConfigRawInput) { in.Color = "maybe" }, expectError: true},
		{name: "negative width", mutate: func(in *ConfigRawInput) { in.Width = -1 }, expectError: true},
		{name: "absolute ref", mutate: func(in *ConfigRawInput) { in.Ref = "2024-03-01" }},
		{name: "invalid ref", mutate: func(in *ConfigRawInput) { in.Ref = "last tuesday" }, expectError: true},
		{name: "compliance target above 100", mutate: func(in *ConfigRawInput) { in.ComplianceTarget = 101 }, expectError: true},
		{name: "negative min hours", mutate: func(in *ConfigRawInput) { in.ComplianceMinHours = -1 }, expectError: true},
		{name: "window too large", mutate: func(in *ConfigRawInput) { in.Window = MaxWindowDays + 1 }, expectError: true},
		{name: "effectiveness threshold above 100", mutate: func(in *ConfigRawInput) { in.EffectivenessThreshold = 150 }, expectError: true},
		{name: "compare with both refs", mutate: func(in *ConfigRawInput) { in.BaseRef = "2024-02-01"; in.TargetRef = "2024-03-01" }},
		{name: "compare missing base ref", mutate: func(in *ConfigRawInput) { in.TargetRef = "2024-03-01" }, expectError: true},
		{name: "compare base after target", mutate: func(in *ConfigRawInput) { in.BaseRef = "2024-03-02"; in.TargetRef = "2024-03-01" }, expectError: true},
		{name: "timeseries interval", mutate: func(in *ConfigRawInput) { in.Interval = "2 weeks"; in.Points = 4 }},
		{name: "invalid interval", mutate: func(in *ConfigRawInput) { in.Interval = "fortnight" }, expectError: true},
		{name: "negative points", mutate: func(in *ConfigRawInput) { in.Points = -2 }, expectError: true},
		{name: "invalid store backend", mutate: func(in *ConfigRawInput) { in.StoreBackend = "mongo" }, expectError: true},
		{name: "mysql backend without connection string", mutate: func(in *ConfigRawInput) { in.StoreBackend = "mysql" }, expectError: true},
		{name: "postgresql backend without connection string", mutate: func(in *ConfigRawInput) { in.StoreBackend = "postgresql" }, expectError: true},
		{
			name: "mysql backend with connection string",
			mutate: func(in *ConfigRawInput) {
				in.StoreBackend = string(schema.MySQLBackend)
				in.StoreDBConnect = "user:pass@tcp(localhost:3306)/cpap"
			},
		},
		{name: "none backend", mutate: func(in *ConfigRawInput) { in.StoreBackend = "none" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)

			cfg := &Config{}
			err := ProcessAndValidate(cfg, input, fixedNow)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, input.Limit, cfg.ResultLimit)
		})
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, validInput(), fixedNow))

	assert.Equal(t, time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC), cfg.ReferenceDate)
	assert.Equal(t, DefaultProfile, cfg.Profile)
	assert.Equal(t, DefaultComplianceMinHours, cfg.ComplianceMinHours)
	assert.Equal(t, DefaultComplianceTarget, cfg.ComplianceTarget)
	assert.Equal(t, DefaultEffectivenessThreshold, cfg.EffectivenessThreshold)
	assert.Equal(t, DefaultWindowDays, cfg.WindowDays)
	assert.Equal(t, DefaultIntervalDays, cfg.TimeseriesInterval)
	assert.Equal(t, DefaultPoints, cfg.TimeseriesPoints)
	assert.Equal(t, schema.SQLiteBackend, cfg.StoreBackend)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, schema.TextOut, cfg.Output)
	assert.True(t, cfg.UseColors)
	assert.False(t, cfg.CompareMode)
}

func TestProcessCompareModeDefaultsTargetToReference(t *testing.T) {
	input := validInput()
	input.Ref = "2024-03-15"
	input.BaseRef = "2 weeks ago"

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input, fixedNow))
	assert.True(t, cfg.CompareMode)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), cfg.BaseRef)
	assert.Equal(t, cfg.ReferenceDate, cfg.TargetRef)
}

func TestRevalidateCompare(t *testing.T) {
	cfg := &Config{ReferenceDate: time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, RevalidateCompare(cfg, "2024-02-29", "", fixedNow))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), cfg.BaseRef)
	assert.Equal(t, cfg.ReferenceDate, cfg.TargetRef)

	none := cfg.Clone()
	require.NoError(t, RevalidateCompare(none, "", "", fixedNow))
	assert.False(t, none.CompareMode)

	assert.Error(t, RevalidateCompare(cfg.Clone(), "2024-04-02", "", fixedNow))
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{Profile: "alice", ResultLimit: 5}
	clone := cfg.Clone()
	clone.Profile = "bob"
	assert.Equal(t, "alice", cfg.Profile)

	moved := cfg.CloneWithReferenceDate(time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), moved.ReferenceDate)
	assert.True(t, cfg.ReferenceDate.IsZero())
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		backend schema.DatabaseBackend
		connStr string
		wantErr bool
	}{
		{schema.SQLiteBackend, "", false},
		{schema.NoneBackend, "", false},
		{schema.MySQLBackend, "user:pass@tcp(db:3306)/cpap", false},
		{schema.MySQLBackend, "user:pass@db/cpap", true},
		{schema.MySQLBackend, "user:pass@tcp(db:3306)", true},
		{schema.PostgreSQLBackend, "host=db dbname=cpap user=x", false},
		{schema.PostgreSQLBackend, "dbname=cpap", true},
		{schema.PostgreSQLBackend, "host=db", true},
	}
	for _, tt := range tests {
		err := ValidateDatabaseConnectionString(tt.backend, tt.connStr)
		if tt.wantErr {
			assert.Error(t, err, "%s %q", tt.backend, tt.connStr)
		} else {
			assert.NoError(t, err, "%s %q", tt.backend, tt.connStr)
		}
	}
}

func TestProcessPprofConfig(t *testing.T) {
	var p PprofConfig
	ProcessPprofConfig(&p, "  run1 ")
	assert.True(t, p.Enabled)
	assert.Equal(t, "run1", p.Prefix)

	ProcessPprofConfig(&p, "")
	assert.False(t, p.Enabled)
}
