package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sleepdata/cpapinsight/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetScoreBand(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected schema.Band
	}{
		{"zero", 0, schema.CriticalBand},
		{"just before warning", 49.9, schema.CriticalBand},
		{"exactly warning", 50, schema.WarningBand},
		{"exactly good", 70, schema.GoodBand},
		{"just before excellent", 84.9, schema.GoodBand},
		{"exactly excellent", 85, schema.ExcellentBand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetScoreBand(tt.input))
		})
	}
}

func TestColorLabelsKeepText(t *testing.T) {
	for _, band := range []schema.Band{schema.ExcellentBand, schema.GoodBand, schema.WarningBand, schema.CriticalBand} {
		assert.Contains(t, GetColorLabel(band, "normal"), "normal")
	}
	for _, level := range []schema.Level{schema.HighLevel, schema.MediumLevel, schema.LowLevel} {
		assert.Contains(t, GetLevelColorLabel(level), string(level))
	}
	for _, dir := range []schema.TrendDirection{schema.Improving, schema.Worsening, schema.Stable} {
		assert.Contains(t, GetTrendColorLabel(dir), string(dir))
	}
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "report.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestGetStoreDBFilePath(t *testing.T) {
	path := GetStoreDBFilePath()
	assert.Contains(t, path, ".cpapinsight_sessions.db")

	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, homeDir), "path %s should start with home dir %s", path, homeDir)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "Mask f...", TruncateText("Mask Fit Optimization", 9))
	assert.Equal(t, "abcdef", TruncateText("abcdef", 3))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("")
	assert.Error(t, err)
}
