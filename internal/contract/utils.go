package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/sleepdata/cpapinsight/schema"
)

// Color variables for console output.
var (
	CriticalColor  = color.New(color.FgRed, color.Bold)   // CriticalColor represents standard danger.
	WarningColor   = color.New(color.FgYellow)            // WarningColor represents standard caution, not bold.
	GoodColor      = color.New(color.FgCyan)              // GoodColor represents an acceptable value.
	ExcellentColor = color.New(color.FgGreen, color.Bold) // ExcellentColor represents ideal therapy.
)

// GetScoreBand maps a 0-100 composite score onto a band using the
// effectiveness label cut points.
func GetScoreBand(score float64) schema.Band {
	switch {
	case score >= 85:
		return schema.ExcellentBand
	case score >= 70:
		return schema.GoodBand
	case score >= 50:
		return schema.WarningBand
	default:
		return schema.CriticalBand
	}
}

// GetColorLabel returns text colored for the band for console output (table).
func GetColorLabel(band schema.Band, text string) string {
	switch band {
	case schema.ExcellentBand:
		return ExcellentColor.Sprint(text)
	case schema.GoodBand:
		return GoodColor.Sprint(text)
	case schema.WarningBand:
		return WarningColor.Sprint(text)
	default:
		return CriticalColor.Sprint(text)
	}
}

// GetLevelColorLabel colors a high/medium/low level.
func GetLevelColorLabel(level schema.Level) string {
	switch level {
	case schema.HighLevel:
		return CriticalColor.Sprint(string(level))
	case schema.MediumLevel:
		return WarningColor.Sprint(string(level))
	default:
		return GoodColor.Sprint(string(level))
	}
}

// GetTrendColorLabel colors a trend direction.
func GetTrendColorLabel(direction schema.TrendDirection) string {
	switch direction {
	case schema.Improving:
		return ExcellentColor.Sprint(string(direction))
	case schema.Worsening:
		return CriticalColor.Sprint(string(direction))
	default:
		return string(direction)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetStoreDBFilePath returns the path to the SQLite DB file for session storage.
func GetStoreDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".cpapinsight_sessions.db"
	}
	return filepath.Join(homeDir, ".cpapinsight_sessions.db")
}

// TruncateText truncates text to a maximum width with an ellipsis suffix.
// Requires maxWidth > 3 to leave room for the "..." and at least one character.
func TruncateText(text string, maxWidth int) string {
	runes := []rune(text)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return text
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
