// Package outwriter has output and writer logic.
package outwriter

import (
	"cmp"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/schema"
	"golang.org/x/term"
)

// ErrParquetOutput is returned when an analysis result is asked for Parquet output.
var ErrParquetOutput = errors.New("parquet output is only available for 'store export'")

// writeWithFile handles the common pattern of opening a file, writing to it, and cleaning up.
// It accepts a writer function that takes an io.Writer and returns an error.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	// Only close if it's not stdout
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		_, _ = fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSVWithHeader handles the common pattern of creating a CSV writer,
// writing a header, and writing data rows.
func writeCSVWithHeader(w io.Writer, header []string, writeRows func(*csv.Writer) error) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	return writeRows(csvWriter)
}

// createFormatters creates the common formatter closures used across multiple output types.
func createFormatters(precision int) (fmtFloat func(float64) string, intFmt string) {
	intFmt = "%d"
	fmtFloat = func(v float64) string {
		return fmt.Sprintf("%.*f", precision, v)
	}
	return fmtFloat, intFmt
}

// dispatch writes a result in the configured output format.
func dispatch(w io.Writer, cfg *contract.Config, data any, writeCSV func(io.Writer) error, writeTable func(io.Writer) error) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeJSON(w, data); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeCSV(w); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return ErrParquetOutput
	default:
		if err := writeTable(w); err != nil {
			return fmt.Errorf("error writing table output: %w", err)
		}
	}
	return nil
}

// successMessage names what was written to an output file.
func successMessage(cfg *contract.Config, what string) string {
	switch cfg.Output {
	case schema.JSONOut:
		return "Wrote JSON " + what
	case schema.CSVOut:
		return "Wrote CSV " + what
	default:
		return "Wrote " + what
	}
}

// renderTable writes right-aligned rows under the given headers.
func renderTable(w io.Writer, headers []string, data [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// getMaxTextWidth calculates the maximum width for free-text columns in table output
// based on terminal width and the fixed columns reserved by the table.
func getMaxTextWidth(cfg *contract.Config, reserved int) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Reserve space for table borders, separators, and padding
	available := termWidth - reserved - 20
	if available < 20 {
		return 20
	}
	if available > 100 {
		return 100
	}
	return available
}

// bandLabel colors text by band when colors are enabled.
func bandLabel(cfg *contract.Config, band schema.Band, text string) string {
	if !cfg.UseColors {
		return text
	}
	return contract.GetColorLabel(band, text)
}

// levelLabel colors a high/medium/low level when colors are enabled.
func levelLabel(cfg *contract.Config, level schema.Level) string {
	if !cfg.UseColors {
		return string(level)
	}
	return contract.GetLevelColorLabel(level)
}

// trendLabel colors a trend direction when colors are enabled.
func trendLabel(cfg *contract.Config, direction schema.TrendDirection) string {
	if !cfg.UseColors {
		return string(direction)
	}
	return contract.GetTrendColorLabel(direction)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(schema.DateFormat)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

// printFooter writes the closing line of a table.
func printFooter(w io.Writer, cfg *contract.Config, what string, duration time.Duration) error {
	source := "store backend: " + string(cfg.StoreBackend)
	if cfg.InputPath != "" {
		source = "input: " + cfg.InputPath
	}
	_, err := fmt.Fprintf(w, "%s completed in %v for profile %q (%s)\n", what, duration, cfg.Profile, source)
	return err
}
