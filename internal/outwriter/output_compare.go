package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/schema"
)

// PrintComparisonResults outputs the period comparison, dispatching based on the output format configured.
func PrintComparisonResults(result schema.ComparisonResult, cfg *contract.Config, duration time.Duration) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteComparisonResults(w, result, cfg, duration)
	}, successMessage(cfg, "comparison results"))
}

// WriteComparisonResults writes the comparison to w in the configured output format.
func WriteComparisonResults(w io.Writer, result schema.ComparisonResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	return dispatch(w, cfg, result,
		func(w io.Writer) error { return writeCSVComparison(w, result, fmtFloat) },
		func(w io.Writer) error { return writeComparisonTable(w, result, cfg, fmtFloat, duration) },
	)
}

func writeCSVComparison(w io.Writer, result schema.ComparisonResult, fmtFloat func(float64) string) error {
	header := []string{"kind", "key", "base_ref", "target_ref", "window_days", "before", "after", "delta", "status"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		write := func(kind string, details []schema.ComparisonDetails) error {
			for _, d := range details {
				row := []string{
					kind,
					d.Key,
					formatDate(result.BaseRef),
					formatDate(result.TargetRef),
					strconv.Itoa(result.WindowDays),
					fmtFloat(d.Before),
					fmtFloat(d.After),
					fmtFloat(d.Delta),
					string(d.Status),
				}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
			return nil
		}
		if err := write("metric", result.Metrics); err != nil {
			return err
		}
		return write("score", result.Scores)
	})
}

// writeComparisonTable prints metric and score changes between the two windows.
func writeComparisonTable(w io.Writer, result schema.ComparisonResult, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	var red, green, yellow func(...any) string
	if cfg.UseColors {
		red = color.New(color.FgRed).SprintFunc()
		green = color.New(color.FgGreen).SprintFunc()
		yellow = color.New(color.FgYellow).SprintFunc()
	} else {
		red = fmt.Sprint
		green = fmt.Sprint
		yellow = fmt.Sprint
	}

	rows := func(details []schema.ComparisonDetails) [][]string {
		data := make([][]string, 0, len(details))
		for i, d := range details {
			var deltaStr string
			switch {
			case d.Delta > 0:
				deltaStr = fmt.Sprintf("+%.*f ▲", cfg.Precision, d.Delta)
			case d.Delta < 0:
				deltaStr = fmt.Sprintf("%.*f ▼", cfg.Precision, d.Delta)
			default:
				deltaStr = fmt.Sprintf("%.*f", cfg.Precision, 0.0)
			}
			switch d.Status {
			case schema.ImprovedStatus:
				deltaStr = green(deltaStr)
			case schema.DeclinedStatus:
				deltaStr = red(deltaStr)
			default:
				deltaStr = yellow(deltaStr)
			}
			data = append(data, []string{
				strconv.Itoa(i + 1),
				d.Key,
				fmtFloat(d.Before),
				fmtFloat(d.After),
				deltaStr,
				string(d.Status),
			})
		}
		return data
	}

	if _, err := fmt.Fprintf(w, "Comparing %d-night windows ending %s and %s\n",
		result.WindowDays, formatDate(result.BaseRef), formatDate(result.TargetRef)); err != nil {
		return err
	}
	headers := []string{"Rank", "Metric", "Before", "After", "Delta", "Status"}
	if err := renderTable(w, headers, rows(result.Metrics)); err != nil {
		return err
	}
	headers[1] = "Score"
	if err := renderTable(w, headers, rows(result.Scores)); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Improved: %d, Declined: %d, Unchanged: %d\n",
		result.Summary.Improved, result.Summary.Declined, result.Summary.Unchanged); err != nil {
		return err
	}
	return printFooter(w, cfg, "Comparison", duration)
}
