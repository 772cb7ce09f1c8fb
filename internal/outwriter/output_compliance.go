package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/schema"
)

var complianceHeaders = []string{"Window", "From", "To", "Compliant", "Nights", "Percent", "Meets Target", "Streak", "Longest", "Needed"}

// PrintCompliance outputs the compliance evaluation, dispatching based on the output format configured.
func PrintCompliance(result schema.ComplianceResult, cfg *contract.Config, duration time.Duration) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteCompliance(w, result, cfg, duration)
	}, successMessage(cfg, "compliance"))
}

// WriteCompliance writes the compliance evaluation to w in the configured output format.
func WriteCompliance(w io.Writer, result schema.ComplianceResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	return dispatch(w, cfg, result,
		func(w io.Writer) error {
			header := []string{"window_days", "from", "to", "compliant_nights", "total_nights", "nights_with_data", "percentage", "meets_threshold", "current_streak", "longest_streak", "nights_needed"}
			return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
				return cw.Write([]string{
					strconv.Itoa(result.WindowDays),
					formatDate(result.From),
					formatDate(result.To),
					strconv.Itoa(result.CompliantNights),
					strconv.Itoa(result.TotalNights),
					strconv.Itoa(result.NightsWithData),
					fmtFloat(result.Percentage),
					strconv.FormatBool(result.MeetsThreshold),
					strconv.Itoa(result.CurrentStreak),
					strconv.Itoa(result.LongestStreak),
					strconv.Itoa(result.NightsNeeded),
				})
			})
		},
		func(w io.Writer) error {
			if err := renderTable(w, complianceHeaders, [][]string{complianceRow(result, fmtFloat)}); err != nil {
				return err
			}
			band := schema.CriticalBand
			if result.MeetsThreshold {
				band = schema.ExcellentBand
			}
			status := fmt.Sprintf("%d more compliant nights needed", result.NightsNeeded)
			if result.MeetsThreshold {
				status = "Compliance target met"
			}
			if result.Undetermined {
				status = "No nights in window"
			}
			if _, err := fmt.Fprintf(w, "%s (%d of %d nights at or above %.1f hours)\n",
				bandLabel(cfg, band, status), result.CompliantNights, result.TotalNights, cfg.ComplianceMinHours); err != nil {
				return err
			}
			return printFooter(w, cfg, "Compliance check", duration)
		},
	)
}

func complianceRow(c schema.ComplianceResult, fmtFloat func(float64) string) []string {
	return []string{
		fmt.Sprintf("%dd", c.WindowDays),
		formatDate(c.From),
		formatDate(c.To),
		strconv.Itoa(c.CompliantNights),
		strconv.Itoa(c.TotalNights),
		fmtFloat(c.Percentage) + "%",
		yesNo(c.MeetsThreshold),
		strconv.Itoa(c.CurrentStreak),
		strconv.Itoa(c.LongestStreak),
		strconv.Itoa(c.NightsNeeded),
	}
}
