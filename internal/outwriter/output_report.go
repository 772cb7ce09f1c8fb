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

// PrintReport outputs the full therapy report, dispatching based on the output format configured.
func PrintReport(report schema.Report, cfg *contract.Config, duration time.Duration) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteReport(w, report, cfg, duration)
	}, successMessage(cfg, "therapy report"))
}

// WriteReport writes the report to w in the configured output format.
func WriteReport(w io.Writer, report schema.Report, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	return dispatch(w, cfg, report,
		func(w io.Writer) error { return writeCSVReport(w, report, fmtFloat) },
		func(w io.Writer) error { return writeReportTables(w, report, cfg, fmtFloat, duration) },
	)
}

// writeCSVReport flattens the report into section/key rows.
func writeCSVReport(w io.Writer, report schema.Report, fmtFloat func(float64) string) error {
	header := []string{"section", "key", "window_days", "value", "label"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		var rows [][]string
		for _, st := range schema.AllScoreTypes {
			if s, ok := report.Scores[st]; ok {
				rows = append(rows, []string{"score", string(st), strconv.Itoa(schema.BaselineWindowDays), fmtFloat(s.Overall), s.Label})
			}
		}
		for _, m := range sortedKeys(report.Classifications) {
			c := report.Classifications[m]
			rows = append(rows, []string{"classification", string(m), strconv.Itoa(schema.BaselineWindowDays), fmtFloat(c.Value), c.Label})
		}
		for _, days := range sortedKeys(report.Compliance) {
			c := report.Compliance[days]
			rows = append(rows, []string{"compliance", string(schema.ComplianceMetric), strconv.Itoa(days), fmtFloat(c.Percentage), yesNo(c.MeetsThreshold)})
		}
		for _, m := range sortedKeys(report.Windows) {
			for _, days := range sortedKeys(report.Windows[m]) {
				win := report.Windows[m][days]
				rows = append(rows, []string{"window", string(m), strconv.Itoa(days), fmtFloat(win.Mean), strconv.Itoa(win.RecordCount)})
			}
		}
		for _, m := range sortedKeys(report.Trends) {
			tr := report.Trends[m]
			rows = append(rows, []string{"trend", string(m), strconv.Itoa(schema.RecentWindowDays), fmtFloat(tr.RelativeChange), string(tr.Direction)})
		}
		for _, in := range report.Insights {
			rows = append(rows, []string{"insight", in.Title, "", strconv.Itoa(in.Priority), string(in.Kind)})
		}
		return cw.WriteAll(rows)
	})
}

// writeReportTables prints the report as a sequence of tables.
func writeReportTables(w io.Writer, report schema.Report, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	if _, err := fmt.Fprintf(w, "Therapy report as of %s (%d nights analyzed, %d skipped)\n\n",
		formatDate(report.ReferenceDate), report.RecordCount, len(report.Skipped)); err != nil {
		return err
	}

	if err := writeScoresTable(w, report.Scores, cfg, fmtFloat); err != nil {
		return err
	}

	var classRows [][]string
	for _, m := range sortedKeys(report.Classifications) {
		c := report.Classifications[m]
		classRows = append(classRows, []string{string(m), fmtFloat(c.Value), bandLabel(cfg, c.Band, c.Label)})
	}
	if len(classRows) > 0 {
		if err := renderTable(w, []string{"Metric", "30d Mean", "Classification"}, classRows); err != nil {
			return err
		}
	}

	var complianceRows [][]string
	for _, days := range sortedKeys(report.Compliance) {
		complianceRows = append(complianceRows, complianceRow(report.Compliance[days], fmtFloat))
	}
	if err := renderTable(w, complianceHeaders, complianceRows); err != nil {
		return err
	}

	var trendRows [][]string
	for _, m := range sortedKeys(report.Trends) {
		tr := report.Trends[m]
		trendRows = append(trendRows, []string{
			string(m),
			fmtFloat(tr.Recent),
			fmtFloat(tr.Baseline),
			fmt.Sprintf("%+.*f%%", cfg.Precision, tr.RelativeChange*100),
			trendLabel(cfg, tr.Direction),
		})
	}
	if len(trendRows) > 0 {
		if err := renderTable(w, []string{"Metric", "Recent 7d", "Baseline 30d", "Change", "Trend"}, trendRows); err != nil {
			return err
		}
	}

	if cfg.Detail {
		var windowRows [][]string
		for _, m := range sortedKeys(report.Windows) {
			for _, days := range sortedKeys(report.Windows[m]) {
				windowRows = append(windowRows, windowRow(report.Windows[m][days], fmtFloat))
			}
		}
		if err := renderTable(w, windowHeaders, windowRows); err != nil {
			return err
		}
	}

	if len(report.Insights) > 0 {
		if err := writeInsightsTable(w, report.Insights, cfg); err != nil {
			return err
		}
	}
	return printFooter(w, cfg, "Report", duration)
}
