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

var windowHeaders = []string{"Metric", "Window", "Nights", "Mean", "MAD", "Min", "Max"}

// PrintWindows outputs the per-metric window summaries, dispatching based on the output format configured.
func PrintWindows(windows []schema.MetricWindow, cfg *contract.Config, duration time.Duration) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteWindows(w, windows, cfg, duration)
	}, successMessage(cfg, "window summaries"))
}

// WriteWindows writes the window summaries to w in the configured output format.
func WriteWindows(w io.Writer, windows []schema.MetricWindow, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	return dispatch(w, cfg, windows,
		func(w io.Writer) error {
			header := []string{"metric", "window_days", "from", "to", "record_count", "mean", "variance", "min", "max"}
			return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
				for _, win := range windows {
					row := []string{
						string(win.Metric),
						strconv.Itoa(win.WindowDays),
						formatDate(win.From),
						formatDate(win.To),
						strconv.Itoa(win.RecordCount),
						fmtFloat(win.Mean),
						fmtFloat(win.Variance),
						fmtFloat(win.Min),
						fmtFloat(win.Max),
					}
					if err := cw.Write(row); err != nil {
						return err
					}
				}
				return nil
			})
		},
		func(w io.Writer) error {
			data := make([][]string, 0, len(windows))
			for _, win := range windows {
				data = append(data, windowRow(win, fmtFloat))
			}
			if err := renderTable(w, windowHeaders, data); err != nil {
				return err
			}
			return printFooter(w, cfg, "Window summary", duration)
		},
	)
}

func windowRow(win schema.MetricWindow, fmtFloat func(float64) string) []string {
	if win.RecordCount == 0 {
		return []string{string(win.Metric), fmt.Sprintf("%dd", win.WindowDays), "0", "-", "-", "-", "-"}
	}
	return []string{
		string(win.Metric),
		fmt.Sprintf("%dd", win.WindowDays),
		strconv.Itoa(win.RecordCount),
		fmtFloat(win.Mean),
		fmtFloat(win.Variance),
		fmtFloat(win.Min),
		fmtFloat(win.Max),
	}
}
