package outwriter

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/schema"
)

// PrintTimeseriesResults outputs the timeseries results, dispatching based on the output format configured.
func PrintTimeseriesResults(result schema.TimeseriesResult, cfg *contract.Config, duration time.Duration) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteTimeseriesResults(w, result, cfg, duration)
	}, successMessage(cfg, "timeseries results"))
}

// WriteTimeseriesResults writes the timeseries to w in the configured output format.
func WriteTimeseriesResults(w io.Writer, result schema.TimeseriesResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	return dispatch(w, cfg, result,
		func(w io.Writer) error {
			header := []string{"reference_date", "record_count"}
			for _, st := range schema.AllScoreTypes {
				header = append(header, string(st))
			}
			return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
				for _, p := range result.Points {
					row := []string{formatDate(p.ReferenceDate), strconv.Itoa(p.RecordCount)}
					for _, st := range schema.AllScoreTypes {
						row = append(row, fmtFloat(p.Scores[st]))
					}
					if err := cw.Write(row); err != nil {
						return err
					}
				}
				return nil
			})
		},
		func(w io.Writer) error {
			headers := []string{"Reference", "Nights"}
			for _, st := range schema.AllScoreTypes {
				headers = append(headers, string(st))
			}
			data := make([][]string, 0, len(result.Points))
			for _, p := range result.Points {
				row := []string{formatDate(p.ReferenceDate), strconv.Itoa(p.RecordCount)}
				for _, st := range schema.AllScoreTypes {
					value, ok := p.Scores[st]
					if !ok || p.RecordCount == 0 {
						row = append(row, "-")
						continue
					}
					row = append(row, bandLabel(cfg, contract.GetScoreBand(value), fmtFloat(value)))
				}
				data = append(data, row)
			}
			if err := renderTable(w, headers, data); err != nil {
				return err
			}
			return printFooter(w, cfg, "Timeseries", duration)
		},
	)
}
