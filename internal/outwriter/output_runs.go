package outwriter

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/schema"
)

// PrintRuns outputs the recorded analysis runs of a profile.
func PrintRuns(runs []schema.RunRecord, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteRuns(w, runs, cfg)
	}, successMessage(cfg, "analysis runs"))
}

// WriteRuns writes the analysis runs to w in the configured output format.
func WriteRuns(w io.Writer, runs []schema.RunRecord, cfg *contract.Config) error {
	if runs == nil {
		runs = []schema.RunRecord{}
	}
	params := func(r schema.RunRecord) string {
		if r.ConfigParams == nil {
			return ""
		}
		return *r.ConfigParams
	}
	return dispatch(w, cfg, runs,
		func(w io.Writer) error {
			header := []string{"run_id", "profile", "reference_date", "created_at", "record_count", "config_params"}
			return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
				for _, r := range runs {
					row := []string{
						r.RunID,
						r.Profile,
						formatDate(r.ReferenceDate),
						r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
						strconv.Itoa(int(r.RecordCount)),
						params(r),
					}
					if err := cw.Write(row); err != nil {
						return err
					}
				}
				return nil
			})
		},
		func(w io.Writer) error {
			headers := []string{"Run ID", "Reference", "Recorded", "Nights"}
			if cfg.Detail {
				headers = append(headers, "Params")
			}
			data := make([][]string, 0, len(runs))
			for _, r := range runs {
				row := []string{
					r.RunID,
					formatDate(r.ReferenceDate),
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					strconv.Itoa(int(r.RecordCount)),
				}
				if cfg.Detail {
					row = append(row, contract.TruncateText(params(r), getMaxTextWidth(cfg, 70)))
				}
				data = append(data, row)
			}
			return renderTable(w, headers, data)
		},
	)
}
