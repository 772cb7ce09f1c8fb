package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/schema"
)

// PrintScores outputs the composite scores, dispatching based on the output format configured.
func PrintScores(scores map[schema.ScoreType]schema.CompositeScore, cfg *contract.Config, duration time.Duration) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteScores(w, scores, cfg, duration)
	}, successMessage(cfg, "scores"))
}

// WriteScores writes the composite scores to w in the configured output format.
func WriteScores(w io.Writer, scores map[schema.ScoreType]schema.CompositeScore, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	return dispatch(w, cfg, scores,
		func(w io.Writer) error {
			header := []string{"score_type", "overall", "label", "sample_size", "sufficient", "components"}
			return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
				for _, st := range schema.AllScoreTypes {
					s, ok := scores[st]
					if !ok {
						continue
					}
					row := []string{
						string(st),
						fmtFloat(s.Overall),
						s.Label,
						strconv.Itoa(s.SampleSize),
						strconv.FormatBool(s.Sufficient),
						formatComponents(s.Components, fmtFloat),
					}
					if err := cw.Write(row); err != nil {
						return err
					}
				}
				return nil
			})
		},
		func(w io.Writer) error {
			if err := writeScoresTable(w, scores, cfg, fmtFloat); err != nil {
				return err
			}
			if cfg.Explain {
				for _, st := range schema.AllScoreTypes {
					for _, rec := range scores[st].Recommendations {
						if _, err := fmt.Fprintf(w, "%s: %s\n", st, rec); err != nil {
							return err
						}
					}
				}
			}
			return printFooter(w, cfg, "Scoring", duration)
		},
	)
}

// writeScoresTable prints one row per composite score in display order.
func writeScoresTable(w io.Writer, scores map[schema.ScoreType]schema.CompositeScore, cfg *contract.Config, fmtFloat func(float64) string) error {
	headers := []string{"Score", "Overall", "Label", "Nights"}
	if cfg.Detail {
		headers = append(headers, "Components")
	}
	var data [][]string
	for _, st := range schema.AllScoreTypes {
		s, ok := scores[st]
		if !ok {
			continue
		}
		overall := "-"
		if s.Sufficient {
			overall = fmtFloat(s.Overall)
		}
		row := []string{
			string(st),
			overall,
			bandLabel(cfg, contract.GetScoreBand(s.Overall), s.Label),
			strconv.Itoa(s.SampleSize),
		}
		if cfg.Detail {
			row = append(row, formatComponents(s.Components, fmtFloat))
		}
		data = append(data, row)
	}
	return renderTable(w, headers, data)
}

// formatComponents renders score components as key=value pairs in key order.
func formatComponents(components map[schema.BreakdownKey]float64, fmtFloat func(float64) string) string {
	parts := make([]string, 0, len(components))
	for _, key := range sortedKeys(components) {
		parts = append(parts, fmt.Sprintf("%s=%s", key, fmtFloat(components[key])))
	}
	return strings.Join(parts, " ")
}

// PrintClassification outputs a single metric classification.
func PrintClassification(result schema.ClassificationResult, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteClassification(w, result, cfg)
	}, successMessage(cfg, "classification"))
}

// WriteClassification writes a single metric classification to w in the configured output format.
func WriteClassification(w io.Writer, result schema.ClassificationResult, cfg *contract.Config) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	return dispatch(w, cfg, result,
		func(w io.Writer) error {
			header := []string{"metric", "value", "band", "label", "excellent", "good", "warning", "higher_is_better"}
			return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
				return cw.Write([]string{
					string(result.Metric),
					fmtFloat(result.Value),
					string(result.Band),
					result.Label,
					fmtFloat(result.Thresholds.Excellent),
					fmtFloat(result.Thresholds.Good),
					fmtFloat(result.Thresholds.Warning),
					strconv.FormatBool(result.Thresholds.HigherIsBetter),
				})
			})
		},
		func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s %s: %s (%s)\n",
				result.Metric, fmtFloat(result.Value), bandLabel(cfg, result.Band, result.Label), result.Band)
			return err
		},
	)
}
