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

// PrintInsights outputs the ranked insights, dispatching based on the output format configured.
func PrintInsights(insights []schema.Insight, cfg *contract.Config, duration time.Duration) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteInsights(w, insights, cfg, duration)
	}, successMessage(cfg, "insights"))
}

// WriteInsights writes the insights to w in the configured output format.
func WriteInsights(w io.Writer, insights []schema.Insight, cfg *contract.Config, duration time.Duration) error {
	if insights == nil {
		insights = []schema.Insight{}
	}
	return dispatch(w, cfg, insights,
		func(w io.Writer) error { return writeCSVInsights(w, insights) },
		func(w io.Writer) error {
			if len(insights) == 0 {
				if _, err := fmt.Fprintln(w, "No insights for this period."); err != nil {
					return err
				}
			} else if err := writeInsightsTable(w, insights, cfg); err != nil {
				return err
			}
			return printFooter(w, cfg, "Insights", duration)
		},
	)
}

func writeCSVInsights(w io.Writer, insights []schema.Insight) error {
	header := []string{"rank", "priority", "kind", "metric", "title", "message", "confidence", "clinical_relevance", "trend", "actionable", "actions"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for i, in := range insights {
			row := []string{
				strconv.Itoa(i + 1),
				strconv.Itoa(in.Priority),
				string(in.Kind),
				string(in.Metric),
				in.Title,
				in.Message,
				string(in.Confidence),
				string(in.ClinicalRelevance),
				string(in.TrendDirection),
				strconv.FormatBool(in.Actionable),
				strings.Join(in.RecommendedActions, "|"),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeInsightsTable prints insights ranked by priority. With --explain each
// insight is followed by its recommended actions.
func writeInsightsTable(w io.Writer, insights []schema.Insight, cfg *contract.Config) error {
	headers := []string{"Rank", "Priority", "Insight", "Relevance", "Confidence"}
	reserved := 40
	if cfg.Detail {
		headers = append(headers, "Message")
		reserved += 30
	}
	textWidth := getMaxTextWidth(cfg, reserved)

	var data [][]string
	for i, in := range insights {
		row := []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(in.Priority),
			contract.TruncateText(in.Title, textWidth),
			levelLabel(cfg, in.ClinicalRelevance),
			string(in.Confidence),
		}
		if cfg.Detail {
			row = append(row, contract.TruncateText(in.Message, textWidth))
		}
		data = append(data, row)
	}
	if err := renderTable(w, headers, data); err != nil {
		return err
	}

	if cfg.Explain {
		for i, in := range insights {
			if _, err := fmt.Fprintf(w, "%d. %s: %s\n", i+1, in.Title, in.Message); err != nil {
				return err
			}
			for _, action := range in.RecommendedActions {
				if _, err := fmt.Fprintf(w, "   - %s\n", action); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
