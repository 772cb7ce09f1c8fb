package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/internal/parquet"
	"github.com/sleepdata/cpapinsight/schema"
)

// ExportParquet writes the stored sessions, analysis runs and run scores of a
// profile to three Parquet files sharing the outputFile prefix.
func ExportParquet(ctx context.Context, store contract.SessionStore, profile, outputFile string, w io.Writer) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	status, err := store.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get store status: %w", err)
	}
	if !status.Connected {
		return ErrStoreDisabled
	}

	sessions, err := store.LoadSessions(ctx, profile, time.Time{}, schema.Day(time.Now()).AddDate(100, 0, 0))
	if err != nil {
		return fmt.Errorf("failed to retrieve sessions: %w", err)
	}
	runs, err := store.ListRuns(ctx, profile, 0)
	if err != nil {
		return fmt.Errorf("failed to retrieve analysis runs: %w", err)
	}
	if len(sessions) == 0 && len(runs) == 0 {
		return fmt.Errorf("no stored data found for profile %q", profile)
	}

	var scores []schema.RunScoreRecord
	for _, run := range runs {
		runScores, err := store.ListRunScores(ctx, run.RunID)
		if err != nil {
			return fmt.Errorf("failed to retrieve scores for run %s: %w", run.RunID, err)
		}
		scores = append(scores, runScores...)
	}

	_, _ = fmt.Fprintf(w, "Exporting profile %q from %s backend...\n", profile, status.Backend)

	sessionsFile := outputFile + ".sessions.parquet"
	if err := parquet.WriteTherapySessionsParquet(parquet.ConvertSessionRecords(profile, sessions), sessionsFile); err != nil {
		return fmt.Errorf("failed to write sessions: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d sessions to: %s\n", len(sessions), sessionsFile)

	runsFile := outputFile + ".analysis_runs.parquet"
	if err := parquet.WriteAnalysisRunsParquet(parquet.ConvertAnalysisRunRecords(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write analysis runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d analysis runs to: %s\n", len(runs), runsFile)

	scoresFile := outputFile + ".run_scores.parquet"
	if err := parquet.WriteRunScoresParquet(parquet.ConvertRunScoreRecords(scores), scoresFile); err != nil {
		return fmt.Errorf("failed to write run scores: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d run scores to: %s\n", len(scores), scoresFile)
	return nil
}
