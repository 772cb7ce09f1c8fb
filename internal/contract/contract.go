// Package contract provides interfaces and shared utilities for the cpapinsight internals.
package contract

import (
	"context"
	"errors"
	"time"

	"github.com/sleepdata/cpapinsight/schema"
)

// ErrNoRecords is returned when a source has no sessions up to the reference date.
var ErrNoRecords = errors.New("no session records found")

// SessionSource loads nightly session records for a patient profile.
// The returned records cover calendar dates in [from, to]; a zero from
// leaves the range without a lower bound.
type SessionSource interface {
	LoadSessions(ctx context.Context, profile string, from, to time.Time) ([]schema.SessionRecord, error)
}

// RunRecorder writes an analysis snapshot to the run history.
type RunRecorder interface {
	RecordRun(ctx context.Context, profile string, ref time.Time, recordCount int, params map[string]any, scores map[schema.ScoreType]schema.CompositeScore) (string, error)
}

// SessionStore is the persistent session store used by the CLI and the servers.
type SessionStore interface {
	SessionSource
	RunRecorder

	// UpsertSessions replaces stored sessions for the same profile and date.
	UpsertSessions(ctx context.Context, profile string, records []schema.SessionRecord) (int, error)

	// ListRuns returns the most recent analysis runs for a profile, newest first.
	ListRuns(ctx context.Context, profile string, limit int) ([]schema.RunRecord, error)

	// ListRunScores returns the composite scores stored for one run.
	ListRunScores(ctx context.Context, runID string) ([]schema.RunScoreRecord, error)

	// GetStatus returns status information about the store.
	GetStatus(ctx context.Context) (schema.StoreStatus, error)

	// Clear removes every stored row.
	Clear(ctx context.Context) error

	// Close closes the underlying connection.
	Close() error
}
