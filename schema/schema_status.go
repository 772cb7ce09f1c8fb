package schema

import "time"

// StoreStatus represents the status of the session store.
type StoreStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalSessions int              `json:"total_sessions"`
	FirstSession  time.Time        `json:"first_session"`
	LastSession   time.Time        `json:"last_session"`
	TotalRuns     int              `json:"total_runs"`
	LastRunID     string           `json:"last_run_id"`
	LastRunTime   time.Time        `json:"last_run_time"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}

// RunRecord represents a row from the therapy_analysis_runs table.
type RunRecord struct {
	RunID         string
	Profile       string
	ReferenceDate time.Time
	CreatedAt     time.Time
	RecordCount   int32
	ConfigParams  *string
}

// RunScoreRecord represents a row from the therapy_run_scores table.
type RunScoreRecord struct {
	RunID      string
	ScoreType  string
	Overall    float64
	Label      string
	Components string
}
