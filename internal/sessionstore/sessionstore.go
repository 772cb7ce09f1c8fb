// Package sessionstore persists nightly sessions and analysis run history.
package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/oklog/ulid/v2"
	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/schema"
	_ "modernc.org/sqlite" // SQLite driver
)

// Table names managed by the migrations.
const (
	SessionsTable  = "therapy_sessions"
	RunsTable      = "therapy_analysis_runs"
	RunScoresTable = "therapy_run_scores"
)

// ErrStoreDisabled is returned for reads and writes against the none backend.
var ErrStoreDisabled = errors.New("session store is disabled (store-backend=none); pass --input to analyze an export")

const sessionColumns = "session_date, duration_hours, ahi, leak_rate, leak_95, leak_max, " +
	"pressure, pressure_min, pressure_95, pressure_max, " +
	"central_events, obstructive_events, hypopnea_events, mask_type"

// SessionStoreImpl handles durable storage operations using various database backends.
type SessionStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	now     func() time.Time
}

var _ contract.SessionStore = &SessionStoreImpl{} // Compile-time check

// driverFor maps a backend to its database/sql driver name and DSN.
func driverFor(backend schema.DatabaseBackend, connStr string) (string, string, error) {
	switch backend {
	case schema.SQLiteBackend:
		if connStr == "" {
			connStr = contract.GetStoreDBFilePath()
		}
		return "sqlite", connStr, nil
	case schema.MySQLBackend:
		// user:password@tcp(host:port)/dbname
		return "mysql", connStr, nil
	case schema.PostgreSQLBackend:
		// host=localhost port=5432 user=postgres password=secret dbname=postgres
		return "pgx", connStr, nil
	default:
		return "", "", fmt.Errorf("unsupported store backend: %s. Must be sqlite, mysql, postgresql, or none", backend)
	}
}

// NewSessionStore opens the store for a backend and migrates it to the latest schema.
func NewSessionStore(backend schema.DatabaseBackend, connStr string) (contract.SessionStore, error) {
	if backend == schema.NoneBackend {
		// Return a no-op store for disabled persistence
		return &SessionStoreImpl{backend: backend, now: time.Now}, nil
	}

	driverName, dsn, err := driverFor(backend, connStr)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(backend, connStr, -1, io.Discard); err != nil {
		return nil, fmt.Errorf("failed to prepare %s session store: %w", backend, err)
	}

	if backend == schema.SQLiteBackend && !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s session store: %w", backend, err)
	}
	if backend == schema.SQLiteBackend {
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}

	return &SessionStoreImpl{db: db, backend: backend, now: time.Now}, nil
}

func (s *SessionStoreImpl) enabled() bool {
	return s.db != nil
}

// placeholder returns the bind parameter for the nth argument (1-based).
func (s *SessionStoreImpl) placeholder(n int) string {
	if s.backend == schema.PostgreSQLBackend {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// placeholders returns a comma-separated list of count bind parameters starting at start.
func (s *SessionStoreImpl) placeholders(start, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = s.placeholder(start + i)
	}
	return strings.Join(parts, ", ")
}

// formatDate renders a calendar date the way every backend stores it.
func formatDate(t time.Time) string {
	return schema.Day(t).Format(schema.DateFormat)
}

// formatTime renders a timestamp with nanosecond precision in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// LoadSessions implements the SessionSource interface.
func (s *SessionStoreImpl) LoadSessions(ctx context.Context, profile string, from, to time.Time) ([]schema.SessionRecord, error) {
	if !s.enabled() {
		return nil, ErrStoreDisabled
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE profile = %s AND session_date <= %s",
		sessionColumns, SessionsTable, s.placeholder(1), s.placeholder(2))
	args := []any{profile, formatDate(to)}
	if !from.IsZero() {
		query += " AND session_date >= " + s.placeholder(3)
		args = append(args, formatDate(from))
	}
	query += " ORDER BY session_date"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []schema.SessionRecord
	for rows.Next() {
		var (
			date string
			mask sql.NullString
			r    schema.SessionRecord
		)
		if err := rows.Scan(&date, &r.DurationHours, &r.AHI, &r.LeakRate, &r.Leak95, &r.LeakMax,
			&r.Pressure, &r.PressureMin, &r.Pressure95, &r.PressureMax,
			&r.Events.Central, &r.Events.Obstructive, &r.Events.Hypopnea, &mask); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		r.Date, err = time.Parse(schema.DateFormat, date)
		if err != nil {
			return nil, fmt.Errorf("invalid stored session date %q: %w", date, err)
		}
		r.MaskType = mask.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// dedupeNights keeps one valid record per calendar date, preferring the longest night.
func dedupeNights(records []schema.SessionRecord) []schema.SessionRecord {
	byDate := make(map[string]schema.SessionRecord, len(records))
	for _, r := range records {
		if r.Validate() != "" {
			continue
		}
		key := formatDate(r.Date)
		if prev, ok := byDate[key]; ok && prev.DurationHours >= r.DurationHours {
			continue
		}
		byDate[key] = r
	}
	out := make([]schema.SessionRecord, 0, len(byDate))
	for _, r := range byDate {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// UpsertSessions implements the SessionStore interface. Invalid records are
// skipped and the returned count is the number of nights written.
func (s *SessionStoreImpl) UpsertSessions(ctx context.Context, profile string, records []schema.SessionRecord) (int, error) {
	if !s.enabled() {
		return 0, ErrStoreDisabled
	}
	nights := dedupeNights(records)
	if len(nights) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE profile = %s AND session_date = %s",
		SessionsTable, s.placeholder(1), s.placeholder(2))
	insertQuery := fmt.Sprintf("INSERT INTO %s (profile, %s) VALUES (%s)",
		SessionsTable, sessionColumns, s.placeholders(1, 15))

	for _, r := range nights {
		date := formatDate(r.Date)
		if _, err := tx.ExecContext(ctx, deleteQuery, profile, date); err != nil {
			return 0, fmt.Errorf("failed to replace session %s: %w", date, err)
		}
		var mask any
		if r.MaskType != "" {
			mask = r.MaskType
		}
		if _, err := tx.ExecContext(ctx, insertQuery, profile, date,
			r.DurationHours, r.AHI, r.LeakRate, r.Leak95, r.LeakMax,
			r.Pressure, r.PressureMin, r.Pressure95, r.PressureMax,
			r.Events.Central, r.Events.Obstructive, r.Events.Hypopnea, mask); err != nil {
			return 0, fmt.Errorf("failed to insert session %s: %w", date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sessions: %w", err)
	}
	return len(nights), nil
}

// RecordRun implements the RunRecorder interface. The none backend records
// nothing and returns an empty run ID.
func (s *SessionStoreImpl) RecordRun(ctx context.Context, profile string, ref time.Time, recordCount int, params map[string]any, scores map[schema.ScoreType]schema.CompositeScore) (string, error) {
	if !s.enabled() {
		return "", nil
	}

	var configJSON *string
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("failed to marshal run params: %w", err)
		}
		encoded := string(raw)
		configJSON = &encoded
	}

	runID := ulid.Make().String()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	runQuery := fmt.Sprintf("INSERT INTO %s (run_id, profile, reference_date, created_at, record_count, config_params) VALUES (%s)",
		RunsTable, s.placeholders(1, 6))
	if _, err := tx.ExecContext(ctx, runQuery, runID, profile, formatDate(ref), formatTime(s.now()), recordCount, configJSON); err != nil {
		return "", fmt.Errorf("failed to insert analysis run: %w", err)
	}

	scoreQuery := fmt.Sprintf("INSERT INTO %s (run_id, score_type, overall, label, components) VALUES (%s)",
		RunScoresTable, s.placeholders(1, 5))
	for _, st := range schema.AllScoreTypes {
		score, ok := scores[st]
		if !ok {
			continue
		}
		components, err := json.Marshal(score.Components)
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s components: %w", st, err)
		}
		if _, err := tx.ExecContext(ctx, scoreQuery, runID, string(st), score.Overall, score.Label, string(components)); err != nil {
			return "", fmt.Errorf("failed to insert %s score: %w", st, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit analysis run: %w", err)
	}
	return runID, nil
}

// ListRuns implements the SessionStore interface. A limit of zero or less returns every run.
func (s *SessionStoreImpl) ListRuns(ctx context.Context, profile string, limit int) ([]schema.RunRecord, error) {
	if !s.enabled() {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT run_id, profile, reference_date, created_at, record_count, config_params FROM %s WHERE profile = %s ORDER BY run_id DESC",
		RunsTable, s.placeholder(1))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []schema.RunRecord
	for rows.Next() {
		var (
			run       schema.RunRecord
			refDate   string
			createdAt string
			params    sql.NullString
		)
		if err := rows.Scan(&run.RunID, &run.Profile, &refDate, &createdAt, &run.RecordCount, &params); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		if run.ReferenceDate, err = time.Parse(schema.DateFormat, refDate); err != nil {
			return nil, fmt.Errorf("invalid stored reference date %q: %w", refDate, err)
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("invalid stored run time %q: %w", createdAt, err)
		}
		if params.Valid {
			p := params.String
			run.ConfigParams = &p
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListRunScores implements the SessionStore interface.
func (s *SessionStoreImpl) ListRunScores(ctx context.Context, runID string) ([]schema.RunScoreRecord, error) {
	if !s.enabled() {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT run_id, score_type, overall, label, components FROM %s WHERE run_id = %s ORDER BY score_type",
		RunScoresTable, s.placeholder(1))
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scores []schema.RunScoreRecord
	for rows.Next() {
		var (
			score      schema.RunScoreRecord
			components sql.NullString
		)
		if err := rows.Scan(&score.RunID, &score.ScoreType, &score.Overall, &score.Label, &components); err != nil {
			return nil, fmt.Errorf("failed to scan run score: %w", err)
		}
		score.Components = components.String
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

// GetStatus implements the SessionStore interface.
func (s *SessionStoreImpl) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.enabled(),
		TableSizes: make(map[string]int64),
	}
	if !s.enabled() {
		return status, nil
	}

	for _, table := range []string{SessionsTable, RunsTable, RunScoresTable} {
		var count int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to count %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalSessions = int(status.TableSizes[SessionsTable])
	status.TotalRuns = int(status.TableSizes[RunsTable])

	if status.TotalSessions > 0 {
		var first, last string
		query := fmt.Sprintf("SELECT MIN(session_date), MAX(session_date) FROM %s", SessionsTable)
		if err := s.db.QueryRowContext(ctx, query).Scan(&first, &last); err != nil {
			return status, fmt.Errorf("failed to read session range: %w", err)
		}
		status.FirstSession, _ = time.Parse(schema.DateFormat, first)
		status.LastSession, _ = time.Parse(schema.DateFormat, last)
	}

	if status.TotalRuns > 0 {
		var createdAt string
		query := fmt.Sprintf("SELECT run_id, created_at FROM %s ORDER BY run_id DESC LIMIT 1", RunsTable)
		if err := s.db.QueryRowContext(ctx, query).Scan(&status.LastRunID, &createdAt); err != nil {
			return status, fmt.Errorf("failed to read last run: %w", err)
		}
		status.LastRunTime, _ = time.Parse(time.RFC3339Nano, createdAt)
	}
	return status, nil
}

// Clear implements the SessionStore interface.
func (s *SessionStoreImpl) Clear(ctx context.Context) error {
	if !s.enabled() {
		return nil
	}
	for _, table := range []string{RunScoresTable, RunsTable, SessionsTable} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Close implements the SessionStore interface.
func (s *SessionStoreImpl) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
