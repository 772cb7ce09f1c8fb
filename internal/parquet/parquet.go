// Package parquet provides data structures and functions for exporting therapy
// sessions and analysis history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/sleepdata/cpapinsight/schema"
)

// TherapySession represents one stored night of therapy.
// This struct maps to the therapy_sessions database table.
type TherapySession struct {
	// Profile is the patient profile the night belongs to
	Profile string `parquet:"profile,snappy"`

	// SessionDate is the calendar date of the night (midnight UTC)
	SessionDate time.Time `parquet:"session_date,snappy"`

	DurationHours float64 `parquet:"duration_hours,snappy"`
	AHI           float64 `parquet:"ahi,snappy"`

	// LeakRate is the mean leak in L/min
	LeakRate float64 `parquet:"leak_rate,snappy"`
	Leak95   float64 `parquet:"leak_95,snappy"`
	LeakMax  float64 `parquet:"leak_max,snappy"`

	// Pressure is the mean pressure in cmH2O
	Pressure    float64 `parquet:"pressure,snappy"`
	PressureMin float64 `parquet:"pressure_min,snappy"`
	Pressure95  float64 `parquet:"pressure_95,snappy"`
	PressureMax float64 `parquet:"pressure_max,snappy"`

	CentralEvents     float64 `parquet:"central_events,snappy"`
	ObstructiveEvents float64 `parquet:"obstructive_events,snappy"`
	HypopneaEvents    float64 `parquet:"hypopnea_events,snappy"`

	// MaskType is the interface in use that night (nullable)
	MaskType *string `parquet:"mask_type,optional,snappy"`
}

// AnalysisRun represents a single recorded analysis with metadata.
// This struct maps to the therapy_analysis_runs database table.
type AnalysisRun struct {
	// RunID is the ULID of the run
	RunID string `parquet:"run_id,snappy"`

	Profile string `parquet:"profile,snappy"`

	// ReferenceDate is the date every analysis window ended on
	ReferenceDate time.Time `parquet:"reference_date,snappy"`

	// CreatedAt is when the run was recorded (stored as TIMESTAMP with nanosecond precision)
	CreatedAt time.Time `parquet:"created_at,snappy"`

	// RecordCount is the number of valid nights analyzed
	RecordCount int32 `parquet:"record_count,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// RunScore is one composite score recorded with an analysis run.
// This struct maps to the therapy_run_scores database table.
type RunScore struct {
	RunID     string  `parquet:"run_id,snappy"`
	ScoreType string  `parquet:"score_type,snappy"`
	Overall   float64 `parquet:"overall,snappy"`
	Label     string  `parquet:"label,snappy"`

	// Components is the JSON-encoded component breakdown
	Components string `parquet:"components,snappy"`
}

// writeParquet writes rows of any struct type to a Parquet file, inferring the schema from its tags.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteTherapySessionsParquet writes a slice of TherapySession structs to a Parquet file.
func WriteTherapySessionsParquet(data []TherapySession, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteAnalysisRunsParquet writes a slice of AnalysisRun structs to a Parquet file.
func WriteAnalysisRunsParquet(data []AnalysisRun, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteRunScoresParquet writes a slice of RunScore structs to a Parquet file.
func WriteRunScoresParquet(data []RunScore, outputPath string) error {
	return writeParquet(data, outputPath)
}

// ReadTherapySessionsParquet reads a session export written by WriteTherapySessionsParquet.
func ReadTherapySessionsParquet(path string) ([]TherapySession, error) {
	rows, err := parquet.ReadFile[TherapySession](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	return rows, nil
}

// ConvertSessionRecords converts engine records into export rows for a profile.
func ConvertSessionRecords(profile string, records []schema.SessionRecord) []TherapySession {
	result := make([]TherapySession, len(records))
	for i, r := range records {
		result[i] = TherapySession{
			Profile:           profile,
			SessionDate:       schema.Day(r.Date),
			DurationHours:     r.DurationHours,
			AHI:               r.AHI,
			LeakRate:          r.LeakRate,
			Leak95:            r.Leak95,
			LeakMax:           r.LeakMax,
			Pressure:          r.Pressure,
			PressureMin:       r.PressureMin,
			Pressure95:        r.Pressure95,
			PressureMax:       r.PressureMax,
			CentralEvents:     r.Events.Central,
			ObstructiveEvents: r.Events.Obstructive,
			HypopneaEvents:    r.Events.Hypopnea,
		}
		if r.MaskType != "" {
			mask := r.MaskType
			result[i].MaskType = &mask
		}
	}
	return result
}

// SessionRecords converts export rows back into engine records.
func SessionRecords(rows []TherapySession) []schema.SessionRecord {
	result := make([]schema.SessionRecord, len(rows))
	for i, row := range rows {
		result[i] = schema.SessionRecord{
			Date:          schema.Day(row.SessionDate.UTC()),
			DurationHours: row.DurationHours,
			AHI:           row.AHI,
			LeakRate:      row.LeakRate,
			Pressure:      row.Pressure,
			Events: schema.EventCounts{
				Central:     row.CentralEvents,
				Obstructive: row.ObstructiveEvents,
				Hypopnea:    row.HypopneaEvents,
			},
			Leak95:      row.Leak95,
			LeakMax:     row.LeakMax,
			PressureMin: row.PressureMin,
			Pressure95:  row.Pressure95,
			PressureMax: row.PressureMax,
		}
		if row.MaskType != nil {
			result[i].MaskType = *row.MaskType
		}
	}
	return result
}

// ConvertAnalysisRunRecords converts store records to Parquet rows.
func ConvertAnalysisRunRecords(records []schema.RunRecord) []AnalysisRun {
	result := make([]AnalysisRun, len(records))
	for i, r := range records {
		result[i] = AnalysisRun{
			RunID:         r.RunID,
			Profile:       r.Profile,
			ReferenceDate: r.ReferenceDate,
			CreatedAt:     r.CreatedAt,
			RecordCount:   r.RecordCount,
			ConfigParams:  r.ConfigParams,
		}
	}
	return result
}

// ConvertRunScoreRecords converts store records to Parquet rows.
func ConvertRunScoreRecords(records []schema.RunScoreRecord) []RunScore {
	result := make([]RunScore, len(records))
	for i, r := range records {
		result[i] = RunScore(r)
	}
	return result
}
