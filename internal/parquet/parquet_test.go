package parquet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/sleepdata/cpapinsight/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []schema.SessionRecord {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []schema.SessionRecord{
		{
			Date:          start,
			DurationHours: 7.2,
			AHI:           2.1,
			LeakRate:      12,
			Pressure:      9.5,
			Events:        schema.EventCounts{Central: 2, Obstructive: 8, Hypopnea: 5},
			Leak95:        22,
			LeakMax:       40,
			PressureMin:   6,
			Pressure95:    11.5,
			PressureMax:   13,
			MaskType:      "nasal pillows",
		},
		{Date: start.AddDate(0, 0, 1), DurationHours: 5.5, AHI: 4.4, LeakRate: 30, Pressure: 10.1},
	}
}

func TestStructTags(t *testing.T) {
	tests := []struct {
		name    string
		model   any
		columns []string
	}{
		{
			name:  "therapy session",
			model: new(TherapySession),
			columns: []string{
				"profile", "session_date", "duration_hours", "ahi", "leak_rate", "leak_95", "leak_max",
				"pressure", "pressure_min", "pressure_95", "pressure_max",
				"central_events", "obstructive_events", "hypopnea_events", "mask_type",
			},
		},
		{
			name:    "analysis run",
			model:   new(AnalysisRun),
			columns: []string{"run_id", "profile", "reference_date", "created_at", "record_count", "config_params"},
		},
		{
			name:    "run score",
			model:   new(RunScore),
			columns: []string{"run_id", "score_type", "overall", "label", "components"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parquet.SchemaOf(tt.model)
			require.NotNil(t, s)
			for _, colName := range tt.columns {
				_, ok := s.Lookup(colName)
				assert.True(t, ok, "Column %s should exist in schema", colName)
			}
		})
	}
}

func TestTherapySessionsRoundTrip(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "sessions.parquet")
	records := sampleRecords()

	require.NoError(t, WriteTherapySessionsParquet(ConvertSessionRecords("alice", records), outputPath))

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	rows, err := ReadTherapySessionsParquet(outputPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0].Profile)
	require.NotNil(t, rows[0].MaskType)
	assert.Nil(t, rows[1].MaskType)

	back := SessionRecords(rows)
	for i := range records {
		assert.True(t, records[i].Date.Equal(back[i].Date), "date %d", i)
		back[i].Date = records[i].Date
	}
	assert.Equal(t, records, back)
}

func TestWriteAnalysisRunsParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "runs.parquet")
	params := `{"window":30}`
	runs := ConvertAnalysisRunRecords([]schema.RunRecord{
		{RunID: "01HT0000000000000000000000", Profile: "alice", ReferenceDate: time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC), CreatedAt: time.Now().UTC(), RecordCount: 30, ConfigParams: &params},
		{RunID: "01HT0000000000000000000001", Profile: "alice", ReferenceDate: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), CreatedAt: time.Now().UTC(), RecordCount: 31},
	})

	require.NoError(t, WriteAnalysisRunsParquet(runs, outputPath))

	rows, err := parquet.ReadFile[AnalysisRun](outputPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, runs[0].RunID, rows[0].RunID)
	require.NotNil(t, rows[0].ConfigParams)
	assert.Equal(t, params, *rows[0].ConfigParams)
	assert.Nil(t, rows[1].ConfigParams)
	assert.Equal(t, int32(31), rows[1].RecordCount)
}

func TestWriteRunScoresParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "scores.parquet")
	scores := ConvertRunScoreRecords([]schema.RunScoreRecord{
		{RunID: "r1", ScoreType: string(schema.EffectivenessScore), Overall: 94, Label: "excellent", Components: `{"ahi_control":85}`},
		{RunID: "r1", ScoreType: string(schema.MaskFitScore), Overall: 100, Label: "excellent seal", Components: `{"leak_management":100}`},
	})

	require.NoError(t, WriteRunScoresParquet(scores, outputPath))

	rows, err := parquet.ReadFile[RunScore](outputPath)
	require.NoError(t, err)
	assert.Equal(t, scores, rows)
}

func TestWriteEmptyParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteTherapySessionsParquet(nil, outputPath))

	rows, err := ReadTherapySessionsParquet(outputPath)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadTherapySessionsParquetMissingFile(t *testing.T) {
	_, err := ReadTherapySessionsParquet(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}
