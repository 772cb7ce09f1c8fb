// Package importer reads nightly session exports (CSV, JSON or Parquet) into
// session records.
package importer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sleepdata/cpapinsight/internal/parquet"
	"github.com/sleepdata/cpapinsight/schema"
)

// Supported export formats.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// dateLayouts are tried in order when parsing a session date or start time.
var dateLayouts = []string{
	schema.DateFormat,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// rawSession is one exported night. Device exports name the fields after the
// device model (duration_minutes, mask_leak_avg, pressure_avg), while
// hand-written files may use the normalized names.
type rawSession struct {
	Date              string   `json:"date"`
	SessionDate       string   `json:"session_date"`
	StartTime         string   `json:"start_time"`
	DurationMinutes   *float64 `json:"duration_minutes"`
	DurationHours     *float64 `json:"duration_hours"`
	AHI               float64  `json:"ahi"`
	MaskLeakAvg       *float64 `json:"mask_leak_avg"`
	LeakRate          *float64 `json:"leak_rate"`
	MaskLeak95        float64  `json:"mask_leak_95"`
	MaskLeakMax       float64  `json:"mask_leak_max"`
	PressureAvg       *float64 `json:"pressure_avg"`
	Pressure          *float64 `json:"pressure"`
	PressureMin       float64  `json:"pressure_min"`
	Pressure95        float64  `json:"pressure_95"`
	PressureMax       float64  `json:"pressure_max"`
	ObstructiveApneas float64  `json:"obstructive_apneas"`
	CentralApneas     float64  `json:"central_apneas"`
	Hypopneas         float64  `json:"hypopneas"`
	MaskType          string   `json:"mask_type"`
}

func firstOf(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

// parseDate returns the calendar date of a session, or the zero time when the
// value cannot be parsed so that the record is skipped as invalid.
func parseDate(values ...string) time.Time {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return schema.Day(t)
			}
		}
		return time.Time{}
	}
	return time.Time{}
}

// record normalizes the raw session into an engine record.
func (s rawSession) record() schema.SessionRecord {
	hours := firstOf(s.DurationHours)
	if s.DurationHours == nil && s.DurationMinutes != nil {
		hours = *s.DurationMinutes / 60
	}
	return schema.SessionRecord{
		Date:          parseDate(s.Date, s.SessionDate, s.StartTime),
		DurationHours: hours,
		AHI:           s.AHI,
		LeakRate:      firstOf(s.LeakRate, s.MaskLeakAvg),
		Pressure:      firstOf(s.Pressure, s.PressureAvg),
		Events: schema.EventCounts{
			Central:     s.CentralApneas,
			Obstructive: s.ObstructiveApneas,
			Hypopnea:    s.Hypopneas,
		},
		Leak95:      s.MaskLeak95,
		LeakMax:     s.MaskLeakMax,
		PressureMin: s.PressureMin,
		Pressure95:  s.Pressure95,
		PressureMax: s.PressureMax,
		MaskType:    strings.TrimSpace(s.MaskType),
	}
}

// DetectFormat maps a file extension onto an export format.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported session file %q: expected .csv, .json or .parquet", path)
	}
}

// ReadFile reads every session in an export file.
func ReadFile(path string) ([]schema.SessionRecord, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format == FormatParquet {
		rows, err := parquet.ReadTherapySessionsParquet(path)
		if err != nil {
			return nil, err
		}
		return parquet.SessionRecords(rows), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if format == FormatCSV {
		return ParseCSV(f)
	}
	return ParseJSON(f)
}

// ParseJSON decodes either a bare array of sessions or an object with a
// "sessions" array.
func ParseJSON(r io.Reader) ([]schema.SessionRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read session json: %w", err)
	}

	var raws []rawSession
	if err := json.Unmarshal(data, &raws); err != nil {
		var wrapped struct {
			Sessions []rawSession `json:"sessions"`
		}
		if werr := json.Unmarshal(data, &wrapped); werr != nil {
			return nil, fmt.Errorf("failed to decode session json: %w", err)
		}
		raws = wrapped.Sessions
	}

	records := make([]schema.SessionRecord, len(raws))
	for i, raw := range raws {
		records[i] = raw.record()
	}
	return records, nil
}

type columnSetter func(s *rawSession, value float64)

func ptr(v float64) *float64 { return &v }

var numericColumns = map[string]columnSetter{
	"duration_minutes":   func(s *rawSession, v float64) { s.DurationMinutes = ptr(v) },
	"duration_hours":     func(s *rawSession, v float64) { s.DurationHours = ptr(v) },
	"ahi":                func(s *rawSession, v float64) { s.AHI = v },
	"mask_leak_avg":      func(s *rawSession, v float64) { s.MaskLeakAvg = ptr(v) },
	"leak_rate":          func(s *rawSession, v float64) { s.LeakRate = ptr(v) },
	"mask_leak_95":       func(s *rawSession, v float64) { s.MaskLeak95 = v },
	"mask_leak_max":      func(s *rawSession, v float64) { s.MaskLeakMax = v },
	"pressure_avg":       func(s *rawSession, v float64) { s.PressureAvg = ptr(v) },
	"pressure":           func(s *rawSession, v float64) { s.Pressure = ptr(v) },
	"pressure_min":       func(s *rawSession, v float64) { s.PressureMin = v },
	"pressure_95":        func(s *rawSession, v float64) { s.Pressure95 = v },
	"pressure_max":       func(s *rawSession, v float64) { s.PressureMax = v },
	"obstructive_apneas": func(s *rawSession, v float64) { s.ObstructiveApneas = v },
	"central_apneas":     func(s *rawSession, v float64) { s.CentralApneas = v },
	"hypopneas":          func(s *rawSession, v float64) { s.Hypopneas = v },
}

// ParseCSV decodes a session export with a header row. Unknown columns are
// ignored. A value that is not a number becomes NaN so that the night is
// reported as skipped instead of failing the whole import.
func ParseCSV(r io.Reader) ([]schema.SessionRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []schema.SessionRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var records []schema.SessionRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		var raw rawSession
		for i, value := range row {
			if i >= len(header) {
				break
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			switch col := header[i]; col {
			case "date":
				raw.Date = value
			case "session_date":
				raw.SessionDate = value
			case "start_time":
				raw.StartTime = value
			case "mask_type":
				raw.MaskType = value
			default:
				set, ok := numericColumns[col]
				if !ok {
					continue
				}
				v, perr := strconv.ParseFloat(value, 64)
				if perr != nil {
					v = math.NaN()
				}
				set(&raw, v)
			}
		}
		records = append(records, raw.record())
	}
	return records, nil
}

// FileSource serves sessions from an export file. The file is read on every
// call so that edits are picked up.
type FileSource struct {
	Path string
}

// NewFileSource returns a session source backed by an export file.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// LoadSessions implements contract.SessionSource. Exports hold a single
// patient, so the profile is ignored.
func (s *FileSource) LoadSessions(ctx context.Context, _ string, from, to time.Time) ([]schema.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return FilterByDate(records, from, to), nil
}

// FilterByDate keeps records whose calendar date is in [from, to], sorted by
// date. Records without a date are kept so that callers can report them.
func FilterByDate(records []schema.SessionRecord, from, to time.Time) []schema.SessionRecord {
	lo, hi := schema.Day(from), schema.Day(to)
	out := make([]schema.SessionRecord, 0, len(records))
	for _, r := range records {
		if !r.Date.IsZero() {
			d := schema.Day(r.Date)
			if (!from.IsZero() && d.Before(lo)) || (!to.IsZero() && d.After(hi)) {
				continue
			}
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
