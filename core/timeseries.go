package core

import (
	"errors"
	"time"

	"github.com/sleepdata/cpapinsight/core/agg"
	"github.com/sleepdata/cpapinsight/core/algo"
	"github.com/sleepdata/cpapinsight/schema"
)

// ScoreTimeseries computes the composite scores at points reference dates
// spaced intervalDays apart and ending at ref. Points are ordered oldest first.
func ScoreTimeseries(records []schema.SessionRecord, ref time.Time, intervalDays, points, windowDays int, rule algo.ComplianceRule) (schema.TimeseriesResult, error) {
	if intervalDays < 1 {
		return schema.TimeseriesResult{}, errors.New("interval must be at least 1 day")
	}
	if points < 1 {
		return schema.TimeseriesResult{}, errors.New("points must be at least 1")
	}

	valid, _ := agg.Sanitize(records)
	result := schema.TimeseriesResult{
		IntervalDays: intervalDays,
		WindowDays:   windowDays,
		Points:       make([]schema.TimeseriesPoint, points),
	}

	end := schema.Day(ref)
	for i := range points {
		at := end.AddDate(0, 0, -intervalDays*(points-1-i))
		scores := ScoreRecords(valid, at, windowDays, rule)

		point := schema.TimeseriesPoint{
			ReferenceDate: at,
			RecordCount:   len(agg.Select(valid, windowDays, at)),
			Scores:        make(map[schema.ScoreType]float64, len(scores)),
		}
		for st, s := range scores {
			point.Scores[st] = s.Overall
		}
		result.Points[i] = point
	}
	return result, nil
}
