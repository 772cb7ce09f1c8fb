package core

import (
	"time"

	"github.com/sleepdata/cpapinsight/schema"
)

var testRef = time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)

// steadyNights returns n consecutive nights ending at testRef built by fill.
// fill receives how many days before testRef the night is.
func steadyNights(n int, fill func(daysAgo int, r *schema.SessionRecord)) []schema.SessionRecord {
	records := make([]schema.SessionRecord, 0, n)
	for daysAgo := n - 1; daysAgo >= 0; daysAgo-- {
		r := schema.SessionRecord{
			Date:          testRef.AddDate(0, 0, -daysAgo),
			DurationHours: 7.5,
			AHI:           2,
			LeakRate:      10,
			Pressure:      10,
			Events:        schema.EventCounts{Central: 1, Obstructive: 5, Hypopnea: 5},
		}
		if fill != nil {
			fill(daysAgo, &r)
		}
		records = append(records, r)
	}
	return records
}

func findInsight(insights []schema.Insight, title string) (schema.Insight, bool) {
	for _, in := range insights {
		if in.Title == title {
			return in, true
		}
	}
	return schema.Insight{}, false
}
