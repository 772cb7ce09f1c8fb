package algo

import (
	"math"
	"sort"

	"github.com/sleepdata/cpapinsight/schema"
)

// minConfidentNights is the sample size below which an insight is low confidence.
const minConfidentNights = 5

// Priority combines a rule's base weight with the magnitude of its deviation.
// The magnitude adds at most 9, so a higher base always outranks a lower one.
func Priority(base int, deviation float64) int {
	bonus := 0.0
	if d, ok := finite(deviation); ok {
		bonus = math.Min(9, math.Round(math.Abs(d)*10))
	}
	return base*10 + int(bonus)
}

// ConfidenceFor tiers an insight by how many nights of data back it.
func ConfidenceFor(nights, windowDays int) schema.Level {
	if nights < minConfidentNights || windowDays <= 0 {
		return schema.LowLevel
	}
	if float64(nights)/float64(windowDays) >= 0.7 {
		return schema.HighLevel
	}
	return schema.MediumLevel
}

// RankInsights sorts insights by priority in descending order, keeps the
// highest-priority insight per metric and returns at most limit of them.
// A limit of zero or less returns all of them.
func RankInsights(insights []schema.Insight, limit int) []schema.Insight {
	sorted := make([]schema.Insight, len(insights))
	copy(sorted, insights)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if ra, rb := schema.LevelRank(a.ClinicalRelevance), schema.LevelRank(b.ClinicalRelevance); ra != rb {
			return ra > rb
		}
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		return a.Title < b.Title
	})

	seen := make(map[schema.Metric]struct{}, len(sorted))
	ranked := make([]schema.Insight, 0, len(sorted))
	for _, in := range sorted {
		if _, dup := seen[in.Metric]; dup {
			continue
		}
		seen[in.Metric] = struct{}{}
		ranked = append(ranked, in)
	}
	if limit > 0 && len(ranked) > limit {
		return ranked[:limit]
	}
	return ranked
}
