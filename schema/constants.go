package schema

// Custom string types for type safety.
type (
	// Metric identifies a per-night or per-window therapy metric.
	Metric string

	// BreakdownKey represents keys used in composite score breakdowns.
	BreakdownKey string

	// ScoreType represents the kind of composite score.
	ScoreType string

	// Band is the ordinal quality band a metric value falls into.
	Band string

	// TrendDirection describes how a metric moved between two windows.
	TrendDirection string

	// InsightKind categorizes a generated insight.
	InsightKind string

	// Level is a high/medium/low tier used for confidence and clinical relevance.
	Level string

	// OutputMode represents the format of the output.
	OutputMode string

	// Status represents the change status of a compared metric.
	Status string

	// DatabaseBackend represents the database backend for session storage.
	DatabaseBackend string
)

// Metrics tracked by the engine.
const (
	AHIMetric         Metric = "ahi"
	LeakMetric        Metric = "leak_rate"
	Leak95Metric      Metric = "leak_95"
	UsageMetric       Metric = "usage_hours"
	PressureMetric    Metric = "pressure"
	ComplianceMetric  Metric = "compliance"
	CentralMetric     Metric = "central_events"
	ObstructiveMetric Metric = "obstructive_events"
	HypopneaMetric    Metric = "hypopnea_events"

	// Insight-only keys that do not map to a single per-night value.
	CentralRatioMetric  Metric = "central_ratio"
	EffectivenessMetric Metric = "effectiveness"
	OverallMetric       Metric = "overall"
)

// Breakdown keys used in composite scores.
const (
	BreakdownAHI        BreakdownKey = "ahi_control"
	BreakdownCompliance BreakdownKey = "compliance"
	BreakdownLeak       BreakdownKey = "leak_management"
	BreakdownSleep      BreakdownKey = "sleep_duration"
	BreakdownUsage      BreakdownKey = "usage"
)

// All composite score types.
const (
	EffectivenessScore ScoreType = "therapy_effectiveness"
	MaskFitScore       ScoreType = "mask_fit"
	SleepQualityScore  ScoreType = "sleep_quality"
)

// All bands, ordered best to worst.
const (
	ExcellentBand Band = "excellent"
	GoodBand      Band = "good"
	WarningBand   Band = "warning"
	CriticalBand  Band = "critical"
)

// All trend directions.
const (
	Improving    TrendDirection = "improving"
	Worsening    TrendDirection = "worsening"
	Stable       TrendDirection = "stable"
	Undetermined TrendDirection = "undetermined"
)

// All insight kinds.
const (
	AchievementInsight    InsightKind = "achievement"
	ImprovementInsight    InsightKind = "improvement"
	ConcernInsight        InsightKind = "concern"
	RecommendationInsight InsightKind = "recommendation"
	TrendInsight          InsightKind = "trend"
	AlertInsight          InsightKind = "alert"
)

// All levels.
const (
	HighLevel   Level = "high"
	MediumLevel Level = "medium"
	LowLevel    Level = "low"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All comparison statuses.
const (
	ImprovedStatus  Status = "improved"
	DeclinedStatus  Status = "declined"
	UnchangedStatus Status = "unchanged"
	UnknownStatus   Status = "unknown"
)

// All session store backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Standard window sizes in days.
const (
	RecentWindowDays    = 7
	BaselineWindowDays  = 30
	InsuranceWindowDays = 30
	ExtendedWindowDays  = 90
)

// TrackedMetrics are the metrics compared between the recent and baseline windows.
var TrackedMetrics = []Metric{AHIMetric, LeakMetric, UsageMetric, ComplianceMetric}

// AllScoreTypes lists every composite score type in display order.
var AllScoreTypes = []ScoreType{EffectivenessScore, MaskFitScore, SleepQualityScore}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidStoreBackends lists all valid session store backends.
var ValidStoreBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// LowerIsBetter reports whether smaller values of the metric indicate better therapy.
func LowerIsBetter(m Metric) bool {
	switch m {
	case AHIMetric, LeakMetric, Leak95Metric, CentralMetric, ObstructiveMetric, HypopneaMetric, CentralRatioMetric:
		return true
	default:
		return false
	}
}

// GetDefaultWeights returns the fixed weight map for a given score type.
func GetDefaultWeights(t ScoreType) map[BreakdownKey]float64 {
	switch t {
	case MaskFitScore:
		return map[BreakdownKey]float64{
			BreakdownLeak: 1.0,
		}
	case SleepQualityScore:
		return map[BreakdownKey]float64{
			BreakdownAHI:        0.40,
			BreakdownUsage:      0.30,
			BreakdownCompliance: 0.30,
		}
	default: // EffectivenessScore
		return map[BreakdownKey]float64{
			BreakdownAHI:        0.40,
			BreakdownCompliance: 0.30,
			BreakdownLeak:       0.20,
			BreakdownSleep:      0.10,
		}
	}
}

// BandRank returns the ordinal position of a band, 0 being the best.
func BandRank(b Band) int {
	switch b {
	case ExcellentBand:
		return 0
	case GoodBand:
		return 1
	case WarningBand:
		return 2
	default:
		return 3
	}
}

// LevelRank returns the ordinal position of a level, higher being more important.
func LevelRank(l Level) int {
	switch l {
	case HighLevel:
		return 2
	case MediumLevel:
		return 1
	default:
		return 0
	}
}
