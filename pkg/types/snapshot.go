package types

import "time"

// TrendLabel classifies the ROI trend across an analytics window.
type TrendLabel string

const (
	TrendImproving TrendLabel = "improving"
	TrendDeclining TrendLabel = "declining"
	TrendStable    TrendLabel = "stable"
)

// AnalyticsSnapshot is a derived summary of a window of operation records.
// It is fully recomputable from the records and never independently mutated.
type AnalyticsSnapshot struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	Counts          map[OperationType]int `json:"counts"`
	TotalOperations int                   `json:"total_operations"`

	HitRate         float64 `json:"hit_rate"`
	SemanticHitRate float64 `json:"semantic_hit_rate"`

	TotalTokensSaved int64   `json:"total_tokens_saved"`
	AvgTokensSaved   float64 `json:"avg_tokens_saved"`
	TotalCostSaved   float64 `json:"total_cost_saved"`
	AvgCostSaved     float64 `json:"avg_cost_saved"`

	AvgROI         float64    `json:"avg_roi"`
	TrendMagnitude float64    `json:"trend_magnitude"`
	Trend          TrendLabel `json:"trend"`
}

// Hits returns the number of hit operations in the snapshot.
func (s AnalyticsSnapshot) Hits() int {
	return s.Counts[OpExactHit] + s.Counts[OpSemanticHit] + s.Counts[OpIntentHit]
}
