// Package analytics reduces windows of operation records into summary
// snapshots and recommendations. Aggregation is a pure function: the same
// record set always yields the same snapshot.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/semcache/semcache/pkg/types"
)

// Config holds aggregation tunables with documented defaults.
type Config struct {
	// TrendThreshold is the ROI delta beyond which the trend is labeled
	// improving (positive) or declining (negative).
	TrendThreshold float64

	// MaxRecommendations caps the recommendation list.
	MaxRecommendations int
}

// DefaultConfig returns the documented defaults: trend threshold ±0.05,
// at most five recommendations.
func DefaultConfig() Config {
	return Config{
		TrendThreshold:     0.05,
		MaxRecommendations: 5,
	}
}

// Aggregate reduces the records falling inside [from, to] into a snapshot.
// Input order does not matter; records are sorted by timestamp before the
// trend split.
func Aggregate(records []types.OperationRecord, from, to time.Time, cfg Config) types.AnalyticsSnapshot {
	snap := types.AnalyticsSnapshot{
		PeriodStart: from,
		PeriodEnd:   to,
		Counts:      make(map[types.OperationType]int),
		Trend:       types.TrendStable,
	}

	window := make([]types.OperationRecord, 0, len(records))
	for _, r := range records {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		window = append(window, r)
	}
	sort.Slice(window, func(i, j int) bool {
		if !window[i].Timestamp.Equal(window[j].Timestamp) {
			return window[i].Timestamp.Before(window[j].Timestamp)
		}
		return window[i].OperationID < window[j].OperationID
	})

	if len(window) == 0 {
		return snap
	}

	var hits, semanticAttempts, semanticHits int
	var roiSum float64
	for _, r := range window {
		snap.Counts[r.Type]++
		snap.TotalOperations++
		snap.TotalTokensSaved += int64(r.Tokens.Saved)
		snap.TotalCostSaved += r.Tokens.CostSaved
		roiSum += r.Insight.ROIScore

		if r.Type.IsHit() {
			hits++
		}
		switch r.Type {
		case types.OpSemanticHit:
			semanticAttempts++
			semanticHits++
		case types.OpSemanticMiss:
			semanticAttempts++
		}
	}

	total := float64(snap.TotalOperations)
	snap.HitRate = float64(hits) / total * 100
	if semanticAttempts > 0 {
		snap.SemanticHitRate = float64(semanticHits) / float64(semanticAttempts) * 100
	}
	snap.AvgTokensSaved = float64(snap.TotalTokensSaved) / total
	snap.AvgCostSaved = snap.TotalCostSaved / total
	snap.AvgROI = roiSum / total

	snap.TrendMagnitude = trendMagnitude(window, from, to)
	switch {
	case snap.TrendMagnitude > cfg.TrendThreshold:
		snap.Trend = types.TrendImproving
	case snap.TrendMagnitude < -cfg.TrendThreshold:
		snap.Trend = types.TrendDeclining
	}

	return snap
}

// trendMagnitude splits the window at its time midpoint and returns the
// second half's average ROI minus the first half's. Either half being empty
// yields zero magnitude.
func trendMagnitude(sorted []types.OperationRecord, from, to time.Time) float64 {
	mid := from.Add(to.Sub(from) / 2)

	var firstSum, secondSum float64
	var firstN, secondN int
	for _, r := range sorted {
		if r.Timestamp.Before(mid) {
			firstSum += r.Insight.ROIScore
			firstN++
		} else {
			secondSum += r.Insight.ROIScore
			secondN++
		}
	}

	if firstN == 0 || secondN == 0 {
		return 0
	}
	return secondSum/float64(secondN) - firstSum/float64(firstN)
}

// Recommend applies the priority-ordered rule list to a snapshot and
// returns up to MaxRecommendations human-readable strings. Rules are fixed
// so identical snapshots always produce identical output.
func Recommend(snap types.AnalyticsSnapshot, cfg Config) []string {
	var recs []string
	add := func(s string) {
		if cfg.MaxRecommendations == 0 || len(recs) < cfg.MaxRecommendations {
			recs = append(recs, s)
		}
	}

	if snap.TotalOperations == 0 {
		return nil
	}

	if errorCount := snap.Counts[types.OpCacheError]; errorCount > 0 {
		add(fmt.Sprintf("%d cache errors in the window; check backing store health", errorCount))
	}

	if snap.Trend == types.TrendDeclining {
		add(fmt.Sprintf("ROI declining (%.3f); review recent workload or policy changes", snap.TrendMagnitude))
	}

	if snap.HitRate < 30 {
		add(fmt.Sprintf("hit rate is %.1f%%; consider enabling semantic matching or lowering the similarity threshold", snap.HitRate))
	}

	semanticAttempts := snap.Counts[types.OpSemanticHit] + snap.Counts[types.OpSemanticMiss]
	if semanticAttempts >= 10 && snap.SemanticHitRate < 25 {
		add(fmt.Sprintf("semantic hit rate is %.1f%% over %d attempts; the threshold may be too strict", snap.SemanticHitRate, semanticAttempts))
	}

	if snap.HitRate >= 30 && snap.AvgTokensSaved < 100 {
		add(fmt.Sprintf("average savings is %.0f tokens per operation; cache larger completions or raise TTLs", snap.AvgTokensSaved))
	}

	if snap.Trend == types.TrendImproving {
		add("ROI improving across the window; current policy is working")
	}

	return recs
}
