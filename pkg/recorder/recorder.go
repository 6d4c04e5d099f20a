// Package recorder builds the immutable audit record for each cache
// decision, deriving optimization level, ROI score, eviction risk, and
// suggested actions.
package recorder

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/semcache/semcache/pkg/types"
)

// Config holds the tunable parameters of record derivation. The ROI weights
// and risk thresholds are policy, not constants; defaults are documented on
// DefaultConfig.
type Config struct {
	// ROISavedWeight and ROIConfidenceWeight blend saved_percent and match
	// confidence into the ROI score. They must be non-negative and sum to
	// a positive value; the score is normalized by their sum and clamped
	// to [0, 1].
	ROISavedWeight      float64
	ROIConfidenceWeight float64

	// RiskTTLFraction is the remaining-TTL fraction below which eviction
	// risk rises (high below half the fraction, medium below it).
	RiskTTLFraction float64

	// RiskIdle is the idle duration beyond which an entry is considered
	// at eviction risk under recency-based policies.
	RiskIdle time.Duration

	// MaxSuggestions caps suggested actions per record.
	MaxSuggestions int
}

// DefaultConfig returns the documented defaults: ROI = 0.7·saved +
// 0.3·confidence, risk rises below 10% TTL remaining or 30 minutes idle,
// at most three suggestions.
func DefaultConfig() Config {
	return Config{
		ROISavedWeight:      0.7,
		ROIConfidenceWeight: 0.3,
		RiskTTLFraction:     0.10,
		RiskIdle:            30 * time.Minute,
		MaxSuggestions:      3,
	}
}

// Recorder derives OperationRecords. Safe for concurrent use.
type Recorder struct {
	cfg Config
	now func() time.Time
	id  func() string
}

// New creates a Recorder, validating the configuration.
func New(cfg Config) (*Recorder, error) {
	var errs []string
	if cfg.ROISavedWeight < 0 || cfg.ROIConfidenceWeight < 0 {
		errs = append(errs, "roi weights must be non-negative")
	}
	if cfg.ROISavedWeight+cfg.ROIConfidenceWeight <= 0 {
		errs = append(errs, "roi weights must sum to a positive value")
	}
	if cfg.RiskTTLFraction < 0 || cfg.RiskTTLFraction > 1 {
		errs = append(errs, fmt.Sprintf("risk ttl fraction must be in [0,1], got %f", cfg.RiskTTLFraction))
	}
	if cfg.RiskIdle < 0 {
		errs = append(errs, "risk idle must be non-negative")
	}
	if cfg.MaxSuggestions < 0 {
		errs = append(errs, "max suggestions must be non-negative")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid recorder config:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return &Recorder{
		cfg: cfg,
		now: time.Now,
		id:  uuid.NewString,
	}, nil
}

// WithClock overrides the record timestamp source, for tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// WithIDSource overrides the operation ID generator, for tests.
func (r *Recorder) WithIDSource(id func() string) *Recorder {
	r.id = id
	return r
}

// Input carries everything the recorder needs about one decision.
type Input struct {
	Type     types.OperationType
	Strategy string
	Duration time.Duration
	Query    types.QueryInfo
	Tokens   types.TokenDelta
	Semantic *types.SemanticMatch
	Cache    *types.CacheMetadata

	// EntryTTL is the matched entry's full TTL, used with Cache to judge
	// eviction risk. Zero when no entry matched or the entry has no TTL.
	EntryTTL time.Duration

	// Err is set for cache_error operations.
	Err error
}

// Build assembles the immutable record. Same input always yields the same
// derived fields; only the operation ID and timestamp vary.
func (r *Recorder) Build(in Input) types.OperationRecord {
	rec := types.OperationRecord{
		OperationID: r.id(),
		Timestamp:   r.now().UTC(),
		Type:        in.Type,
		Strategy:    in.Strategy,
		Duration:    in.Duration,
		Query:       in.Query,
		Tokens:      in.Tokens,
		Semantic:    in.Semantic,
		Cache:       in.Cache,
	}
	if in.Err != nil {
		rec.Error = in.Err.Error()
	}

	rec.Insight = types.OptimizationInsight{
		Level:        LevelFor(in.Tokens.SavedPercent),
		ROIScore:     r.roiScore(in),
		EvictionRisk: r.evictionRisk(in),
	}
	rec.Insight.Suggestions = r.suggest(in, rec.Insight)

	return rec
}

// LevelFor buckets a savings percentage: critical >=80, high 60-79,
// medium 40-59, low 1-39, none otherwise.
func LevelFor(savedPercent float64) types.OptimizationLevel {
	switch {
	case savedPercent >= 80:
		return types.LevelCritical
	case savedPercent >= 60:
		return types.LevelHigh
	case savedPercent >= 40:
		return types.LevelMedium
	case savedPercent >= 1:
		return types.LevelLow
	default:
		return types.LevelNone
	}
}

// roiScore blends saved_percent and confidence with the configured weights,
// normalized and clamped to [0, 1]. Monotonic in both inputs.
func (r *Recorder) roiScore(in Input) float64 {
	confidence := 0.0
	if in.Semantic != nil {
		confidence = in.Semantic.Confidence
	} else if in.Type == types.OpExactHit || in.Type == types.OpIntentHit {
		confidence = 1.0
	}

	sum := r.cfg.ROISavedWeight + r.cfg.ROIConfidenceWeight
	score := (r.cfg.ROISavedWeight*(in.Tokens.SavedPercent/100) +
		r.cfg.ROIConfidenceWeight*confidence) / sum

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// evictionRisk classifies how close the matched entry is to leaving the
// cache. Entries without cache metadata (misses, errors) are low risk.
func (r *Recorder) evictionRisk(in Input) types.RiskLevel {
	if in.Cache == nil {
		return types.RiskLow
	}

	if in.EntryTTL > 0 {
		frac := float64(in.Cache.TTLRemaining) / float64(in.EntryTTL)
		if frac < r.cfg.RiskTTLFraction/2 {
			return types.RiskHigh
		}
		if frac < r.cfg.RiskTTLFraction {
			return types.RiskMedium
		}
	}

	if r.cfg.RiskIdle > 0 && in.Cache.Age > 0 {
		idle := in.Cache.Age // age stands in for idle when access data is absent
		if in.Cache.AccessCount > 0 {
			idle = in.Cache.Age / time.Duration(in.Cache.AccessCount+1)
		}
		if idle > 2*r.cfg.RiskIdle {
			return types.RiskHigh
		}
		if idle > r.cfg.RiskIdle {
			return types.RiskMedium
		}
	}

	return types.RiskLow
}

// nearThresholdMargin is the similarity band around the threshold treated
// as "marginal" for suggestion rules.
const nearThresholdMargin = 0.05

// suggest evaluates the fixed, ordered rule table. Rules fire in order and
// the list is capped at MaxSuggestions, so identical inputs always produce
// identical suggestions.
func (r *Recorder) suggest(in Input, insight types.OptimizationInsight) []types.Suggestion {
	var out []types.Suggestion
	add := func(s types.Suggestion) {
		if r.cfg.MaxSuggestions == 0 || len(out) < r.cfg.MaxSuggestions {
			out = append(out, s)
		}
	}

	// 1. Storage errors dominate everything else.
	if in.Type == types.OpCacheError {
		add(types.Suggestion{Kind: types.SuggestInvestigateErrors})
		return out
	}

	// 2. Valuable entry about to expire.
	if in.Type.IsHit() && insight.EvictionRisk == types.RiskHigh &&
		(insight.Level == types.LevelHigh || insight.Level == types.LevelCritical) {
		add(types.Suggestion{Kind: types.SuggestExtendTTL})
	}

	// 3. Hot entry worth protecting.
	if in.Type.IsHit() && in.Cache != nil && in.Cache.AccessCount >= 10 {
		add(types.Suggestion{Kind: types.SuggestPinHotEntry})
	}

	// 4. Semantic near miss: best candidate just under threshold.
	if in.Type == types.OpSemanticMiss && in.Semantic != nil &&
		in.Semantic.Similarity >= in.Semantic.ThresholdUsed-nearThresholdMargin {
		add(types.Suggestion{
			Kind:       types.SuggestLowerThreshold,
			Similarity: in.Semantic.Similarity,
			Threshold:  in.Semantic.ThresholdUsed,
		})
	}

	// 5. Semantic hit that barely cleared the bar.
	if in.Type == types.OpSemanticHit && in.Semantic != nil &&
		in.Semantic.Similarity < in.Semantic.ThresholdUsed+nearThresholdMargin {
		add(types.Suggestion{
			Kind:       types.SuggestReviewThreshold,
			Similarity: in.Semantic.Similarity,
			Threshold:  in.Semantic.ThresholdUsed,
		})
	}

	// 6. Misses carrying an intent suggest warming.
	if !in.Type.IsHit() && in.Query.Intent != "" {
		add(types.Suggestion{Kind: types.SuggestWarmCache})
	}

	return out
}
