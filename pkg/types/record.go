package types

import (
	"fmt"
	"time"
)

// OperationType classifies the outcome of a single cache decision.
type OperationType string

const (
	OpExactHit     OperationType = "exact_hit"
	OpSemanticHit  OperationType = "semantic_hit"
	OpIntentHit    OperationType = "intent_hit"
	OpExactMiss    OperationType = "exact_miss"
	OpSemanticMiss OperationType = "semantic_miss"
	OpCacheError   OperationType = "cache_error"
)

// IsHit reports whether the operation answered the query from the cache.
func (t OperationType) IsHit() bool {
	switch t {
	case OpExactHit, OpSemanticHit, OpIntentHit:
		return true
	}
	return false
}

// Resolution strategies recorded on an operation.
const (
	StrategyExact         = "exact"
	StrategySemantic      = "semantic"
	StrategyIntent        = "intent"
	StrategyExactDegraded = "exact_degraded"
)

// QueryInfo carries the query metadata captured at decision time. Original
// may be empty or a placeholder when an upstream privacy filter redacted it;
// the engine accepts that without error.
type QueryInfo struct {
	Original   string   `json:"original,omitempty"`
	Normalized string   `json:"normalized"`
	Hash       string   `json:"hash"`
	Intent     string   `json:"intent,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// TokenDelta is the economic accounting of one decision. Invariants:
// Saved = WithoutCache - WithCache, SavedPercent in [0, 100], and
// WithoutCache == 0 implies SavedPercent == 0.
type TokenDelta struct {
	WithoutCache int     `json:"tokens_without_cache"`
	WithCache    int     `json:"tokens_with_cache"`
	Saved        int     `json:"tokens_saved"`
	SavedPercent float64 `json:"saved_percent"`
	CostWithout  float64 `json:"cost_without"`
	CostWith     float64 `json:"cost_with"`
	CostSaved    float64 `json:"cost_saved"`
}

// SemanticMatch holds similarity data when semantic matching was attempted.
type SemanticMatch struct {
	Similarity    float64 `json:"similarity"`
	Confidence    float64 `json:"confidence"`
	ThresholdUsed float64 `json:"threshold_used"`
	ThresholdMet  bool    `json:"threshold_met"`

	// SimilarQueries is a read-only index count of candidates at or above
	// threshold, never an object reference.
	SimilarQueries int `json:"similar_queries,omitempty"`
}

// CacheMetadata is a snapshot of the matched entry at decision time.
type CacheMetadata struct {
	Age          time.Duration `json:"age"`
	TTLRemaining time.Duration `json:"ttl_remaining"`
	AccessCount  int64         `json:"access_count"`
}

// OptimizationLevel buckets the savings percentage of one operation.
type OptimizationLevel string

const (
	LevelNone     OptimizationLevel = "none"
	LevelLow      OptimizationLevel = "low"
	LevelMedium   OptimizationLevel = "medium"
	LevelHigh     OptimizationLevel = "high"
	LevelCritical OptimizationLevel = "critical"
)

// RiskLevel is the qualitative eviction-risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// SuggestionKind is the closed set of optimization suggestions. Core logic
// matches on kinds; text rendering happens only at the output boundary.
type SuggestionKind int

const (
	SuggestNone SuggestionKind = iota
	SuggestExtendTTL
	SuggestPinHotEntry
	SuggestLowerThreshold
	SuggestReviewThreshold
	SuggestWarmCache
	SuggestInvestigateErrors
)

// Suggestion is one insight variant with its parameters.
type Suggestion struct {
	Kind       SuggestionKind `json:"kind"`
	Similarity float64        `json:"similarity,omitempty"`
	Threshold  float64        `json:"threshold,omitempty"`
}

// String renders the suggestion as human-readable text. This is the only
// place suggestion text is produced.
func (s Suggestion) String() string {
	switch s.Kind {
	case SuggestExtendTTL:
		return "entry is valuable but close to expiry; extend its TTL"
	case SuggestPinHotEntry:
		return "entry is hot; pin it or raise its TTL to avoid eviction"
	case SuggestLowerThreshold:
		return fmt.Sprintf("near miss at similarity %.2f against threshold %.2f; consider lowering the semantic threshold", s.Similarity, s.Threshold)
	case SuggestReviewThreshold:
		return fmt.Sprintf("hit barely cleared threshold (%.2f vs %.2f); review threshold calibration", s.Similarity, s.Threshold)
	case SuggestWarmCache:
		return "repeated misses for this intent; warm the cache for it"
	case SuggestInvestigateErrors:
		return "backing store errors on the query path; investigate storage health"
	default:
		return "no action"
	}
}

// OptimizationInsight is the derived assessment attached to a record.
type OptimizationInsight struct {
	Level        OptimizationLevel `json:"level"`
	ROIScore     float64           `json:"roi_score"`
	EvictionRisk RiskLevel         `json:"eviction_risk"`
	Suggestions  []Suggestion      `json:"suggestions,omitempty"`
}

// OperationRecord is the immutable audit record of one cache decision.
// It is created once per resolved query and never mutated afterward.
type OperationRecord struct {
	OperationID string              `json:"operation_id"`
	Timestamp   time.Time           `json:"timestamp"`
	Type        OperationType       `json:"operation_type"`
	Strategy    string              `json:"strategy_used"`
	Duration    time.Duration       `json:"duration"`
	Query       QueryInfo           `json:"query"`
	Tokens      TokenDelta          `json:"tokens"`
	Semantic    *SemanticMatch      `json:"semantic,omitempty"`
	Cache       *CacheMetadata      `json:"cache,omitempty"`
	Insight     OptimizationInsight `json:"insight"`
	Error       string              `json:"error,omitempty"`
}

// SuggestionTexts renders the record's suggestions for output surfaces.
func (r OperationRecord) SuggestionTexts() []string {
	if len(r.Insight.Suggestions) == 0 {
		return nil
	}
	texts := make([]string, len(r.Insight.Suggestions))
	for i, s := range r.Insight.Suggestions {
		texts[i] = s.String()
	}
	return texts
}
