package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCachePolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CachePolicy)
		wantErr bool
	}{
		{"defaults valid", func(p *CachePolicy) {}, false},
		{"zero max size", func(p *CachePolicy) { p.MaxSizeBytes = 0 }, true},
		{"negative ttl", func(p *CachePolicy) { p.DefaultTTL = -time.Second }, true},
		{"bad eviction policy", func(p *CachePolicy) { p.Eviction = "random" }, true},
		{"threshold above 1", func(p *CachePolicy) { p.SemanticThreshold = 1.5 }, true},
		{"threshold below 0", func(p *CachePolicy) { p.SemanticThreshold = -0.1 }, true},
		{"threshold boundary", func(p *CachePolicy) { p.SemanticThreshold = 1.0 }, false},
		{"negative retries", func(p *CachePolicy) { p.EvictionDeleteRetries = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCacheEntry_IsExpired(t *testing.T) {
	now := time.Now()

	noTTL := CacheEntry{CreatedAt: now.Add(-time.Hour)}
	if noTTL.IsExpired(now) {
		t.Error("entry without TTL should never expire")
	}

	fresh := CacheEntry{CreatedAt: now, TTL: time.Hour}
	if fresh.IsExpired(now) {
		t.Error("fresh entry should not be expired")
	}

	stale := CacheEntry{CreatedAt: now.Add(-2 * time.Hour), TTL: time.Hour}
	if !stale.IsExpired(now) {
		t.Error("entry past TTL should be expired")
	}
}

func TestCacheEntry_Touch(t *testing.T) {
	now := time.Now()
	e := CacheEntry{Key: "k", CreatedAt: now, LastAccessed: now, AccessCount: 2}

	later := now.Add(time.Minute)
	touched := e.Touch(later)

	if touched.AccessCount != 3 || !touched.LastAccessed.Equal(later) {
		t.Errorf("Touch produced %+v", touched)
	}
	// Receiver must be unchanged.
	if e.AccessCount != 2 || !e.LastAccessed.Equal(now) {
		t.Error("Touch mutated the receiver")
	}
}

func TestCacheEntry_TTLRemaining(t *testing.T) {
	now := time.Now()
	e := CacheEntry{CreatedAt: now.Add(-40 * time.Minute), TTL: time.Hour}

	remaining := e.TTLRemaining(now)
	if remaining != 20*time.Minute {
		t.Errorf("TTLRemaining = %v, want 20m", remaining)
	}

	expired := CacheEntry{CreatedAt: now.Add(-2 * time.Hour), TTL: time.Hour}
	if expired.TTLRemaining(now) != 0 {
		t.Error("expired entry should have zero TTL remaining")
	}
}

func TestCacheEntry_Clone(t *testing.T) {
	e := CacheEntry{
		Key:       "k",
		Value:     []byte("v"),
		Embedding: []float32{1, 2},
		Tags:      []string{"a"},
	}

	c := e.Clone()
	c.Value[0] = 'x'
	c.Embedding[0] = 9
	c.Tags[0] = "b"

	if e.Value[0] != 'v' || e.Embedding[0] != 1 || e.Tags[0] != "a" {
		t.Error("Clone aliases the original entry")
	}
}

func TestOperationRecord_CompactRoundTrip(t *testing.T) {
	full := OperationRecord{
		OperationID: "op-1",
		Timestamp:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Type:        OpSemanticHit,
		Strategy:    StrategySemantic,
		Duration:    1500 * time.Microsecond,
		Query: QueryInfo{
			Original:   "", // redacted upstream
			Normalized: "what is machine learning",
			Hash:       "abc123",
			Intent:     "definition",
			Tags:       []string{"ml"},
		},
		Tokens: TokenDelta{
			WithoutCache: 1200,
			WithCache:    0,
			Saved:        1200,
			SavedPercent: 100,
			CostWithout:  0.0024,
			CostWith:     0,
			CostSaved:    0.0024,
		},
		Semantic: &SemanticMatch{
			Similarity:     0.92,
			Confidence:     0.92,
			ThresholdUsed:  0.85,
			ThresholdMet:   true,
			SimilarQueries: 3,
		},
		Cache: &CacheMetadata{
			Age:          5 * time.Minute,
			TTLRemaining: 55 * time.Minute,
			AccessCount:  7,
		},
		Insight: OptimizationInsight{
			Level:        LevelCritical,
			ROIScore:     0.976,
			EvictionRisk: RiskLow,
			Suggestions:  []Suggestion{{Kind: SuggestPinHotEntry}},
		},
	}

	expanded := full.Compact().Expand()

	if expanded.Tokens != full.Tokens {
		t.Errorf("economics changed across round trip:\n got %+v\nwant %+v", expanded.Tokens, full.Tokens)
	}
	if expanded.Type != full.Type || expanded.Strategy != full.Strategy {
		t.Error("decision fields changed across round trip")
	}
	if *expanded.Semantic != *full.Semantic {
		t.Errorf("semantic match changed: got %+v want %+v", expanded.Semantic, full.Semantic)
	}
	if *expanded.Cache != *full.Cache {
		t.Errorf("cache metadata changed: got %+v want %+v", expanded.Cache, full.Cache)
	}
	if expanded.Insight.Level != full.Insight.Level ||
		expanded.Insight.ROIScore != full.Insight.ROIScore ||
		expanded.Insight.EvictionRisk != full.Insight.EvictionRisk {
		t.Error("insight changed across round trip")
	}
	if len(expanded.Insight.Suggestions) != 1 || expanded.Insight.Suggestions[0].Kind != SuggestPinHotEntry {
		t.Error("suggestions changed across round trip")
	}
}

func TestCompactRecord_JSONRoundTrip(t *testing.T) {
	rec := OperationRecord{
		OperationID: "op-2",
		Timestamp:   time.Date(2026, 8, 2, 8, 30, 0, 0, time.UTC),
		Type:        OpExactMiss,
		Strategy:    StrategyExact,
		Query:       QueryInfo{Normalized: "q", Hash: "h"},
		Tokens:      TokenDelta{WithoutCache: 100, WithCache: 100},
		Insight:     OptimizationInsight{Level: LevelNone, EvictionRisk: RiskLow},
	}

	data, err := json.Marshal(rec.Compact())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded CompactRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	got := decoded.Expand()
	if got.Tokens != rec.Tokens || got.Type != rec.Type {
		t.Errorf("JSON round trip changed record: %+v", got)
	}
}

func TestSuggestion_String(t *testing.T) {
	// Every kind must render distinct, stable text.
	kinds := []SuggestionKind{
		SuggestNone, SuggestExtendTTL, SuggestPinHotEntry,
		SuggestLowerThreshold, SuggestReviewThreshold,
		SuggestWarmCache, SuggestInvestigateErrors,
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		text := Suggestion{Kind: k, Similarity: 0.8, Threshold: 0.85}.String()
		if text == "" {
			t.Errorf("kind %d rendered empty text", k)
		}
		if seen[text] {
			t.Errorf("kind %d rendered duplicate text %q", k, text)
		}
		seen[text] = true
	}
}

func TestOperationType_IsHit(t *testing.T) {
	hits := []OperationType{OpExactHit, OpSemanticHit, OpIntentHit}
	for _, h := range hits {
		if !h.IsHit() {
			t.Errorf("%s should be a hit", h)
		}
	}
	misses := []OperationType{OpExactMiss, OpSemanticMiss, OpCacheError}
	for _, m := range misses {
		if m.IsHit() {
			t.Errorf("%s should not be a hit", m)
		}
	}
}
