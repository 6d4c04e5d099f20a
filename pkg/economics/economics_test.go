package economics

import (
	"testing"

	"github.com/semcache/semcache/pkg/tokenizer"
)

func flatCost(prompt, completion int) float64 {
	return float64(prompt+completion) / 1000.0
}

func TestCompute_Hit(t *testing.T) {
	delta := Compute(Usage{Prompt: 800, Completion: 400}, true, flatCost)

	if delta.WithoutCache != 1200 {
		t.Errorf("WithoutCache = %d, want 1200", delta.WithoutCache)
	}
	if delta.WithCache != 0 {
		t.Errorf("WithCache = %d, want 0 on hit", delta.WithCache)
	}
	if delta.Saved != 1200 {
		t.Errorf("Saved = %d, want 1200", delta.Saved)
	}
	if delta.SavedPercent != 100 {
		t.Errorf("SavedPercent = %f, want 100", delta.SavedPercent)
	}
	if delta.CostSaved != delta.CostWithout {
		t.Errorf("CostSaved = %f, want full cost %f", delta.CostSaved, delta.CostWithout)
	}
}

func TestCompute_Miss(t *testing.T) {
	delta := Compute(Usage{Prompt: 500, Completion: 100}, false, flatCost)

	if delta.WithCache != delta.WithoutCache {
		t.Error("miss should spend the full token count")
	}
	if delta.Saved != 0 || delta.SavedPercent != 0 {
		t.Errorf("miss should save nothing, got saved=%d percent=%f", delta.Saved, delta.SavedPercent)
	}
	if delta.CostSaved != 0 {
		t.Errorf("miss CostSaved = %f, want 0", delta.CostSaved)
	}
}

func TestCompute_ZeroTokens(t *testing.T) {
	// without_cache == 0 must yield saved_percent == 0 with no division fault.
	for _, hit := range []bool{true, false} {
		delta := Compute(Usage{}, hit, flatCost)
		if delta.SavedPercent != 0 {
			t.Errorf("hit=%v: SavedPercent = %f, want 0", hit, delta.SavedPercent)
		}
		if delta.CostSaved != 0 {
			t.Errorf("hit=%v: CostSaved = %f, want 0", hit, delta.CostSaved)
		}
	}
}

func TestCompute_SavedPercentBounds(t *testing.T) {
	cases := []Usage{
		{Prompt: 1, Completion: 0},
		{Prompt: 0, Completion: 1},
		{Prompt: 100000, Completion: 100000},
		{},
	}
	for _, u := range cases {
		for _, hit := range []bool{true, false} {
			delta := Compute(u, hit, flatCost)
			if delta.SavedPercent < 0 || delta.SavedPercent > 100 {
				t.Errorf("SavedPercent %f out of [0,100] for %+v hit=%v", delta.SavedPercent, u, hit)
			}
			if delta.Saved != delta.WithoutCache-delta.WithCache {
				t.Errorf("accounting identity violated for %+v hit=%v", u, hit)
			}
		}
	}
}

func TestCompute_WithTokenizerRates(t *testing.T) {
	counter := tokenizer.NewHeuristic()
	cost := func(p, c int) float64 { return counter.Cost("gpt-4o", p, c) }

	delta := Compute(Usage{Prompt: 1000, Completion: 500}, true, cost)

	if delta.CostWithout <= 0 {
		t.Error("expected positive cost for non-zero usage")
	}
	if delta.CostSaved != delta.CostWithout-delta.CostWith {
		t.Error("cost identity violated")
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a := Compute(Usage{Prompt: 123, Completion: 456}, true, flatCost)
	b := Compute(Usage{Prompt: 123, Completion: 456}, true, flatCost)
	if a != b {
		t.Error("same inputs must produce identical deltas")
	}
}
