// Package economics computes the token and cost impact of a cache decision.
// Everything here is a pure function of its inputs.
package economics

import "github.com/semcache/semcache/pkg/types"

// Usage is the token split a query would consume without the cache.
type Usage struct {
	Prompt     int
	Completion int
}

// Total returns the combined token count.
func (u Usage) Total() int {
	return u.Prompt + u.Completion
}

// CostFn converts a token split to dollars for a fixed model. The tokenizer
// package provides implementations; tests may pass constants.
type CostFn func(promptTokens, completionTokens int) float64

// Compute derives the token delta for one decision. On a hit the cached
// answer replaces the whole call, so tokens-with-cache is zero; on a miss
// it equals the without-cache count. SavedPercent is clamped to [0, 100]
// and a zero without-cache count yields zero percent, never a division
// fault.
func Compute(without Usage, hit bool, cost CostFn) types.TokenDelta {
	totalWithout := without.Total()

	var withCache int
	var costWith float64
	costWithout := cost(without.Prompt, without.Completion)

	if !hit {
		withCache = totalWithout
		costWith = costWithout
	}

	saved := totalWithout - withCache

	var savedPercent float64
	if totalWithout > 0 {
		savedPercent = float64(saved) / float64(totalWithout) * 100
		if savedPercent < 0 {
			savedPercent = 0
		} else if savedPercent > 100 {
			savedPercent = 100
		}
	}

	return types.TokenDelta{
		WithoutCache: totalWithout,
		WithCache:    withCache,
		Saved:        saved,
		SavedPercent: savedPercent,
		CostWithout:  costWithout,
		CostWith:     costWith,
		CostSaved:    costWithout - costWith,
	}
}
