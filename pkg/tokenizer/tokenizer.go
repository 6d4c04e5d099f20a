// Package tokenizer provides token counting and model pricing for the
// economics calculator.
package tokenizer

import "strings"

// Counter converts text to token counts and token counts to cost.
type Counter interface {
	// Count estimates the number of tokens in text for the given model.
	Count(text, model string) int

	// Cost returns the dollar cost of the given token split for the model.
	Cost(model string, promptTokens, completionTokens int) float64
}

// Rates holds per-million-token pricing for a model.
type Rates struct {
	PromptPerM     float64
	CompletionPerM float64
}

// DefaultPricing lists rates for common models. Unknown models fall back
// to defaultRates.
var DefaultPricing = map[string]Rates{
	"gpt-4o":            {PromptPerM: 2.50, CompletionPerM: 10.00},
	"gpt-4o-mini":       {PromptPerM: 0.15, CompletionPerM: 0.60},
	"claude-sonnet-4-5": {PromptPerM: 3.00, CompletionPerM: 15.00},
	"claude-haiku-4-5":  {PromptPerM: 1.00, CompletionPerM: 5.00},
}

var defaultRates = Rates{PromptPerM: 1.00, CompletionPerM: 3.00}

// Heuristic estimates tokens without a model-specific vocabulary: roughly
// one token per four characters, floored at the word count. Good enough for
// savings accounting; exact counting belongs to the upstream caller.
type Heuristic struct {
	pricing map[string]Rates
}

// NewHeuristic creates a heuristic counter with the default pricing table.
func NewHeuristic() *Heuristic {
	return &Heuristic{pricing: DefaultPricing}
}

// NewHeuristicWithPricing creates a counter with a custom pricing table.
func NewHeuristicWithPricing(pricing map[string]Rates) *Heuristic {
	if pricing == nil {
		pricing = DefaultPricing
	}
	return &Heuristic{pricing: pricing}
}

// Count estimates the token count of text.
func (h *Heuristic) Count(text, model string) int {
	if text == "" {
		return 0
	}
	byChars := (len(text) + 3) / 4
	byWords := len(strings.Fields(text))
	if byWords > byChars {
		return byWords
	}
	return byChars
}

// Cost converts a token split to dollars using the model's rates.
func (h *Heuristic) Cost(model string, promptTokens, completionTokens int) float64 {
	rates, ok := h.pricing[model]
	if !ok {
		rates = defaultRates
	}
	return float64(promptTokens)*rates.PromptPerM/1e6 +
		float64(completionTokens)*rates.CompletionPerM/1e6
}

// RatesFor returns the pricing used for a model.
func (h *Heuristic) RatesFor(model string) Rates {
	if rates, ok := h.pricing[model]; ok {
		return rates
	}
	return defaultRates
}
