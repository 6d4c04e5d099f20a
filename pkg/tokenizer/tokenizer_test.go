package tokenizer

import (
	"math"
	"testing"
)

func TestHeuristic_Count(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short word", "hi", 1},
		{"four chars per token", "abcdefgh", 2},
		{"word floor", "a b c d e f", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Count(tt.text, "gpt-4o"); got != tt.want {
				t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestHeuristic_Cost(t *testing.T) {
	h := NewHeuristic()

	// gpt-4o: $2.50/M prompt, $10/M completion.
	got := h.Cost("gpt-4o", 1_000_000, 100_000)
	want := 2.50 + 1.00
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Cost = %f, want %f", got, want)
	}

	// Unknown model falls back to default rates.
	fallback := h.Cost("unknown-model", 1_000_000, 0)
	if math.Abs(fallback-1.00) > 1e-9 {
		t.Errorf("fallback Cost = %f, want 1.00", fallback)
	}

	if h.Cost("gpt-4o", 0, 0) != 0 {
		t.Error("zero tokens should cost zero")
	}
}
