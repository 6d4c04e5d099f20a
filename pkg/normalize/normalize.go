// Package normalize provides query normalization and intent classification
// for cache key derivation.
package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Normalized is the result of normalizing a raw query.
type Normalized struct {
	// Text is the canonical form used for exact matching.
	Text string

	// Hash is the cache key derived from Text.
	Hash string

	// Intent is the classified intent tag, empty if none matched.
	Intent string
}

// Normalizer maps raw query text to its canonical form and intent.
type Normalizer interface {
	Normalize(ctx context.Context, text string) (Normalized, error)
}

// Intent tags produced by the rule normalizer.
const (
	IntentDefinition   = "definition"
	IntentHowTo        = "how_to"
	IntentComparison   = "comparison"
	IntentTroubleshoot = "troubleshoot"
	IntentCode         = "code"
)

// RuleNormalizer classifies intent with ordered keyword rules. Rules are
// evaluated first to last; the first match wins, so classification is
// deterministic.
type RuleNormalizer struct {
	rules []intentRule
}

type intentRule struct {
	intent   string
	prefixes []string
	contains []string
}

// NewRuleNormalizer creates a normalizer with the default rule set.
func NewRuleNormalizer() *RuleNormalizer {
	return &RuleNormalizer{
		rules: []intentRule{
			{
				intent:   IntentHowTo,
				prefixes: []string{"how do i", "how to", "how can i", "steps to"},
			},
			{
				intent:   IntentDefinition,
				prefixes: []string{"what is", "what are", "define", "explain", "meaning of"},
			},
			{
				intent:   IntentComparison,
				contains: []string{" vs ", " versus ", "difference between", "compare"},
			},
			{
				intent:   IntentTroubleshoot,
				contains: []string{"error", "not working", "fails", "broken", "fix", "debug"},
			},
			{
				intent:   IntentCode,
				contains: []string{"```", "func ", "def ", "class ", "import "},
			},
		},
	}
}

// Normalize lowercases, strips punctuation, and collapses whitespace, then
// derives the key hash and intent tag.
func (n *RuleNormalizer) Normalize(ctx context.Context, text string) (Normalized, error) {
	canonical := Canonicalize(text)
	return Normalized{
		Text:   canonical,
		Hash:   HashText(canonical),
		Intent: n.classify(canonical),
	}, nil
}

func (n *RuleNormalizer) classify(text string) string {
	for _, rule := range n.rules {
		for _, p := range rule.prefixes {
			if strings.HasPrefix(text, p) {
				return rule.intent
			}
		}
		for _, c := range rule.contains {
			if strings.Contains(text, c) {
				return rule.intent
			}
		}
	}
	return ""
}

// Canonicalize lowercases text, drops punctuation except inline code
// markers, and collapses runs of whitespace to single spaces.
func Canonicalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) && r != '`' && r != '_' && r != '-':
			// dropped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// HashText returns a 16-character hex digest of the text, used as the
// normalized cache key.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}
