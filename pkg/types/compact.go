package types

import "time"

// CompactRecord is the short-key wire form of an OperationRecord used by the
// journal. Expanding a compact record recovers every economics and decision
// field of the full form; the original query text travels as-is and may be
// redacted upstream.
type CompactRecord struct {
	ID string    `json:"id"`
	TS time.Time `json:"ts"`
	OP string    `json:"op"`
	ST string    `json:"st"`
	DU int64     `json:"du"` // duration in microseconds

	QO string   `json:"qo,omitempty"`
	QN string   `json:"qn"`
	QH string   `json:"qh"`
	QI string   `json:"qi,omitempty"`
	QT []string `json:"qt,omitempty"`

	TW  int     `json:"tw"`
	TC  int     `json:"tc"`
	TS2 int     `json:"tsv"`
	TP  float64 `json:"tp"`
	CW  float64 `json:"cw"`
	CC  float64 `json:"cc"`
	CS  float64 `json:"cs"`

	SM *CompactMatch `json:"sm,omitempty"`
	CM *CompactMeta  `json:"cm,omitempty"`

	IL string           `json:"il"`
	IR float64          `json:"ir"`
	IE string           `json:"ie"`
	IS []CompactSuggest `json:"is,omitempty"`

	ER string `json:"er,omitempty"`
}

// CompactMatch is the compact semantic-match layout.
type CompactMatch struct {
	SI float64 `json:"si"`
	CO float64 `json:"co"`
	TH float64 `json:"th"`
	TM bool    `json:"tm"`
	SQ int     `json:"sq,omitempty"`
}

// CompactMeta is the compact cache-metadata layout.
type CompactMeta struct {
	AG int64 `json:"ag"` // age in milliseconds
	TR int64 `json:"tr"` // ttl remaining in milliseconds
	AC int64 `json:"ac"`
}

// CompactSuggest is the compact suggestion layout. The kind is the closed
// variant tag; parameters ride along so rendering stays deterministic.
type CompactSuggest struct {
	K  int     `json:"k"`
	SI float64 `json:"si,omitempty"`
	TH float64 `json:"th,omitempty"`
}

// Compact converts the record to its compact layout.
func (r OperationRecord) Compact() CompactRecord {
	c := CompactRecord{
		ID:  r.OperationID,
		TS:  r.Timestamp,
		OP:  string(r.Type),
		ST:  r.Strategy,
		DU:  r.Duration.Microseconds(),
		QO:  r.Query.Original,
		QN:  r.Query.Normalized,
		QH:  r.Query.Hash,
		QI:  r.Query.Intent,
		QT:  r.Query.Tags,
		TW:  r.Tokens.WithoutCache,
		TC:  r.Tokens.WithCache,
		TS2: r.Tokens.Saved,
		TP:  r.Tokens.SavedPercent,
		CW:  r.Tokens.CostWithout,
		CC:  r.Tokens.CostWith,
		CS:  r.Tokens.CostSaved,
		IL:  string(r.Insight.Level),
		IR:  r.Insight.ROIScore,
		IE:  string(r.Insight.EvictionRisk),
		ER:  r.Error,
	}

	if r.Semantic != nil {
		c.SM = &CompactMatch{
			SI: r.Semantic.Similarity,
			CO: r.Semantic.Confidence,
			TH: r.Semantic.ThresholdUsed,
			TM: r.Semantic.ThresholdMet,
			SQ: r.Semantic.SimilarQueries,
		}
	}
	if r.Cache != nil {
		c.CM = &CompactMeta{
			AG: r.Cache.Age.Milliseconds(),
			TR: r.Cache.TTLRemaining.Milliseconds(),
			AC: r.Cache.AccessCount,
		}
	}
	for _, s := range r.Insight.Suggestions {
		c.IS = append(c.IS, CompactSuggest{K: int(s.Kind), SI: s.Similarity, TH: s.Threshold})
	}
	return c
}

// Expand converts the compact layout back to the full record form.
func (c CompactRecord) Expand() OperationRecord {
	r := OperationRecord{
		OperationID: c.ID,
		Timestamp:   c.TS,
		Type:        OperationType(c.OP),
		Strategy:    c.ST,
		Duration:    time.Duration(c.DU) * time.Microsecond,
		Query: QueryInfo{
			Original:   c.QO,
			Normalized: c.QN,
			Hash:       c.QH,
			Intent:     c.QI,
			Tags:       c.QT,
		},
		Tokens: TokenDelta{
			WithoutCache: c.TW,
			WithCache:    c.TC,
			Saved:        c.TS2,
			SavedPercent: c.TP,
			CostWithout:  c.CW,
			CostWith:     c.CC,
			CostSaved:    c.CS,
		},
		Insight: OptimizationInsight{
			Level:        OptimizationLevel(c.IL),
			ROIScore:     c.IR,
			EvictionRisk: RiskLevel(c.IE),
		},
		Error: c.ER,
	}

	if c.SM != nil {
		r.Semantic = &SemanticMatch{
			Similarity:     c.SM.SI,
			Confidence:     c.SM.CO,
			ThresholdUsed:  c.SM.TH,
			ThresholdMet:   c.SM.TM,
			SimilarQueries: c.SM.SQ,
		}
	}
	if c.CM != nil {
		r.Cache = &CacheMetadata{
			Age:          time.Duration(c.CM.AG) * time.Millisecond,
			TTLRemaining: time.Duration(c.CM.TR) * time.Millisecond,
			AccessCount:  c.CM.AC,
		}
	}
	for _, s := range c.IS {
		r.Insight.Suggestions = append(r.Insight.Suggestions, Suggestion{
			Kind:       SuggestionKind(s.K),
			Similarity: s.SI,
			Threshold:  s.TH,
		})
	}
	return r
}
