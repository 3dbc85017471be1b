// Package complexity scores models from their structural features and
// finds near-duplicate query bodies.
package complexity

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/modelgraph/internal/extract"
)

// Feature names accepted in Weights.
const (
	FeatureLines          = "lines"
	FeatureCTEs           = "ctes"
	FeatureJoins          = "joins"
	FeatureSubqueries     = "subqueries"
	FeatureRefs           = "refs"
	FeatureSources        = "sources"
	FeatureTemplateBlocks = "template_blocks"
	FeatureConditionals   = "conditionals"
	FeatureAggregates     = "aggregates"
	FeatureMaxDepth       = "max_depth"
)

// DefaultAboveThreshold is the score above which a model is flagged in a
// Summary.
const DefaultAboveThreshold = 20.0

// Weights maps a feature name to its multiplier.
type Weights map[string]float64

// DefaultWeights returns the stock multipliers.
func DefaultWeights() Weights {
	return Weights{
		FeatureLines:          0.1,
		FeatureCTEs:           1.5,
		FeatureJoins:          2.0,
		FeatureSubqueries:     3.0,
		FeatureRefs:           1.0,
		FeatureSources:        0.5,
		FeatureTemplateBlocks: 0.8,
		FeatureConditionals:   1.0,
		FeatureAggregates:     0.5,
		FeatureMaxDepth:       1.0,
	}
}

// Validate rejects unknown feature names and negative weights.
func (w Weights) Validate() error {
	known := DefaultWeights()
	for name, v := range w {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("unknown complexity feature %q", name)
		}
		if v < 0 {
			return fmt.Errorf("complexity weight for %q must not be negative", name)
		}
	}
	return nil
}

// Merge returns the defaults overridden by w.
func (w Weights) Merge() Weights {
	out := DefaultWeights()
	for name, v := range w {
		out[name] = v
	}
	return out
}

// ModelScore is one model's weighted complexity.
type ModelScore struct {
	ID        string             `json:"id"`
	Value     float64            `json:"score"`
	Breakdown map[string]float64 `json:"breakdown"`
	Counts    map[string]int     `json:"counts"`
}

// counts returns every scored feature of rec.
func counts(rec *extract.ModelRecord) map[string]int {
	c := rec.Features.Map()
	c[FeatureRefs] = len(rec.Refs)
	c[FeatureSources] = len(rec.Sources)
	return c
}

// Score computes the weighted sum of rec's features. Features without a
// weight contribute nothing.
func Score(rec *extract.ModelRecord, weights Weights) ModelScore {
	s := ModelScore{
		ID:        rec.ID,
		Breakdown: make(map[string]float64),
		Counts:    counts(rec),
	}
	for name, n := range s.Counts {
		w, ok := weights[name]
		if !ok {
			continue
		}
		contrib := w * float64(n)
		s.Breakdown[name] = contrib
		s.Value += contrib
	}
	return s
}

// Rank scores every record, highest first, ties by ascending id.
func Rank(records []*extract.ModelRecord, weights Weights) []ModelScore {
	out := make([]ModelScore, 0, len(records))
	for _, rec := range records {
		out = append(out, Score(rec, weights))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Summary aggregates a ranking.
type Summary struct {
	Count          int          `json:"count"`
	Average        float64      `json:"average"`
	Max            float64      `json:"max"`
	Min            float64      `json:"min"`
	MostComplex    []ModelScore `json:"most_complex"`
	Threshold      float64      `json:"threshold"`
	AboveThreshold []string     `json:"above_threshold"`
}

// Summarize reports statistics over ranked scores. ranked must be ordered
// as Rank returns it; top bounds MostComplex.
func Summarize(ranked []ModelScore, threshold float64, top int) Summary {
	s := Summary{Count: len(ranked), Threshold: threshold, AboveThreshold: []string{}}
	if len(ranked) == 0 {
		return s
	}
	s.Max = ranked[0].Value
	s.Min = ranked[len(ranked)-1].Value
	total := 0.0
	for _, r := range ranked {
		total += r.Value
		if r.Value > threshold {
			s.AboveThreshold = append(s.AboveThreshold, r.ID)
		}
	}
	s.Average = total / float64(len(ranked))
	s.MostComplex = ranked[:min(top, len(ranked))]
	return s
}
