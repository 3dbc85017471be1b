// Package search finds models by approximate name.
package search

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/modelgraph/internal/textdist"
)

// MatchType describes how a result matched the query.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchPrefix   MatchType = "prefix"
	MatchContains MatchType = "contains"
	MatchFuzzy    MatchType = "fuzzy"
)

// MinSimilarity is the lowest edit ratio accepted as a fuzzy match.
const MinSimilarity = 0.5

// Result is one search hit. Score is in (0, 1].
type Result struct {
	ID    string    `json:"id"`
	Score float64   `json:"score"`
	Match MatchType `json:"match"`
}

// Find ranks ids against query, case-insensitively: exact matches first,
// then prefix, then substring, then fuzzy matches whose edit ratio reaches
// MinSimilarity. Ties break by ascending id. A limit <= 0 returns every hit.
func Find(query string, ids []string, limit int) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []Result{}
	if q == "" {
		return out
	}
	for _, id := range ids {
		key := strings.ToLower(id)
		switch {
		case key == q:
			out = append(out, Result{ID: id, Score: 1.0, Match: MatchExact})
		case strings.HasPrefix(key, q):
			out = append(out, Result{ID: id, Score: 0.8, Match: MatchPrefix})
		case strings.Contains(key, q):
			out = append(out, Result{ID: id, Score: 0.6, Match: MatchContains})
		default:
			if r := textdist.Ratio(q, key); r >= MinSimilarity {
				out = append(out, Result{ID: id, Score: r * 0.5, Match: MatchFuzzy})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
