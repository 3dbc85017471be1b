package textdist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"stg_orders", "stg_order", 1},
		{"héllo", "hello", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 1.0, Ratio("abc", "abc"))
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
	assert.InDelta(t, 0.9, Ratio("stg_orders", "stg_order"), 1e-9)
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard(nil, nil))
	assert.Equal(t, 0.0, Jaccard([]string{"a"}, nil))
	assert.InDelta(t, 0.5, Jaccard([]string{"a", "b", "b"}, []string{"b", "c", "a", "d"}), 1e-9)
}

func TestSuggestSimilar(t *testing.T) {
	got := SuggestSimilar("STG_ORDER", []string{"stg_orders", "stg_order", "fct_orders"}, 2)
	assert.Equal(t, []string{"stg_orders"}, got)
}
