package commands

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/search"
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

// notFound adds close model names to a lookup failure.
func notFound(err error, a *analyzer.Analyzer) error {
	var nf *analyzer.NotFoundError
	if !errors.As(err, &nf) {
		return err
	}
	hits := search.Find(nf.ID, a.Graph().Nodes(), 3)
	if len(hits) == 0 {
		return err
	}
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.ID
	}
	return fmt.Errorf("%w (did you mean %v?)", err, names)
}

// nonNil returns s, or an empty slice when s is nil, so JSON output always
// carries an array.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
