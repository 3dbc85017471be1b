package complexity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/leapstack-labs/modelgraph/internal/extract"
	"github.com/leapstack-labs/modelgraph/internal/textdist"
)

// Method selects the similarity measure.
type Method string

const (
	// MethodTokenSet is Jaccard overlap of distinct normalized tokens.
	MethodTokenSet Method = "token-set"
	// MethodEdit is the Levenshtein ratio of normalized bodies.
	MethodEdit Method = "edit"
)

// Defaults for DuplicateOptions.
const (
	DefaultThreshold = 0.7
	DefaultMaxLength = 2000
)

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodTokenSet, MethodEdit:
		return Method(s), nil
	case "":
		return MethodTokenSet, nil
	default:
		return "", fmt.Errorf("unknown similarity method %q (want %s or %s)", s, MethodTokenSet, MethodEdit)
	}
}

// Normalize reduces a query body to its shape: comments stripped, template
// blocks replaced by a placeholder, literals and numbers redacted,
// whitespace collapsed, case folded, Unicode in NFC.
func Normalize(text string) string {
	toks := extract.Skeleton(norm.NFC.String(text))
	return cases.Fold().String(strings.Join(toks, " "))
}

// Similarity compares two normalized bodies with method. For MethodEdit
// both bodies are truncated to maxLength runes first; zero means
// DefaultMaxLength.
func Similarity(a, b string, method Method, maxLength int) float64 {
	if method == MethodEdit {
		if maxLength <= 0 {
			maxLength = DefaultMaxLength
		}
		return textdist.Ratio(truncate(a, maxLength), truncate(b, maxLength))
	}
	return textdist.Jaccard(strings.Fields(a), strings.Fields(b))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// DuplicateOptions configures FindDuplicates.
type DuplicateOptions struct {
	Threshold float64 `json:"threshold" koanf:"threshold"`
	Method    Method  `json:"method" koanf:"method"`
	MaxLength int     `json:"max_length" koanf:"max_length"`
}

// DefaultDuplicateOptions returns threshold 0.7 with token-set overlap.
func DefaultDuplicateOptions() DuplicateOptions {
	return DuplicateOptions{Threshold: DefaultThreshold, Method: MethodTokenSet, MaxLength: DefaultMaxLength}
}

// DuplicateGroup is a set of transitively similar models.
type DuplicateGroup struct {
	Members       []string `json:"members"`
	MinSimilarity float64  `json:"min_similarity"`
	MaxSimilarity float64  `json:"max_similarity"`
	Pattern       string   `json:"pattern"`
	Method        Method   `json:"method"`
}

// FindDuplicates compares every pair of records and merges pairs at or
// above the threshold into groups. Groups are ordered by first member;
// members are sorted. MinSimilarity is taken over every pair in the group,
// so it may fall below the threshold for transitively joined members.
// Pattern is the xxh3 hash of the first member's normalized body.
func FindDuplicates(records []*extract.ModelRecord, opts DuplicateOptions) []DuplicateGroup {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Method == "" {
		opts.Method = MethodTokenSet
	}

	recs := make([]*extract.ModelRecord, 0, len(records))
	bodies := make([]string, 0, len(records))
	for _, rec := range records {
		body := Normalize(rec.Text)
		if body == "" {
			continue
		}
		recs = append(recs, rec)
		bodies = append(bodies, body)
	}
	order := make([]int, len(recs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return recs[order[i]].ID < recs[order[j]].ID })

	sims := make(map[[2]int]float64)
	sim := func(i, j int) float64 {
		key := [2]int{min(i, j), max(i, j)}
		if v, ok := sims[key]; ok {
			return v
		}
		v := Similarity(bodies[i], bodies[j], opts.Method, opts.MaxLength)
		sims[key] = v
		return v
	}

	uf := newUnionFind(len(recs))
	for a := 0; a < len(order); a++ {
		for b := a + 1; b < len(order); b++ {
			i, j := order[a], order[b]
			if opts.Method == MethodEdit && !lengthCompatible(bodies[i], bodies[j], opts.Threshold) {
				continue
			}
			if sim(i, j) >= opts.Threshold {
				uf.union(i, j)
			}
		}
	}

	members := make(map[int][]int)
	for _, i := range order {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	var groups []DuplicateGroup
	for _, idx := range members {
		if len(idx) < 2 {
			continue
		}
		g := DuplicateGroup{MinSimilarity: 1, Method: opts.Method}
		for a := range idx {
			g.Members = append(g.Members, recs[idx[a]].ID)
			for b := a + 1; b < len(idx); b++ {
				v := sim(idx[a], idx[b])
				g.MinSimilarity = min(g.MinSimilarity, v)
				g.MaxSimilarity = max(g.MaxSimilarity, v)
			}
		}
		g.Pattern = fmt.Sprintf("%016x", xxh3.HashString(bodies[idx[0]]))
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Members[0] < groups[j].Members[0] })
	return groups
}

// lengthCompatible reports whether the edit ratio of bodies with these
// lengths could reach threshold.
func lengthCompatible(a, b string, threshold float64) bool {
	la, lb := len([]rune(a)), len([]rune(b))
	if la > lb {
		la, lb = lb, la
	}
	return lb == 0 || float64(la)/float64(lb) >= threshold
}

// NameGroup lists models sharing a name.
type NameGroup struct {
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// DuplicateCTENames returns CTE names declared by more than one model.
func DuplicateCTENames(records []*extract.ModelRecord) []NameGroup {
	byName := make(map[string][]string)
	for _, rec := range records {
		for _, name := range rec.CTEs {
			byName[name] = append(byName[name], rec.ID)
		}
	}
	return collect(byName)
}

// DuplicateConfigs groups models whose non-empty config() settings are
// identical. Name holds the canonical "key=value, ..." form.
func DuplicateConfigs(records []*extract.ModelRecord) []NameGroup {
	byConfig := make(map[string][]string)
	for _, rec := range records {
		if len(rec.Config) == 0 {
			continue
		}
		keys := make([]string, 0, len(rec.Config))
		for k := range rec.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + rec.Config[k]
		}
		canon := strings.Join(parts, ", ")
		byConfig[canon] = append(byConfig[canon], rec.ID)
	}
	return collect(byConfig)
}

func collect(m map[string][]string) []NameGroup {
	out := []NameGroup{}
	for name, models := range m {
		if len(models) < 2 {
			continue
		}
		sort.Strings(models)
		out = append(out, NameGroup{Name: name, Models: models})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// unionFind is a disjoint-set forest with path compression and union by
// rank.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
