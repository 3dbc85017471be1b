// Package selector chooses graph nodes with selector expressions and
// attribute criteria.
//
// A selector expression is a space-separated union of terms. A term is a
// comma-separated intersection of atoms. An atom is a node pattern with
// optional graph operators:
//
//	stg_orders        the node itself
//	stg_*             every node matching the glob
//	+fct_orders       the node and all its ancestors
//	2+fct_orders      the node and ancestors up to two hops away
//	stg_orders+       the node and all its descendants
//	stg_orders+1      the node and its direct dependents
//	tag:nightly       nodes tagged nightly
//	source:raw        sources in the raw namespace
//	path:models/marts nodes defined under a directory
//	config.materialized:table
//	kind:model        nodes of one kind
//	tested:false      models without tests
package selector

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/dag"
)

// Node holds the attributes selectors match against.
type Node struct {
	Kind analyzer.NodeKind
	// Path is the slash-separated file that defines a model.
	Path   string
	Tags   []string
	Config map[string]string
	Tested bool
}

// Catalog maps node ids to their attributes. Graph nodes missing from the
// catalog only match name patterns.
type Catalog map[string]Node

// Method is the part of an atom before the colon.
type Method string

// Selector methods.
const (
	MethodName   Method = "name"
	MethodTag    Method = "tag"
	MethodSource Method = "source"
	MethodPath   Method = "path"
	MethodConfig Method = "config"
	MethodKind   Method = "kind"
	MethodTested Method = "tested"
)

// unbounded marks a graph operator without a depth limit.
const unbounded = 0

// Atom is one node pattern with its graph operators.
type Atom struct {
	Method Method
	// Key is the config key for MethodConfig.
	Key   string
	Value string
	// Up and Down are -1 without an operator, 0 for an unbounded walk, or
	// the maximum number of hops.
	Up, Down int
}

// Expr is a union of intersections of atoms.
type Expr [][]Atom

var (
	upPattern   = regexp.MustCompile(`^(\d*)\+`)
	downPattern = regexp.MustCompile(`\+(\d*)$`)
)

// Parse reads a selector expression. An empty expression parses to an
// empty Expr, which selects nothing.
func Parse(expr string) (Expr, error) {
	var out Expr
	for _, term := range strings.Fields(expr) {
		var atoms []Atom
		for _, part := range strings.Split(term, ",") {
			if part == "" {
				return nil, fmt.Errorf("empty selector in %q", term)
			}
			a, err := parseAtom(part)
			if err != nil {
				return nil, err
			}
			atoms = append(atoms, a)
		}
		out = append(out, atoms)
	}
	return out, nil
}

func parseAtom(s string) (Atom, error) {
	a := Atom{Method: MethodName, Up: -1, Down: -1}
	rest := s
	if m := upPattern.FindStringSubmatch(rest); m != nil {
		a.Up = hops(m[1])
		rest = rest[len(m[0]):]
	}
	if m := downPattern.FindStringSubmatch(rest); m != nil {
		a.Down = hops(m[1])
		rest = rest[:len(rest)-len(m[0])]
	}
	if method, value, ok := strings.Cut(rest, ":"); ok {
		a.Value = value
		switch {
		case strings.HasPrefix(method, "config."):
			a.Method, a.Key = MethodConfig, strings.TrimPrefix(method, "config.")
		default:
			a.Method = Method(method)
		}
	} else {
		a.Value = rest
	}
	if a.Value == "" {
		return Atom{}, fmt.Errorf("selector %q has no value", s)
	}

	switch a.Method {
	case MethodName, MethodSource, MethodPath:
		if _, err := path.Match(a.Value, ""); err != nil {
			return Atom{}, fmt.Errorf("selector %q: %w", s, err)
		}
	case MethodTag:
	case MethodConfig:
		if a.Key == "" {
			return Atom{}, fmt.Errorf("selector %q has no config key", s)
		}
	case MethodKind:
		switch analyzer.NodeKind(a.Value) {
		case analyzer.KindModel, analyzer.KindSource, analyzer.KindDangling:
		default:
			return Atom{}, fmt.Errorf("selector %q: unknown kind %q", s, a.Value)
		}
	case MethodTested:
		if _, err := strconv.ParseBool(a.Value); err != nil {
			return Atom{}, fmt.Errorf("selector %q: want true or false", s)
		}
	default:
		return Atom{}, fmt.Errorf("selector %q: unknown method %q", s, a.Method)
	}
	return a, nil
}

func hops(digits string) int {
	if digits == "" {
		return unbounded
	}
	n, _ := strconv.Atoi(digits)
	if n == 0 {
		// "0+" reads as no hops at all, which is the node itself.
		return -1
	}
	return n
}

// Match returns the sorted ids selected by e.
func (e Expr) Match(g dag.Reader, cat Catalog) []string {
	union := make(map[string]bool)
	for _, term := range e {
		var acc map[string]bool
		for _, a := range term {
			got := a.match(g, cat)
			if acc == nil {
				acc = got
				continue
			}
			for id := range acc {
				if !got[id] {
					delete(acc, id)
				}
			}
		}
		for id := range acc {
			union[id] = true
		}
	}
	return sortedSet(union)
}

func (a Atom) match(g dag.Reader, cat Catalog) map[string]bool {
	out := make(map[string]bool)
	for _, id := range g.Nodes() {
		if a.matches(id, cat[id]) {
			out[id] = true
		}
	}
	seeds := sortedSet(out)
	for _, id := range seeds {
		if a.Up >= 0 {
			walk(id, a.Up, g.DirectDependencies, out)
		}
		if a.Down >= 0 {
			walk(id, a.Down, g.DirectDependents, out)
		}
	}
	return out
}

func (a Atom) matches(id string, n Node) bool {
	switch a.Method {
	case MethodName:
		return id == a.Value || glob(a.Value, id)
	case MethodTag:
		for _, t := range n.Tags {
			if t == a.Value {
				return true
			}
		}
		return false
	case MethodSource:
		if n.Kind != analyzer.KindSource {
			return false
		}
		if !strings.Contains(a.Value, ".") {
			return strings.HasPrefix(id, a.Value+".") || glob(a.Value+".*", id)
		}
		return id == a.Value || glob(a.Value, id)
	case MethodPath:
		if n.Path == "" {
			return false
		}
		dir := strings.TrimSuffix(a.Value, "/")
		return n.Path == dir || strings.HasPrefix(n.Path, dir+"/") || glob(a.Value, n.Path)
	case MethodConfig:
		v, ok := n.Config[a.Key]
		return ok && v == a.Value
	case MethodKind:
		return string(n.Kind) == a.Value
	case MethodTested:
		want, _ := strconv.ParseBool(a.Value)
		return n.Kind == analyzer.KindModel && n.Tested == want
	}
	return false
}

// walk adds the nodes reachable from start within depth hops to into.
func walk(start string, depth int, next func(string) []string, into map[string]bool) {
	frontier := []string{start}
	visited := map[string]bool{start: true}
	for d := 0; len(frontier) > 0 && (depth == unbounded || d < depth); d++ {
		var nextFrontier []string
		for _, id := range frontier {
			for _, n := range next(id) {
				if visited[n] {
					continue
				}
				visited[n] = true
				into[n] = true
				nextFrontier = append(nextFrontier, n)
			}
		}
		frontier = nextFrontier
	}
}

func glob(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// Select applies include and exclude expressions. An empty include selects
// every node.
func Select(g dag.Reader, cat Catalog, include, exclude string) ([]string, error) {
	inc, err := Parse(include)
	if err != nil {
		return nil, err
	}
	exc, err := Parse(exclude)
	if err != nil {
		return nil, err
	}
	var picked []string
	if len(inc) == 0 {
		picked = g.Nodes()
	} else {
		picked = inc.Match(g, cat)
	}
	if len(exc) == 0 {
		return picked, nil
	}
	drop := make(map[string]bool)
	for _, id := range exc.Match(g, cat) {
		drop[id] = true
	}
	out := make([]string, 0, len(picked))
	for _, id := range picked {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
