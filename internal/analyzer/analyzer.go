package analyzer

import (
	"log/slog"
	"sort"

	"github.com/leapstack-labs/modelgraph/internal/dag"
	"github.com/leapstack-labs/modelgraph/internal/extract"
)

// NodeKind classifies a graph node.
type NodeKind string

// Node kinds.
const (
	KindModel    NodeKind = "model"
	KindSource   NodeKind = "source"
	KindDangling NodeKind = "dangling"
)

// Options configures New.
type Options struct {
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Warnings carries warnings found before the graph was built, such as
	// identifier collisions from ParseAll.
	Warnings []StructuralWarning
}

// Analyzer owns the dependency graph built from a set of model records.
// The graph is built once and never mutated afterward, so all query
// methods are safe for concurrent use.
type Analyzer struct {
	graph    *dag.Graph
	records  map[string]*extract.ModelRecord
	kinds    map[string]NodeKind
	warnings []StructuralWarning
	logger   *slog.Logger
}

// New builds the graph. Each record adds an edge to every model it refs and
// every source it names. References to models with no record still become
// nodes and are reported as dangling.
func New(records map[string]*extract.ModelRecord, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	a := &Analyzer{
		graph:    dag.NewGraph(),
		records:  records,
		kinds:    make(map[string]NodeKind),
		warnings: append([]StructuralWarning(nil), opts.Warnings...),
		logger:   logger,
	}

	ids := sortedIDs(records)
	for _, id := range ids {
		a.graph.AddNode(id)
		a.kinds[id] = KindModel
	}
	for _, id := range ids {
		rec := records[id]
		selfLoop := false
		for _, ref := range rec.Refs {
			a.graph.AddEdge(id, ref)
			if ref == id {
				selfLoop = true
			}
		}
		if selfLoop {
			a.warnings = append(a.warnings, StructuralWarning{Kind: SelfLoop, Node: id})
		}
		for _, src := range rec.Sources {
			sid := src.ID()
			a.graph.AddEdge(id, sid)
			if _, ok := a.kinds[sid]; !ok {
				a.kinds[sid] = KindSource
			}
		}
	}
	for _, id := range a.graph.Nodes() {
		if _, ok := a.kinds[id]; ok {
			continue
		}
		a.kinds[id] = KindDangling
		a.warnings = append(a.warnings, StructuralWarning{
			Kind:    Dangling,
			Node:    id,
			Related: a.graph.DirectDependents(id),
		})
	}

	for _, w := range a.warnings {
		logger.Warn("structural warning", "kind", w.Kind.String(), "node", w.Node, "detail", w.Error())
	}
	logger.Debug("graph built", "nodes", a.graph.NodeCount(), "edges", a.graph.EdgeCount())
	return a
}

// NewFromParse builds an analyzer from a ParseResult, carrying its warnings.
func NewFromParse(res *ParseResult, logger *slog.Logger) *Analyzer {
	return New(res.Records, Options{Logger: logger, Warnings: res.Warnings})
}

// Graph returns the read-only graph.
func (a *Analyzer) Graph() dag.Reader {
	return a.graph
}

// Kind reports how id entered the graph. The second result is false for
// ids absent from the graph.
func (a *Analyzer) Kind(id string) (NodeKind, bool) {
	k, ok := a.kinds[id]
	return k, ok
}

// Kinds returns a copy of the node kind mapping.
func (a *Analyzer) Kinds() map[string]NodeKind {
	out := make(map[string]NodeKind, len(a.kinds))
	for id, k := range a.kinds {
		out[id] = k
	}
	return out
}

// Record returns the record for a model id.
func (a *Analyzer) Record(id string) (*extract.ModelRecord, bool) {
	rec, ok := a.records[id]
	return rec, ok
}

// Records returns all records ordered by id.
func (a *Analyzer) Records() []*extract.ModelRecord {
	out := make([]*extract.ModelRecord, 0, len(a.records))
	for _, id := range sortedIDs(a.records) {
		out = append(out, a.records[id])
	}
	return out
}

// Models returns the ids of parsed models.
func (a *Analyzer) Models() []string {
	return a.ofKind(KindModel)
}

// Sources returns the ids of referenced sources.
func (a *Analyzer) Sources() []string {
	return a.ofKind(KindSource)
}

// Dangling returns ids referenced by ref() that no file defines.
func (a *Analyzer) Dangling() []string {
	return a.ofKind(KindDangling)
}

func (a *Analyzer) ofKind(kind NodeKind) []string {
	var out []string
	for _, id := range a.graph.Nodes() {
		if a.kinds[id] == kind {
			out = append(out, id)
		}
	}
	return out
}

// Warnings returns all structural warnings.
func (a *Analyzer) Warnings() []StructuralWarning {
	return a.warnings
}

// DependencyReport summarizes one node's position in the graph.
type DependencyReport struct {
	ID                 string   `json:"id"`
	Kind               NodeKind `json:"kind"`
	DirectDependencies []string `json:"direct_dependencies"`
	DirectDependents   []string `json:"direct_dependents"`
	Upstream           []string `json:"upstream"`
	Downstream         []string `json:"downstream"`
	DependencyCount    int      `json:"dependency_count"`
	DependentCount     int      `json:"dependent_count"`
	UpstreamCount      int      `json:"upstream_count"`
	DownstreamCount    int      `json:"downstream_count"`
	IsRoot             bool     `json:"is_root"`
	IsLeaf             bool     `json:"is_leaf"`
	Depth              int      `json:"depth"`
}

// Report computes the dependency report for id.
func (a *Analyzer) Report(id string) (*DependencyReport, error) {
	if !a.graph.HasNode(id) {
		return nil, &NotFoundError{ID: id}
	}
	deps := a.graph.DirectDependencies(id)
	dependents := a.graph.DirectDependents(id)
	up := a.graph.TransitiveUpstream(id)
	down := a.graph.TransitiveDownstream(id)
	return &DependencyReport{
		ID:                 id,
		Kind:               a.kinds[id],
		DirectDependencies: deps,
		DirectDependents:   dependents,
		Upstream:           up,
		Downstream:         down,
		DependencyCount:    len(deps),
		DependentCount:     len(dependents),
		UpstreamCount:      len(up),
		DownstreamCount:    len(down),
		IsRoot:             len(deps) == 0,
		IsLeaf:             len(dependents) == 0,
		Depth:              a.graph.Depth(id, dag.Upstream),
	}, nil
}

// Reports returns a report for every node, ordered by id.
func (a *Analyzer) Reports() []*DependencyReport {
	nodes := a.graph.Nodes()
	out := make([]*DependencyReport, 0, len(nodes))
	for _, id := range nodes {
		r, _ := a.Report(id)
		out = append(out, r)
	}
	return out
}

// ExecutionOrder returns nodes with dependencies first. When strict is set
// and the graph has cycles the result is nil and the error is a
// *dag.CycleError; otherwise cyclic nodes appear as contiguous blocks.
func (a *Analyzer) ExecutionOrder(strict bool) ([]string, error) {
	order, err := a.graph.TopologicalOrder()
	if err != nil && strict {
		return nil, err
	}
	return order.Nodes, nil
}

// Cycles returns every elementary cycle.
func (a *Analyzer) Cycles() [][]string {
	return a.graph.DetectCycles()
}

// Isolated returns nodes with no dependencies and no dependents.
func (a *Analyzer) Isolated() []string {
	var out []string
	for _, id := range a.graph.Nodes() {
		if len(a.graph.DirectDependencies(id)) == 0 && len(a.graph.DirectDependents(id)) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Ranked pairs a node with a count.
type Ranked struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// MostDependedOn ranks nodes by direct dependent count, descending, ties
// broken by ascending id. n <= 0 returns every node.
func (a *Analyzer) MostDependedOn(n int) []Ranked {
	return a.rank(n, a.graph.DirectDependents)
}

// MostDependencies ranks nodes by direct dependency count.
func (a *Analyzer) MostDependencies(n int) []Ranked {
	return a.rank(n, a.graph.DirectDependencies)
}

func (a *Analyzer) rank(n int, neighbors func(string) []string) []Ranked {
	nodes := a.graph.Nodes()
	out := make([]Ranked, 0, len(nodes))
	for _, id := range nodes {
		out = append(out, Ranked{ID: id, Count: len(neighbors(id))})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Resolution summarizes how many distinct model references resolve to a
// parsed model.
type Resolution struct {
	Total      int      `json:"total"`
	Resolved   int      `json:"resolved"`
	Unresolved []string `json:"unresolved"`
	Rate       float64  `json:"rate"`
}

// Resolution counts ref edges and how many point at parsed models.
func (a *Analyzer) Resolution() Resolution {
	var r Resolution
	missing := make(map[string]bool)
	for _, rec := range a.Records() {
		seen := make(map[string]bool)
		for _, ref := range rec.Refs {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			r.Total++
			if a.kinds[ref] == KindModel {
				r.Resolved++
			} else {
				missing[ref] = true
			}
		}
	}
	r.Unresolved = sortedIDs(missing)
	r.Rate = 1
	if r.Total > 0 {
		r.Rate = float64(r.Resolved) / float64(r.Total)
	}
	return r
}
