// Package impact classifies how far a change to one node propagates
// through its dependents.
package impact

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/dag"
)

// RiskLevel is an ordinal risk classification.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(r))
	}
}

// MarshalText renders the level by name in JSON output.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Thresholds are upper bounds on the affected fraction of all nodes.
// A fraction below Low is low risk, below Medium is medium, below High is
// high, anything else is critical.
type Thresholds struct {
	Low    float64 `json:"low" koanf:"low"`
	Medium float64 `json:"medium" koanf:"medium"`
	High   float64 `json:"high" koanf:"high"`
}

// DefaultThresholds returns 5%, 15%, and 35%.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0.05, Medium: 0.15, High: 0.35}
}

// Validate checks that 0 < Low <= Medium <= High <= 1.
func (t Thresholds) Validate() error {
	if t.Low <= 0 || t.Low > t.Medium || t.Medium > t.High || t.High > 1 {
		return fmt.Errorf("invalid impact thresholds %.3f/%.3f/%.3f: need 0 < low <= medium <= high <= 1",
			t.Low, t.Medium, t.High)
	}
	return nil
}

// Classify maps an affected fraction to a risk level.
func (t Thresholds) Classify(fraction float64) RiskLevel {
	switch {
	case fraction < t.Low:
		return RiskLow
	case fraction < t.Medium:
		return RiskMedium
	case fraction < t.High:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Report describes the blast radius of changing one node.
type Report struct {
	ID               string         `json:"id"`
	Direct           []string       `json:"direct"`
	Affected         []string       `json:"affected"`
	AffectedCount    int            `json:"affected_count"`
	TotalNodes       int            `json:"total_nodes"`
	Fraction         float64        `json:"fraction"`
	Risk             RiskLevel      `json:"risk"`
	Thresholds       Thresholds     `json:"thresholds"`
	AffectedByKind   map[string]int `json:"affected_by_kind"`
	DistanceFromRoot int            `json:"distance_from_root"`
	DownstreamDepth  int            `json:"downstream_depth"`
}

// Options configures New.
type Options struct {
	// Thresholds defaults to DefaultThresholds when zero.
	Thresholds Thresholds
	// Kinds classifies nodes for AffectedByKind. Unknown nodes count as models.
	Kinds map[string]analyzer.NodeKind
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Analyzer answers impact queries against a finished graph.
type Analyzer struct {
	graph      dag.Reader
	kinds      map[string]analyzer.NodeKind
	thresholds Thresholds
	levels     map[string]int
	logger     *slog.Logger
}

// New creates an impact analyzer.
func New(graph dag.Reader, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	th := opts.Thresholds
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	return &Analyzer{
		graph:      graph,
		kinds:      opts.Kinds,
		thresholds: th,
		levels:     chainLevels(graph),
		logger:     logger,
	}
}

// chainLevels maps each node to its longest dependency chain. On a cyclic
// graph it falls back to BFS depth toward dependencies.
func chainLevels(graph dag.Reader) map[string]int {
	out := make(map[string]int, graph.NodeCount())
	levels, err := graph.ExecutionLevels()
	if err != nil {
		for _, id := range graph.Nodes() {
			out[id] = graph.Depth(id, dag.Upstream)
		}
		return out
	}
	for l, ids := range levels {
		for _, id := range ids {
			out[id] = l
		}
	}
	return out
}

// Thresholds returns the thresholds in use.
func (a *Analyzer) Thresholds() Thresholds {
	return a.thresholds
}

// Analyze computes the impact of changing id.
func (a *Analyzer) Analyze(id string) (*Report, error) {
	if !a.graph.HasNode(id) {
		return nil, &analyzer.NotFoundError{ID: id}
	}
	affected := a.graph.TransitiveDownstream(id)
	total := a.graph.NodeCount()
	fraction := float64(len(affected)) / float64(total)

	r := &Report{
		ID:               id,
		Direct:           a.graph.DirectDependents(id),
		Affected:         affected,
		AffectedCount:    len(affected),
		TotalNodes:       total,
		Fraction:         fraction,
		Risk:             a.thresholds.Classify(fraction),
		Thresholds:       a.thresholds,
		AffectedByKind:   a.byKind(affected),
		DistanceFromRoot: a.levels[id],
		DownstreamDepth:  a.graph.Depth(id, dag.Downstream),
	}
	a.logger.Debug("impact analyzed", "node", id, "affected", r.AffectedCount, "risk", r.Risk.String())
	return r, nil
}

func (a *Analyzer) byKind(ids []string) map[string]int {
	out := make(map[string]int)
	for _, id := range ids {
		kind := analyzer.KindModel
		if k, ok := a.kinds[id]; ok {
			kind = k
		}
		out[string(kind)]++
	}
	return out
}

// AnalyzeMany analyzes each id in order, stopping at the first unknown id.
func (a *Analyzer) AnalyzeMany(ids []string) ([]*Report, error) {
	out := make([]*Report, 0, len(ids))
	for _, id := range ids {
		r, err := a.Analyze(id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// CombinedReport is the union impact of changing several nodes together.
type CombinedReport struct {
	Changed       []string  `json:"changed"`
	Affected      []string  `json:"affected"`
	AffectedCount int       `json:"affected_count"`
	TotalNodes    int       `json:"total_nodes"`
	Fraction      float64   `json:"fraction"`
	Risk          RiskLevel `json:"risk"`
}

// Combined returns the nodes downstream of any changed id, excluding the
// changed ids themselves.
func (a *Analyzer) Combined(ids []string) (*CombinedReport, error) {
	changed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !a.graph.HasNode(id) {
			return nil, &analyzer.NotFoundError{ID: id}
		}
		changed[id] = true
	}
	affected := []string{}
	for _, id := range a.graph.AffectedNodes(ids) {
		if !changed[id] {
			affected = append(affected, id)
		}
	}
	keys := make([]string, 0, len(changed))
	for id := range changed {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	total := a.graph.NodeCount()
	fraction := 0.0
	if total > 0 {
		fraction = float64(len(affected)) / float64(total)
	}
	return &CombinedReport{
		Changed:       keys,
		Affected:      affected,
		AffectedCount: len(affected),
		TotalNodes:    total,
		Fraction:      fraction,
		Risk:          a.thresholds.Classify(fraction),
	}, nil
}

// Ranked is a node with its affected count and risk.
type Ranked struct {
	ID    string    `json:"id"`
	Count int       `json:"count"`
	Risk  RiskLevel `json:"risk"`
}

// HighImpact returns nodes whose change affects at least minCount nodes,
// by descending count then ascending id.
func (a *Analyzer) HighImpact(minCount int) []Ranked {
	var out []Ranked
	total := a.graph.NodeCount()
	for _, id := range a.graph.Nodes() {
		n := len(a.graph.TransitiveDownstream(id))
		if n < minCount || n == 0 {
			continue
		}
		out = append(out, Ranked{ID: id, Count: n, Risk: a.thresholds.Classify(float64(n) / float64(total))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// CriticalPath is the longest dependency chain in the graph.
type CriticalPath struct {
	Path   []string `json:"path"`
	Length int      `json:"length"`
}

// CriticalPath returns the longest simple path by edge count. It is
// undefined on cyclic graphs and returns the *dag.CycleError in that case.
func (a *Analyzer) CriticalPath() (*CriticalPath, error) {
	path, err := a.graph.LongestPath()
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			a.logger.Warn("critical path undefined on cyclic graph", "cycles", len(cycleErr.Cycles))
		}
		return nil, err
	}
	return &CriticalPath{Path: path, Length: max(len(path)-1, 0)}, nil
}

// Summary aggregates impact over every node.
type Summary struct {
	TotalNodes      int            `json:"total_nodes"`
	TotalEdges      int            `json:"total_edges"`
	ByRisk          map[string]int `json:"by_risk"`
	AverageAffected float64        `json:"average_affected"`
	MaxAffected     *Ranked        `json:"max_affected,omitempty"`
	Thresholds      Thresholds     `json:"thresholds"`
}

// Summary computes the risk distribution over all nodes.
func (a *Analyzer) Summary() Summary {
	s := Summary{
		TotalNodes: a.graph.NodeCount(),
		TotalEdges: a.graph.EdgeCount(),
		ByRisk:     map[string]int{},
		Thresholds: a.thresholds,
	}
	sum := 0
	for _, id := range a.graph.Nodes() {
		n := len(a.graph.TransitiveDownstream(id))
		risk := a.thresholds.Classify(float64(n) / float64(s.TotalNodes))
		s.ByRisk[risk.String()]++
		sum += n
		if s.MaxAffected == nil || n > s.MaxAffected.Count {
			s.MaxAffected = &Ranked{ID: id, Count: n, Risk: risk}
		}
	}
	if s.TotalNodes > 0 {
		s.AverageAffected = float64(sum) / float64(s.TotalNodes)
	}
	return s
}
