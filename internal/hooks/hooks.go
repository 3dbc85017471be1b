// Package hooks runs named callbacks at analysis lifecycle points.
package hooks

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/dag"
)

// Event identifies a lifecycle point.
type Event string

const (
	ParseStart       Event = "parse_start"
	ParseComplete    Event = "parse_complete"
	GraphBuilt       Event = "graph_built"
	AnalysisComplete Event = "analysis_complete"
)

type (
	// ParseStartFunc receives the number of files about to be parsed.
	ParseStartFunc func(files int)
	// ParseCompleteFunc receives the merged parse result.
	ParseCompleteFunc func(res *analyzer.ParseResult)
	// GraphBuiltFunc receives the built graph.
	GraphBuiltFunc func(g dag.Reader)
	// AnalysisCompleteFunc receives an analysis name and its report.
	AnalysisCompleteFunc func(name string, report any)
)

type entry[F any] struct {
	name string
	fn   F
}

// Registry holds hooks per event. Hooks run in registration order. A
// panicking hook is logged and skipped. The zero value is not usable; call
// New.
type Registry struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	disabled map[string]bool

	parseStart       []entry[ParseStartFunc]
	parseComplete    []entry[ParseCompleteFunc]
	graphBuilt       []entry[GraphBuiltFunc]
	analysisComplete []entry[AnalysisCompleteFunc]
}

// New creates an empty registry. A nil logger discards output.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{logger: logger, disabled: make(map[string]bool)}
}

// OnParseStart registers fn to run before files are parsed. Hooks run in
// registration order.
func (r *Registry) OnParseStart(name string, fn ParseStartFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parseStart = append(r.parseStart, entry[ParseStartFunc]{name, fn})
}

// OnParseComplete registers fn to run once every file has been extracted.
func (r *Registry) OnParseComplete(name string, fn ParseCompleteFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parseComplete = append(r.parseComplete, entry[ParseCompleteFunc]{name, fn})
}

// OnGraphBuilt registers fn to run after the dependency graph is assembled.
func (r *Registry) OnGraphBuilt(name string, fn GraphBuiltFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphBuilt = append(r.graphBuilt, entry[GraphBuiltFunc]{name, fn})
}

// OnAnalysisComplete registers fn to receive the result of a named analysis.
func (r *Registry) OnAnalysisComplete(name string, fn AnalysisCompleteFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analysisComplete = append(r.analysisComplete, entry[AnalysisCompleteFunc]{name, fn})
}

// Disable stops every hook registered under name from running.
func (r *Registry) Disable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[name] = true
}

// Enable reverses Disable.
func (r *Registry) Enable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.disabled, name)
}

// Enabled reports whether hooks named name run.
func (r *Registry) Enabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.disabled[name]
}

// Count returns the number of hooks registered for event.
func (r *Registry) Count(event Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch event {
	case ParseStart:
		return len(r.parseStart)
	case ParseComplete:
		return len(r.parseComplete)
	case GraphBuilt:
		return len(r.graphBuilt)
	case AnalysisComplete:
		return len(r.analysisComplete)
	}
	return 0
}

func (r *Registry) EmitParseStart(files int) {
	r.mu.RLock()
	entries := enabled(r.disabled, r.parseStart)
	r.mu.RUnlock()
	for _, e := range entries {
		r.call(ParseStart, e.name, func() { e.fn(files) })
	}
}

func (r *Registry) EmitParseComplete(res *analyzer.ParseResult) {
	r.mu.RLock()
	entries := enabled(r.disabled, r.parseComplete)
	r.mu.RUnlock()
	for _, e := range entries {
		r.call(ParseComplete, e.name, func() { e.fn(res) })
	}
}

func (r *Registry) EmitGraphBuilt(g dag.Reader) {
	r.mu.RLock()
	entries := enabled(r.disabled, r.graphBuilt)
	r.mu.RUnlock()
	for _, e := range entries {
		r.call(GraphBuilt, e.name, func() { e.fn(g) })
	}
}

func (r *Registry) EmitAnalysisComplete(name string, report any) {
	r.mu.RLock()
	entries := enabled(r.disabled, r.analysisComplete)
	r.mu.RUnlock()
	for _, e := range entries {
		r.call(AnalysisComplete, e.name, func() { e.fn(name, report) })
	}
}

// enabled copies the entries not disabled. Callers hold r.mu so hooks may
// register or disable others while running.
func enabled[F any](disabled map[string]bool, entries []entry[F]) []entry[F] {
	out := make([]entry[F], 0, len(entries))
	for _, e := range entries {
		if !disabled[e.name] {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) call(event Event, name string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("hook panicked", "event", string(event), "hook", name, "panic", fmt.Sprint(p))
		}
	}()
	fn()
}
