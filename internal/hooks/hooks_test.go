package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/dag"
	"github.com/leapstack-labs/modelgraph/internal/testutil"
)

func TestRegistry_Order(t *testing.T) {
	r := New(testutil.NewTestLogger(t))
	var calls []string

	r.OnParseStart("first", func(n int) { calls = append(calls, "first") })
	r.OnParseStart("second", func(n int) { calls = append(calls, "second") })
	r.OnParseStart("third", func(n int) { calls = append(calls, "third") })

	r.EmitParseStart(3)
	assert.Equal(t, []string{"first", "second", "third"}, calls)
	assert.Equal(t, 3, r.Count(ParseStart))
	assert.Zero(t, r.Count(GraphBuilt))
}

func TestRegistry_Payloads(t *testing.T) {
	r := New(nil)
	var (
		files  int
		result *analyzer.ParseResult
		nodes  int
		name   string
		report any
	)
	r.OnParseStart("a", func(n int) { files = n })
	r.OnParseComplete("a", func(res *analyzer.ParseResult) { result = res })
	r.OnGraphBuilt("a", func(g dag.Reader) { nodes = g.NodeCount() })
	r.OnAnalysisComplete("a", func(n string, rep any) { name, report = n, rep })

	g := dag.NewGraph()
	g.AddEdge("b", "a")
	res := &analyzer.ParseResult{}

	r.EmitParseStart(7)
	r.EmitParseComplete(res)
	r.EmitGraphBuilt(g)
	r.EmitAnalysisComplete("impact", 42)

	assert.Equal(t, 7, files)
	assert.Same(t, res, result)
	assert.Equal(t, 2, nodes)
	assert.Equal(t, "impact", name)
	assert.Equal(t, 42, report)
}

func TestRegistry_EnableDisable(t *testing.T) {
	r := New(nil)
	var calls []string
	r.OnGraphBuilt("audit", func(dag.Reader) { calls = append(calls, "audit") })
	r.OnGraphBuilt("stats", func(dag.Reader) { calls = append(calls, "stats") })

	r.Disable("audit")
	assert.False(t, r.Enabled("audit"))
	r.EmitGraphBuilt(dag.NewGraph())
	assert.Equal(t, []string{"stats"}, calls)

	r.Enable("audit")
	assert.True(t, r.Enabled("audit"))
	r.EmitGraphBuilt(dag.NewGraph())
	assert.Equal(t, []string{"stats", "audit", "stats"}, calls)
}

func TestRegistry_RecoversPanic(t *testing.T) {
	logger, buf := testutil.NewCaptureLogger()
	r := New(logger)
	ran := false
	r.OnAnalysisComplete("broken", func(string, any) { panic("boom") })
	r.OnAnalysisComplete("after", func(string, any) { ran = true })

	assert.NotPanics(t, func() { r.EmitAnalysisComplete("unused", nil) })
	assert.True(t, ran)
	assert.Contains(t, buf.String(), "hook panicked")
	assert.Contains(t, buf.String(), "hook=broken")
	assert.Contains(t, buf.String(), "panic=boom")
}

func TestRegistry_RegisterDuringEmit(t *testing.T) {
	r := New(nil)
	count := 0
	r.OnParseStart("outer", func(int) {
		count++
		r.OnParseStart("inner", func(int) { count += 10 })
	})

	r.EmitParseStart(0)
	assert.Equal(t, 1, count)
	r.EmitParseStart(0)
	assert.Equal(t, 12, count)
}
