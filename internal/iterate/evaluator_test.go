package iterate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workgraph/workgraph/internal/cycle"
	"github.com/workgraph/workgraph/internal/graph"
)

func mustLoad(t *testing.T, g *graph.WorkGraph, task *graph.Task) {
	t.Helper()
	require.NoError(t, g.LoadTask(task))
}

// TestEvaluateConvergenceScenario reproduces S3: a write/review cycle with
// max_iterations=3 iterates once, then converges on the second completion.
func TestEvaluateConvergenceScenario(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{
		ID:          "write",
		After:       []string{"review"},
		CycleConfig: &graph.CycleConfig{MaxIterations: 3},
	})
	mustLoad(t, g, &graph.Task{ID: "review", After: []string{"write"}})

	write, _ := g.GetTask("write")
	review, _ := g.GetTask("review")

	write.Status = graph.StatusDone
	review.Status = graph.StatusOpen
	analysis := cycle.Analyze(g)
	res := Evaluate(g, analysis, "write")
	assert.False(t, res.Iterated, "review is not yet terminal")

	review.Status = graph.StatusDone
	analysis = cycle.Analyze(g)
	res = Evaluate(g, analysis, "review")
	require.True(t, res.Iterated)
	assert.Equal(t, "write", res.Header)
	assert.Equal(t, graph.StatusOpen, write.Status)
	assert.Equal(t, graph.StatusOpen, review.Status)
	assert.Equal(t, 1, write.LoopIteration)
	assert.Equal(t, 1, review.LoopIteration)

	// Second pass: write then review complete again; converge from review.
	write.Status = graph.StatusDone
	review.Status = graph.StatusDone
	analysis = cycle.Analyze(g)
	require.NoError(t, Converge(g, analysis, "review"))
	assert.True(t, write.HasTag("converged"))

	res = Evaluate(g, analysis, "review")
	assert.False(t, res.Iterated)
	assert.Equal(t, graph.StatusDone, write.Status)
	assert.Equal(t, 1, write.LoopIteration, "loop_iteration must not advance once converged")
}

func TestEvaluateCapsAtMaxIterations(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{
		ID:            "write",
		After:         []string{"review"},
		CycleConfig:   &graph.CycleConfig{MaxIterations: 1},
		LoopIteration: 1,
		Status:        graph.StatusDone,
	})
	mustLoad(t, g, &graph.Task{ID: "review", After: []string{"write"}, Status: graph.StatusDone})

	analysis := cycle.Analyze(g)
	res := Evaluate(g, analysis, "review")
	assert.False(t, res.Iterated)
}

func TestEvaluateNoopWhenNotInCycle(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a", Status: graph.StatusDone})
	analysis := cycle.Analyze(g)
	res := Evaluate(g, analysis, "a")
	assert.False(t, res.Iterated)
}

func TestEvaluateNoopUnconfiguredCycle(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a", After: []string{"b"}, Status: graph.StatusDone})
	mustLoad(t, g, &graph.Task{ID: "b", After: []string{"a"}, Status: graph.StatusDone})
	analysis := cycle.Analyze(g)
	res := Evaluate(g, analysis, "a")
	assert.False(t, res.Iterated)
}

func TestEvalGuardAlwaysAndTaskExpression(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "gate", Status: graph.StatusFailed})

	ok, err := EvalGuard(g, "always")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvalGuard(g, "task:gate=failed")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvalGuard(g, "task:gate=done")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateGuardBlocksIteration(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{
		ID:          "write",
		After:       []string{"review"},
		CycleConfig: &graph.CycleConfig{MaxIterations: 3, Guard: "task:gate=done"},
		Status:      graph.StatusDone,
	})
	mustLoad(t, g, &graph.Task{ID: "review", After: []string{"write"}, Status: graph.StatusDone})
	mustLoad(t, g, &graph.Task{ID: "gate", Status: graph.StatusOpen})

	analysis := cycle.Analyze(g)
	res := Evaluate(g, analysis, "review")
	assert.False(t, res.Iterated)
}
