package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workgraph/workgraph/internal/graph"
)

func mustLoad(t *testing.T, g *graph.WorkGraph, task *graph.Task) {
	t.Helper()
	require.NoError(t, g.LoadTask(task))
}

func TestCheckOkOnEmptyGraph(t *testing.T) {
	r := Check(graph.New())
	assert.True(t, r.Ok)
	assert.Empty(t, r.Issues)
}

func TestCheckFlagsOrphanReference(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a", After: []string{"missing"}})

	r := Check(g)
	assert.True(t, r.Ok) // orphan refs are warnings, not errors
	require.Len(t, r.Issues, 1)
	assert.Equal(t, "orphan_reference", r.Issues[0].Kind)
}

func TestCheckFlagsUnconfiguredCycleAsWarning(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a", After: []string{"b"}})
	mustLoad(t, g, &graph.Task{ID: "b", After: []string{"a"}})

	r := Check(g)
	assert.True(t, r.Ok)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, SeverityWarning, r.Issues[0].Severity)
	assert.Equal(t, "unconfigured_cycle", r.Issues[0].Kind)
}

func TestCheckFlagsIrreducibleCycleAsError(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "x"})
	mustLoad(t, g, &graph.Task{ID: "y"})
	mustLoad(t, g, &graph.Task{ID: "a", After: []string{"b", "x"}})
	mustLoad(t, g, &graph.Task{ID: "b", After: []string{"a", "y"}})

	r := Check(g)
	assert.False(t, r.Ok)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, "irreducible_cycle", r.Issues[0].Kind)
}

func TestCheckFlagsConflictingCycleConfig(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a", After: []string{"b"}, CycleConfig: &graph.CycleConfig{MaxIterations: 1}})
	mustLoad(t, g, &graph.Task{ID: "b", After: []string{"a"}, CycleConfig: &graph.CycleConfig{MaxIterations: 1}})

	r := Check(g)
	assert.False(t, r.Ok)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, "conflicting_cycle_config", r.Issues[0].Kind)
}
