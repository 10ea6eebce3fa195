package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workgraph/workgraph/internal/graph"
)

func mustLoad(t *testing.T, g *graph.WorkGraph, task *graph.Task) {
	t.Helper()
	require.NoError(t, g.LoadTask(task))
}

func TestReadyTasksSimplePipeline(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a"})
	mustLoad(t, g, &graph.Task{ID: "b", After: []string{"a"}})
	mustLoad(t, g, &graph.Task{ID: "c", After: []string{"b"}})

	ready := ReadyTasks(g, nil)
	require.Len(t, ready, 1)
	assert.Equal(t, "a", ready[0].ID)

	a, _ := g.GetTask("a")
	a.Status = graph.StatusDone

	ready = ReadyTasks(g, nil)
	require.Len(t, ready, 1)
	assert.Equal(t, "b", ready[0].ID)
}

func TestReadyTasksDiamond(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a"})
	mustLoad(t, g, &graph.Task{ID: "b", After: []string{"a"}})
	mustLoad(t, g, &graph.Task{ID: "c", After: []string{"a"}})
	mustLoad(t, g, &graph.Task{ID: "d", After: []string{"b", "c"}})

	ready := ReadyTasks(g, nil)
	require.Len(t, ready, 1)

	a, _ := g.GetTask("a")
	a.Status = graph.StatusDone
	ready = ReadyTasks(g, nil)
	ids := idsOf(ready)
	assert.ElementsMatch(t, []string{"b", "c"}, ids)
}

func TestReadyTasksExemptsBackEdgeIntoConfiguredHeader(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{
		ID:          "write",
		After:       []string{"review"},
		CycleConfig: &graph.CycleConfig{MaxIterations: 3},
	})
	mustLoad(t, g, &graph.Task{ID: "review", After: []string{"write"}, Status: graph.StatusOpen})

	// review is not terminal, but write's back-edge into itself (the
	// header) is exempted.
	ready := ReadyTasks(g, nil)
	ids := idsOf(ready)
	assert.Contains(t, ids, "write")
}

func TestReadyTasksUnconfiguredCycleDeadlocks(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a", After: []string{"b"}})
	mustLoad(t, g, &graph.Task{ID: "b", After: []string{"a"}})

	ready := ReadyTasks(g, nil)
	assert.Empty(t, ready)
}

func TestReadyTasksPausedNeverReady(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a", Paused: true})
	assert.Empty(t, ReadyTasks(g, nil))
}

func TestReadyTasksRespectsNotBefore(t *testing.T) {
	g := graph.New()
	future := Now().Add(time.Hour)
	mustLoad(t, g, &graph.Task{ID: "a", NotBefore: &future})
	assert.Empty(t, ReadyTasks(g, nil))
}

func TestReadyTasksSubsetOfOpen(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a"})
	mustLoad(t, g, &graph.Task{ID: "b", Status: graph.StatusDone})
	for _, task := range ReadyTasks(g, nil) {
		assert.Equal(t, graph.StatusOpen, task.Status)
	}
}

func TestProjectSummaryCountsWaitingSeparatelyFromBlocked(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a"})
	mustLoad(t, g, &graph.Task{ID: "b", After: []string{"a"}})
	mustLoad(t, g, &graph.Task{ID: "c", Status: graph.StatusBlocked})

	s := ProjectSummary(g)
	assert.Equal(t, 2, s.Open)
	assert.Equal(t, 1, s.Waiting)
	assert.Equal(t, 1, s.Blocked)
}

func TestCostOfSumsTransitiveClosure(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a", Estimate: &graph.Estimate{Cost: 10}})
	mustLoad(t, g, &graph.Task{ID: "b", Estimate: &graph.Estimate{Cost: 5}, After: []string{"a"}})
	mustLoad(t, g, &graph.Task{ID: "c", Estimate: &graph.Estimate{Cost: 1}, After: []string{"b"}})

	assert.Equal(t, 16.0, CostOf(g, "c"))
}

func TestCostOfCycleSafe(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a", Estimate: &graph.Estimate{Cost: 3}, After: []string{"b"}})
	mustLoad(t, g, &graph.Task{ID: "b", Estimate: &graph.Estimate{Cost: 4}, After: []string{"a"}})

	// Must terminate and produce a finite, stable value.
	got := CostOf(g, "a")
	assert.Equal(t, 7.0, got)
}

func TestTasksWithinBudgetFixedPoint(t *testing.T) {
	g := graph.New()
	mustLoad(t, g, &graph.Task{ID: "a", Estimate: &graph.Estimate{Cost: 2}})
	mustLoad(t, g, &graph.Task{ID: "b", Estimate: &graph.Estimate{Cost: 2}, After: []string{"a"}})
	mustLoad(t, g, &graph.Task{ID: "c", Estimate: &graph.Estimate{Cost: 100}, After: []string{"b"}})

	result := TasksWithinBudget(g, 4)
	assert.ElementsMatch(t, []string{"a", "b"}, result.AdmittedIDs)
}

func idsOf(tasks []*graph.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
