// Package query exposes read-only queries over a loaded graph (§4.3). No
// query mutates the graph or the cycle cache.
package query

import (
	"time"

	"github.com/workgraph/workgraph/internal/cycle"
	"github.com/workgraph/workgraph/internal/graph"
)

// Now is overridable in tests.
var Now = time.Now

// ReadyTasks returns open, unpaused, time-eligible tasks whose predecessors
// are all satisfied. Analysis may be nil, in which case it is computed on
// demand (without populating the graph's cache, so read-only callers never
// need &mut semantics).
func ReadyTasks(g *graph.WorkGraph, analysis *graph.CycleAnalysis) []*graph.Task {
	if analysis == nil {
		analysis = cycle.Analyze(g)
	}
	now := Now()
	var ready []*graph.Task
	for _, t := range g.Tasks() {
		if isReady(g, analysis, t, now) {
			ready = append(ready, t)
		}
	}
	return ready
}

func isReady(g *graph.WorkGraph, analysis *graph.CycleAnalysis, t *graph.Task, now time.Time) bool {
	if t.Status != graph.StatusOpen {
		return false
	}
	if t.Paused {
		return false
	}
	if t.NotBefore != nil && now.Before(*t.NotBefore) {
		return false
	}
	if t.ReadyAfter != nil && now.Before(*t.ReadyAfter) {
		return false
	}
	for _, pred := range t.After {
		if !predecessorSatisfied(g, analysis, t, pred) {
			return false
		}
	}
	return true
}

// predecessorSatisfied implements the three-way readiness rule from §4.3:
// (a) the predecessor resolves locally and is terminal, (b) it doesn't
// resolve at all (dangling or cross-repo — treated as satisfied to keep the
// graph forward-progressing under partial data), or (c) pred -> task is a
// back-edge recognised by the analyzer and the task itself is a configured
// cycle header.
func predecessorSatisfied(g *graph.WorkGraph, analysis *graph.CycleAnalysis, task *graph.Task, pred string) bool {
	predTask, ok := g.GetTask(pred)
	if !ok {
		// Unresolved: cross-repo reference or dangling id. Treated as
		// satisfied per the documented open question in §9.
		return true
	}
	if predTask.Status.Terminal() {
		return true
	}
	// Back-edge exemption: only a configured cycle header is exempt, and
	// only for edges the analyzer recognizes as back-edges into it.
	if task.CycleConfig == nil {
		return false
	}
	return analysis.IsBackEdge(pred, task.ID)
}

// PendingPredecessors returns the non-terminal ids in task id's After list
// that resolve to a known local task.
func PendingPredecessors(g *graph.WorkGraph, id string) []string {
	t, ok := g.GetTask(id)
	if !ok {
		return nil
	}
	var pending []string
	for _, pred := range t.After {
		predTask, ok := g.GetTask(pred)
		if !ok {
			continue
		}
		if !predTask.Status.Terminal() {
			pending = append(pending, pred)
		}
	}
	return pending
}
