// Package iterate implements the cycle iteration evaluator (§4.5): the
// logic run on every terminal transition to decide whether a completed
// cycle re-opens.
package iterate

import (
	"fmt"
	"time"

	"github.com/workgraph/workgraph/internal/graph"
)

// Now is overridable in tests.
var Now = time.Now

// Result reports what Evaluate did, for logging/metrics by the caller.
type Result struct {
	Iterated bool
	Header   string
	Members  []string
	Reason   string // set when Iterated is false
}

// Evaluate is called exactly when completedID transitions to a terminal
// state. analysis is the current (possibly stale-but-valid) cycle analysis.
// Evaluate never mutates the graph if it declines to iterate.
func Evaluate(g *graph.WorkGraph, analysis *graph.CycleAnalysis, completedID string) Result {
	cycleInfo, inCycle := analysis.CycleOf(completedID)
	if !inCycle {
		return Result{Reason: "task is not a member of any cycle"}
	}

	for _, m := range cycleInfo.Members {
		t, ok := g.GetTask(m)
		if !ok || !t.Status.Terminal() {
			return Result{Reason: "not all cycle members are terminal yet"}
		}
	}

	header, ok := g.GetTask(cycleInfo.Header)
	if !ok {
		return Result{Reason: "cycle header not found"}
	}

	if header.HasTag("converged") {
		return Result{Reason: "cycle header is converged"}
	}

	if header.CycleConfig == nil {
		return Result{Reason: "cycle header has no cycle_config; unconfigured cycles deadlock intentionally"}
	}

	if header.LoopIteration >= header.CycleConfig.MaxIterations {
		return Result{Reason: "max_iterations reached"}
	}

	if header.CycleConfig.Guard != "" {
		ok, err := EvalGuard(g, header.CycleConfig.Guard)
		if err != nil || !ok {
			return Result{Reason: fmt.Sprintf("guard %q not satisfied", header.CycleConfig.Guard)}
		}
	}

	return iterateCycle(g, header, cycleInfo)
}

func iterateCycle(g *graph.WorkGraph, header *graph.Task, cycleInfo graph.CycleInfo) Result {
	now := Now()
	nextIteration := header.LoopIteration + 1

	for _, m := range cycleInfo.Members {
		t, ok := g.GetTask(m)
		if !ok {
			continue
		}
		t.Status = graph.StatusOpen
		t.Assigned = ""
		t.Agent = ""
		t.StartedAt = nil
		t.CompletedAt = nil
		t.LoopIteration = nextIteration
		t.AppendLog(now, "", fmt.Sprintf("Re-opened by cycle iteration %d/%d", nextIteration, header.CycleConfig.MaxIterations))
	}

	if header.CycleConfig.Delay != nil {
		readyAt := now.Add(*header.CycleConfig.Delay)
		header.ReadyAfter = &readyAt
	}

	return Result{Iterated: true, Header: header.ID, Members: cycleInfo.Members}
}

// Converge places the converged tag on the cycle header for completedID's
// cycle. Any member may signal convergence (§4.5); applying the tag is
// idempotent, so concurrent converge signals from multiple members in the
// same tick are safe.
func Converge(g *graph.WorkGraph, analysis *graph.CycleAnalysis, memberID string) error {
	cycleInfo, inCycle := analysis.CycleOf(memberID)
	if !inCycle {
		return graph.NewRejected("task is not a member of any cycle: " + memberID)
	}
	header, ok := g.GetTask(cycleInfo.Header)
	if !ok {
		return graph.NewRejected("cycle header not found: " + cycleInfo.Header)
	}
	header.AddTag("converged")
	return nil
}
