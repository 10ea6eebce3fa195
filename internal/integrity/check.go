// Package integrity validates a graph and reports structural and
// referential problems without mutating anything (§4.6).
package integrity

import (
	"fmt"
	"sort"

	"github.com/workgraph/workgraph/internal/cycle"
	"github.com/workgraph/workgraph/internal/graph"
)

// Severity distinguishes errors (the graph cannot safely proceed on the
// affected tasks) from warnings (degraded but functioning).
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Kind     string   `json:"kind"`
	Message  string   `json:"message"`
	TaskIDs  []string `json:"task_ids,omitempty"`
}

// Report aggregates every issue found. Ok is true iff no error-severity
// issue is present (warnings alone don't flip it).
type Report struct {
	Ok     bool    `json:"ok"`
	Issues []Issue `json:"issues"`
}

// Check runs every validation named in §4.6 against g.
func Check(g *graph.WorkGraph) Report {
	var issues []Issue

	issues = append(issues, orphanReferences(g)...)

	analysis := cycle.Analyze(g)
	issues = append(issues, cycleIssues(g, analysis)...)

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Kind != issues[j].Kind {
			return issues[i].Kind < issues[j].Kind
		}
		return issues[i].Message < issues[j].Message
	})

	ok := true
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			ok = false
			break
		}
	}
	return Report{Ok: ok, Issues: issues}
}

func orphanReferences(g *graph.WorkGraph) []Issue {
	var issues []Issue
	for _, t := range g.Tasks() {
		for _, pred := range t.After {
			if graph.IsCrossRepoRef(pred) {
				continue
			}
			if _, ok := g.GetTask(pred); !ok {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Kind:     "orphan_reference",
					Message:  fmt.Sprintf("task %q references unknown predecessor %q", t.ID, pred),
					TaskIDs:  []string{t.ID},
				})
			}
		}
		if t.Assigned != "" {
			_, isActor := g.GetActor(t.Assigned)
			if !isActor {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Kind:     "orphan_reference",
					Message:  fmt.Sprintf("task %q is assigned to unknown agent %q", t.ID, t.Assigned),
					TaskIDs:  []string{t.ID},
				})
			}
		}
	}
	return issues
}

func cycleIssues(g *graph.WorkGraph, analysis *graph.CycleAnalysis) []Issue {
	var issues []Issue
	for _, c := range analysis.Cycles {
		if !c.Reducible {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Kind:     "irreducible_cycle",
				Message:  fmt.Sprintf("cycle %v has multiple entry points and cannot be headered", c.Members),
				TaskIDs:  c.Members,
			})
			continue
		}

		configured := 0
		for _, m := range c.Members {
			t, ok := g.GetTask(m)
			if ok && t.CycleConfig != nil {
				configured++
			}
		}
		switch {
		case configured == 0:
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Kind:     "unconfigured_cycle",
				Message:  fmt.Sprintf("cycle %v (header %s) has no cycle_config and will deadlock", c.Members, c.Header),
				TaskIDs:  c.Members,
			})
		case configured > 1:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Kind:     "conflicting_cycle_config",
				Message:  fmt.Sprintf("cycle %v has cycle_config set on more than one member", c.Members),
				TaskIDs:  c.Members,
			})
		}
	}
	return issues
}
