package iterate

import (
	"fmt"
	"strings"

	"github.com/workgraph/workgraph/internal/graph"
)

// EvalGuard evaluates a cycle_config guard expression against the current
// graph state (§4.5). A guard is either the literal "always" or a simple
// expression of the form "task:<id>=<status>", comparing a task's current
// status (case-insensitively) to the named value. Evaluation is pure: it
// never mutates the graph.
func EvalGuard(g *graph.WorkGraph, expr string) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || strings.EqualFold(expr, "always") {
		return true, nil
	}

	rest, ok := strings.CutPrefix(expr, "task:")
	if !ok {
		return false, fmt.Errorf("unrecognized guard expression: %q", expr)
	}
	id, want, ok := strings.Cut(rest, "=")
	if !ok {
		return false, fmt.Errorf("malformed guard expression, expected task:<id>=<status>: %q", expr)
	}

	t, found := g.GetTask(id)
	if !found {
		return false, fmt.Errorf("guard references unknown task %q", id)
	}
	return strings.EqualFold(string(t.Status), want), nil
}
