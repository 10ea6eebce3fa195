package query

import (
	"sort"

	"github.com/workgraph/workgraph/internal/graph"
)

// Admission records whether a task was admitted under a budget/hours fit
// and whether admission depended on a predecessor not yet done (future
// unblocking), per §4.3.
type Admission struct {
	TaskID              string
	Admitted            bool
	DependsOnUnblocking bool
}

// FitResult is the result of a budget or hours fit query.
type FitResult struct {
	AdmittedIDs []string
	Records     []Admission
}

// TasksWithinBudget greedily admits ready tasks within a cost budget, then
// iteratively admits any task whose predecessors are all admitted-or-done,
// until a fixed point or budget exhaustion (§4.3).
func TasksWithinBudget(g *graph.WorkGraph, budget float64) FitResult {
	return fit(g, func(t *graph.Task) float64 {
		if t.Estimate == nil {
			return 0
		}
		return t.Estimate.Cost
	}, budget)
}

// TasksWithinHours is the hours-budgeted analogue of TasksWithinBudget.
func TasksWithinHours(g *graph.WorkGraph, hours float64) FitResult {
	return fit(g, func(t *graph.Task) float64 {
		if t.Estimate == nil {
			return 0
		}
		return t.Estimate.Hours
	}, hours)
}

func fit(g *graph.WorkGraph, weight func(*graph.Task) float64, budgetCap float64) FitResult {
	ready := ReadyTasks(g, nil)

	admitted := map[string]bool{}
	dependsOnUnblocking := map[string]bool{}
	var order []string
	spent := 0.0

	// Phase 1: admit all currently ready tasks within budget, cheapest
	// first so a tight budget still admits as much work as possible.
	sortedReady := append([]*graph.Task(nil), ready...)
	sortByWeightThenID(sortedReady, weight)
	for _, t := range sortedReady {
		w := weight(t)
		if spent+w > budgetCap {
			continue
		}
		admitted[t.ID] = true
		order = append(order, t.ID)
		spent += w
	}

	// Phase 2: iteratively admit any Open task whose predecessors are all
	// admitted-or-done, until a fixed point or budget exhaustion.
	for {
		progressed := false
		for _, t := range g.Tasks() {
			if t.Status != graph.StatusOpen || admitted[t.ID] {
				continue
			}
			ok, blockedOnFuture := predecessorsAdmittedOrDone(g, t, admitted)
			if !ok {
				continue
			}
			w := weight(t)
			if spent+w > budgetCap {
				continue
			}
			admitted[t.ID] = true
			dependsOnUnblocking[t.ID] = blockedOnFuture
			order = append(order, t.ID)
			spent += w
			progressed = true
		}
		if !progressed {
			break
		}
	}

	records := make([]Admission, 0, len(order))
	for _, id := range order {
		records = append(records, Admission{
			TaskID:              id,
			Admitted:            true,
			DependsOnUnblocking: dependsOnUnblocking[id],
		})
	}
	return FitResult{AdmittedIDs: order, Records: records}
}

func predecessorsAdmittedOrDone(g *graph.WorkGraph, t *graph.Task, admitted map[string]bool) (ok bool, dependsOnUnblocking bool) {
	ok = true
	for _, pred := range t.After {
		predTask, found := g.GetTask(pred)
		if !found {
			continue // dangling/cross-repo: treated as satisfied, as in readiness
		}
		if predTask.Status.Terminal() {
			continue
		}
		if admitted[pred] {
			dependsOnUnblocking = true
			continue
		}
		ok = false
	}
	return ok, dependsOnUnblocking
}

func sortByWeightThenID(tasks []*graph.Task, weight func(*graph.Task) float64) {
	sort.Slice(tasks, func(i, j int) bool {
		if weight(tasks[i]) != weight(tasks[j]) {
			return weight(tasks[i]) < weight(tasks[j])
		}
		return tasks[i].ID < tasks[j].ID
	})
}
