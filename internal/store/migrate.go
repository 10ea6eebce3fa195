package store

import (
	"fmt"

	"github.com/workgraph/workgraph/internal/graph"
)

// MigrateLoopsTo folds every task's legacy LoopsTo back-edge records into
// the structural model (§9): for each record, the source task's id is added
// to the target task's After, and CycleConfig is set on the target (the new
// header). Returns the number of records folded. Idempotent: a
// already-migrated task has no LoopsTo entries left, so re-running is a
// no-op.
func MigrateLoopsTo(g *graph.WorkGraph) (int, error) {
	folded := 0
	for _, t := range g.Tasks() {
		if len(t.LoopsTo) == 0 {
			continue
		}
		for _, rec := range t.LoopsTo {
			target, ok := g.GetTask(rec.Target)
			if !ok {
				return folded, fmt.Errorf("loops_to target %q on task %q not found", rec.Target, t.ID)
			}
			if !containsString(target.After, t.ID) {
				target.After = append(target.After, t.ID)
			}
			if target.CycleConfig == nil {
				target.CycleConfig = &graph.CycleConfig{
					MaxIterations: rec.MaxIterations,
					Guard:         rec.Guard,
					Delay:         rec.Delay,
				}
			}
			folded++
		}
		t.LoopsTo = nil
	}
	if folded > 0 {
		g.InvalidateCycleCache()
	}
	return folded, nil
}

func containsString(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
