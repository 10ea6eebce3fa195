package query

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/workgraph/workgraph/internal/graph"
)

// defaultCostCacheSize bounds the memoization cache used by CostCalculator
// when none is supplied; large enough for any graph this system's size
// budget anticipates (< 10^4 tasks per §4.4's complexity note).
const defaultCostCacheSize = 16384

// CostCalculator computes the transitive cost of a task's After closure,
// memoizing results across calls. Grounded on the teacher's use of
// hashicorp/golang-lru/v2 for request-scoped memoization caches.
type CostCalculator struct {
	cache *lru.Cache[string, float64]
}

// NewCostCalculator returns a calculator with its own memoization cache.
func NewCostCalculator() *CostCalculator {
	c, _ := lru.New[string, float64](defaultCostCacheSize)
	return &CostCalculator{cache: c}
}

// CostOf returns the transitive sum over After of estimate.cost, reachable
// from id. Cycle-safe: a predecessor already on the current recursion path
// contributes zero additional cost the second time it is encountered, so a
// structural cycle (configured or not) never causes infinite recursion.
func (c *CostCalculator) CostOf(g *graph.WorkGraph, id string) float64 {
	if v, ok := c.cache.Get(id); ok {
		return v
	}
	visiting := map[string]bool{}
	v := c.costOf(g, id, visiting)
	c.cache.Add(id, v)
	return v
}

func (c *CostCalculator) costOf(g *graph.WorkGraph, id string, visiting map[string]bool) float64 {
	if visiting[id] {
		return 0
	}
	if v, ok := c.cache.Get(id); ok {
		return v
	}
	visiting[id] = true
	defer delete(visiting, id)

	t, ok := g.GetTask(id)
	if !ok {
		return 0
	}
	total := 0.0
	if t.Estimate != nil {
		total += t.Estimate.Cost
	}
	for _, pred := range t.After {
		total += c.costOf(g, pred, visiting)
	}
	return total
}

// CostOf is a convenience wrapper for one-off callers that don't need a
// persistent cache across many queries.
func CostOf(g *graph.WorkGraph, id string) float64 {
	return NewCostCalculator().CostOf(g, id)
}
