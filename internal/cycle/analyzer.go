// Package cycle implements the structural cycle analyzer (§4.4): an
// iterative Tarjan strongly-connected-components pass over the
// predecessor-adjacency graph (edge B -> A when A.After contains B), with
// reducible/irreducible classification, header identification, and
// back-edge enumeration.
package cycle

import (
	"sort"

	"github.com/workgraph/workgraph/internal/graph"
)

// Analyze computes a fresh CycleAnalysis from g's current After edges. It
// does not read or write g's cache; callers decide whether to populate it
// via g.SetCachedCycleAnalysis.
func Analyze(g *graph.WorkGraph) *graph.CycleAnalysis {
	tasks := g.Tasks()
	adj := buildPredecessorAdjacency(tasks)

	sccs := tarjanSCC(adj, taskIDs(tasks))

	configured := map[string]bool{}
	for _, t := range tasks {
		if t.CycleConfig != nil {
			configured[t.ID] = true
		}
	}

	result := &graph.CycleAnalysis{TaskToCycle: map[string]int{}}
	for _, scc := range sccs {
		if len(scc) < 2 && !isSelfLoop(scc, adj) {
			continue
		}
		info := classify(scc, adj, configured)
		idx := len(result.Cycles)
		result.Cycles = append(result.Cycles, info)
		for _, m := range info.Members {
			result.TaskToCycle[m] = idx
		}
		if info.Reducible {
			// Back-edges are in-SCC predecessor -> header edges.
			memberSet := toSet(info.Members)
			for _, m := range info.Members {
				for _, pred := range adj[m] {
					if m == info.Header && memberSet[pred] {
						result.BackEdges = append(result.BackEdges, graph.BackEdge{
							Predecessor: pred,
							Header:      info.Header,
						})
					}
				}
			}
		}
	}
	sortBackEdges(result.BackEdges)
	return result
}

// AnalyzeAndCache computes the analysis, if not already cached, and
// populates the cache. Commands that only read MAY call Analyze directly to
// avoid requiring &mut semantics; this helper is for the coordinator tick,
// which is happy to cache.
func AnalyzeAndCache(g *graph.WorkGraph) *graph.CycleAnalysis {
	if cached, ok := g.CachedCycleAnalysis(); ok {
		return cached
	}
	a := Analyze(g)
	g.SetCachedCycleAnalysis(a)
	return a
}

// buildPredecessorAdjacency returns, for each task id, the set of task ids
// that must complete before it (i.e. the After edges restricted to local,
// resolvable ids — cross-repo references and dangling ids play no role in
// structural cycle detection).
func buildPredecessorAdjacency(tasks []*graph.Task) map[string][]string {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	adj := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		for _, pred := range t.After {
			if graph.IsCrossRepoRef(pred) || !known[pred] {
				continue
			}
			adj[t.ID] = append(adj[t.ID], pred)
		}
	}
	return adj
}

// isSelfLoop reports whether the single-node component scc is a task that
// lists itself as its own predecessor (only reachable via legacy data; the
// interactive "add" command refuses to create one).
func isSelfLoop(scc []string, adj map[string][]string) bool {
	if len(scc) != 1 {
		return false
	}
	for _, pred := range adj[scc[0]] {
		if pred == scc[0] {
			return true
		}
	}
	return false
}

func taskIDs(tasks []*graph.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

// classify identifies the header of an SCC: the single entry node if there
// is exactly one (reducible); for zero entries (isolated cycle, reducible)
// the one member carrying cycle_config, or the lexicographically smallest
// member when no single member carries it; or marks the cycle irreducible
// if there are multiple entries.
func classify(scc []string, adj map[string][]string, configured map[string]bool) graph.CycleInfo {
	members := append([]string(nil), scc...)
	sort.Strings(members)
	memberSet := toSet(members)

	var entries []string
	for _, m := range members {
		for _, pred := range adj[m] {
			if !memberSet[pred] {
				entries = append(entries, m)
				break
			}
		}
	}
	entries = dedupe(entries)

	switch {
	case len(entries) == 1:
		return graph.CycleInfo{Members: members, Header: entries[0], Reducible: true}
	case len(entries) == 0:
		header := members[0]
		var withConfig []string
		for _, m := range members {
			if configured[m] {
				withConfig = append(withConfig, m)
			}
		}
		if len(withConfig) == 1 {
			header = withConfig[0]
		}
		return graph.CycleInfo{Members: members, Header: header, Reducible: true}
	default:
		sort.Strings(entries)
		return graph.CycleInfo{Members: members, Header: entries[0], Reducible: false}
	}
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func dedupe(ss []string) []string {
	seen := map[string]bool{}
	out := ss[:0]
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func sortBackEdges(be []graph.BackEdge) {
	sort.Slice(be, func(i, j int) bool {
		if be[i].Header != be[j].Header {
			return be[i].Header < be[j].Header
		}
		return be[i].Predecessor < be[j].Predecessor
	})
}
