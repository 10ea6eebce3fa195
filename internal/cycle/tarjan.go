package cycle

import "sort"

// tarjanSCC computes strongly connected components of the graph described
// by adj (node -> list of successors) over the given universe of node ids,
// using an explicit-stack (iterative) formulation of Tarjan's algorithm so
// that pathologically deep chains don't blow the goroutine stack.
//
// Each returned component is a set of node ids; singletons are included so
// callers can distinguish "no cycle" (component of size 1) from a
// self-loop, which the caller treats identically to a singleton unless the
// node lists itself as its own predecessor (checked by the data model's
// AddTask validation, so self-loops only appear in legacy/migrated data).
func tarjanSCC(adj map[string][]string, ids []string) [][]string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	index := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var sccs [][]string
	counter := 0

	type frame struct {
		node     string
		children []string
		ci       int
	}

	var visit func(start string)
	visit = func(start string) {
		if _, seen := index[start]; seen {
			return
		}
		var work []*frame
		push := func(n string) {
			index[n] = counter
			lowlink[n] = counter
			counter++
			stack = append(stack, n)
			onStack[n] = true
			work = append(work, &frame{node: n, children: adj[n]})
		}
		push(start)

		for len(work) > 0 {
			top := work[len(work)-1]
			if top.ci < len(top.children) {
				child := top.children[top.ci]
				top.ci++
				if _, seen := index[child]; !seen {
					push(child)
					continue
				} else if onStack[child] {
					if index[child] < lowlink[top.node] {
						lowlink[top.node] = index[child]
					}
				}
				continue
			}

			// All children processed; pop and propagate lowlink.
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1]
				if lowlink[top.node] < lowlink[parent.node] {
					lowlink[parent.node] = lowlink[top.node]
				}
			}

			if lowlink[top.node] == index[top.node] {
				var component []string
				for {
					n := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[n] = false
					component = append(component, n)
					if n == top.node {
						break
					}
				}
				sccs = append(sccs, component)
			}
		}
	}

	for _, id := range sorted {
		visit(id)
	}
	return sccs
}
