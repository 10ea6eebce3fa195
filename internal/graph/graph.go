package graph

import (
	"sort"
	"strings"
	"sync"
)

// WorkGraph is the in-memory mutable graph: tasks, actors, and resources
// keyed by id, plus a lazily-populated, mutation-invalidated cycle analysis
// cache (§4.4).
//
// WorkGraph itself is not safe for concurrent use from multiple goroutines
// without external synchronization; the store and the daemon coordinate
// access through the graph file lock (§4.1) and the single-writer
// coordinator discipline (§5), not through a mutex on this type.
type WorkGraph struct {
	tasks     map[string]*Task
	actors    map[string]*Actor
	resources map[string]*Resource

	cacheMu sync.Mutex
	cache   *CycleAnalysis
}

// New returns an empty graph.
func New() *WorkGraph {
	return &WorkGraph{
		tasks:     map[string]*Task{},
		actors:    map[string]*Actor{},
		resources: map[string]*Resource{},
	}
}

// IsCrossRepoRef reports whether id has the "<peer>:<task-id>" syntax (one
// colon, slug-only on both sides).
func IsCrossRepoRef(id string) bool {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 {
		return false
	}
	return isSlug(parts[0]) && isSlug(parts[1]) && !strings.Contains(parts[1], ":")
}

func isSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

// AddTask inserts a task. It is rejected if the id collides with an
// existing node, is not a slug, or self-references in After.
func (g *WorkGraph) AddTask(t *Task) error {
	if !isSlug(t.ID) {
		return NewRejected("task id must be a lowercase hyphenated slug: " + t.ID)
	}
	if g.exists(t.ID) {
		return NewRejected("id already exists: " + t.ID)
	}
	for _, a := range t.After {
		if a == t.ID {
			return NewRejected("task cannot list itself in after: " + t.ID)
		}
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	g.tasks[t.ID] = t
	g.invalidateLocked()
	return nil
}

// LoadTask inserts a task without enforcing the interactive "add" command's
// invariants (slug shape, no self-reference). The persistent store uses
// this on load: legacy data may contain a self-loop or a non-slug id, and
// per §8's boundary behaviors such data must still load so the integrity
// checker and cycle analyzer can report on it, even though a fresh "add"
// refuses to create one.
func (g *WorkGraph) LoadTask(t *Task) error {
	if g.exists(t.ID) {
		return NewRejected("duplicate id in graph file: " + t.ID)
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	g.tasks[t.ID] = t
	g.invalidateLocked()
	return nil
}

// AddActor inserts an actor.
func (g *WorkGraph) AddActor(a *Actor) error {
	if !isSlug(a.ID) {
		return NewRejected("actor id must be a lowercase hyphenated slug: " + a.ID)
	}
	if g.exists(a.ID) {
		return NewRejected("id already exists: " + a.ID)
	}
	g.actors[a.ID] = a
	return nil
}

// AddResource inserts a resource.
func (g *WorkGraph) AddResource(r *Resource) error {
	if !isSlug(r.ID) {
		return NewRejected("resource id must be a lowercase hyphenated slug: " + r.ID)
	}
	if g.exists(r.ID) {
		return NewRejected("id already exists: " + r.ID)
	}
	g.resources[r.ID] = r
	return nil
}

func (g *WorkGraph) exists(id string) bool {
	if _, ok := g.tasks[id]; ok {
		return true
	}
	if _, ok := g.actors[id]; ok {
		return true
	}
	if _, ok := g.resources[id]; ok {
		return true
	}
	return false
}

// RemoveNode deletes a node by id, scrubbing references to it from every
// task's After/Before, and invalidates the cycle cache.
func (g *WorkGraph) RemoveNode(id string) bool {
	removed := false
	if _, ok := g.tasks[id]; ok {
		delete(g.tasks, id)
		removed = true
	}
	if _, ok := g.actors[id]; ok {
		delete(g.actors, id)
		removed = true
	}
	if _, ok := g.resources[id]; ok {
		delete(g.resources, id)
		removed = true
	}
	if !removed {
		return false
	}
	for _, t := range g.tasks {
		t.After = removeString(t.After, id)
		t.Before = removeString(t.Before, id)
		if t.Assigned == id {
			t.Assigned = ""
		}
	}
	g.invalidateLocked()
	return true
}

func removeString(ss []string, target string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// GetTask returns the task with id, if present.
func (g *WorkGraph) GetTask(id string) (*Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// GetActor returns the actor with id, if present.
func (g *WorkGraph) GetActor(id string) (*Actor, bool) {
	a, ok := g.actors[id]
	return a, ok
}

// GetResource returns the resource with id, if present.
func (g *WorkGraph) GetResource(id string) (*Resource, bool) {
	r, ok := g.resources[id]
	return r, ok
}

// Tasks returns all tasks sorted by id, for deterministic iteration.
func (g *WorkGraph) Tasks() []*Task {
	out := make([]*Task, 0, len(g.tasks))
	for _, t := range g.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Actors returns all actors sorted by id.
func (g *WorkGraph) Actors() []*Actor {
	out := make([]*Actor, 0, len(g.actors))
	for _, a := range g.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resources returns all resources sorted by id.
func (g *WorkGraph) Resources() []*Resource {
	out := make([]*Resource, 0, len(g.resources))
	for _, r := range g.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RebuildBefore recomputes every task's Before field from the authoritative
// After edges. Before is never trusted for scheduling; this is purely for
// presentation/export.
func (g *WorkGraph) RebuildBefore() {
	before := map[string][]string{}
	for _, t := range g.tasks {
		for _, pred := range t.After {
			if IsCrossRepoRef(pred) {
				continue
			}
			before[pred] = append(before[pred], t.ID)
		}
	}
	for _, t := range g.tasks {
		succ := before[t.ID]
		sort.Strings(succ)
		t.Before = succ
	}
}

// InvalidateCycleCache clears the cached cycle analysis. Exported because
// mutations of After happen on borrowed task handles obtained via GetTask,
// which the graph cannot observe automatically.
func (g *WorkGraph) InvalidateCycleCache() {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	g.cache = nil
}

func (g *WorkGraph) invalidateLocked() {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	g.cache = nil
}

// CachedCycleAnalysis returns the cached analysis, if any is populated.
func (g *WorkGraph) CachedCycleAnalysis() (*CycleAnalysis, bool) {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	if g.cache == nil {
		return nil, false
	}
	return g.cache, true
}

// SetCachedCycleAnalysis populates the cache. Called by internal/cycle after
// computing a fresh analysis.
func (g *WorkGraph) SetCachedCycleAnalysis(a *CycleAnalysis) {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	g.cache = a
}
