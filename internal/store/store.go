// Package store persists a workgraph as a line-delimited JSON record stream
// under a file-level advisory lock, with crash-safe atomic writes.
//
// Grounded on the teacher's internal/devops/process/manager.go
// atomicWriteFile helper (temp-file + rename) and on gastown's
// internal/daemon/daemon.go use of github.com/gofrs/flock for advisory
// locking across concurrent CLI/daemon processes.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/workgraph/workgraph/internal/graph"
)

// Store manages load/save of a graph.jsonl file with a sibling graph.lock.
type Store struct {
	path     string
	lockPath string
}

// New creates a Store bound to the given graph.jsonl path.
func New(path string) *Store {
	return &Store{path: path, lockPath: filepath.Join(filepath.Dir(path), "graph.lock")}
}

// Path returns the bound graph file path.
func (s *Store) Path() string { return s.path }

// Lock acquires the exclusive advisory lock for the duration of fn, then
// loads, lets fn mutate, and saves. Lock release is guaranteed on every
// exit path, including panics and early returns, per §9's scoped
// graph-lock-acquisition requirement.
func (s *Store) Lock(fn func(g *graph.WorkGraph) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return graph.NewIOError("create graph directory", err)
	}

	fl := flock.New(s.lockPath)
	locked, lockErr := fl.TryLock()
	if lockErr != nil {
		return graph.NewLockError("acquire graph lock", lockErr)
	}
	if !locked {
		return graph.NewLockError("graph is locked by another process", nil)
	}
	defer func() {
		_ = fl.Unlock()
	}()

	g, loadErr := s.loadLocked()
	if loadErr != nil {
		return loadErr
	}

	if mutErr := fn(g); mutErr != nil {
		return mutErr
	}

	return s.saveLocked(g)
}

// Load reads the graph without acquiring the exclusive lock, relying on
// POSIX rename atomicity for torn-read safety (§4.1 read contract). Safe to
// call from read-only query paths.
func (s *Store) Load() (*graph.WorkGraph, error) {
	return s.loadLocked()
}

func (s *Store) loadLocked() (*graph.WorkGraph, error) {
	g := graph.New()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return g, nil
		}
		return nil, graph.NewIOError("open graph file", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		node, err := graph.UnmarshalNode(raw)
		if err != nil {
			return nil, graph.NewParseError(line, err)
		}
		if err := insert(g, node); err != nil {
			return nil, graph.NewParseError(line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, graph.NewIOError("scan graph file", err)
	}
	return g, nil
}

func insert(g *graph.WorkGraph, n graph.Node) error {
	switch v := n.(type) {
	case *graph.Task:
		return g.LoadTask(v)
	case *graph.Actor:
		return g.AddActor(v)
	case *graph.Resource:
		return g.AddResource(v)
	default:
		return fmt.Errorf("unknown node type %T", n)
	}
}

// saveLocked serializes the full graph to a sibling temp file, fsyncs it,
// then atomically renames it over the destination. Node order is a stable
// sort on id so textual diffs are deterministic (§4.1 write contract).
func (s *Store) saveLocked(g *graph.WorkGraph) error {
	var buf bytes.Buffer
	buf.WriteString("# workgraph graph.jsonl — generated, do not hand-edit the deterministic ordering\n")

	for _, t := range g.Tasks() {
		data, err := graph.MarshalTask(t)
		if err != nil {
			return graph.NewIOError("marshal task "+t.ID, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	actors := g.Actors()
	sort.Slice(actors, func(i, j int) bool { return actors[i].ID < actors[j].ID })
	for _, a := range actors {
		data, err := graph.MarshalNode(a)
		if err != nil {
			return graph.NewIOError("marshal actor "+a.ID, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	resources := g.Resources()
	for _, r := range resources {
		data, err := graph.MarshalNode(r)
		if err != nil {
			return graph.NewIOError("marshal resource "+r.ID, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".graph-*.tmp")
	if err != nil {
		return graph.NewIOError("create temp graph file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return graph.NewIOError("write temp graph file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return graph.NewIOError("fsync temp graph file", err)
	}
	if err := tmp.Close(); err != nil {
		return graph.NewIOError("close temp graph file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return graph.NewIOError("rename temp graph file into place", err)
	}
	return nil
}

// Now is overridable in tests.
var Now = time.Now
