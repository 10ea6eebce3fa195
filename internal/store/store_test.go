package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workgraph/workgraph/internal/graph"
)

func TestLockLoadMutateSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "graph.jsonl"))

	err := s.Lock(func(g *graph.WorkGraph) error {
		return g.AddTask(&graph.Task{ID: "a", Title: "first"})
	})
	require.NoError(t, err)

	g, err := s.Load()
	require.NoError(t, err)
	task, ok := g.GetTask("a")
	require.True(t, ok)
	assert.Equal(t, "first", task.Title)
	assert.Equal(t, graph.StatusOpen, task.Status)
}

func TestSaveIsDeterministicallySorted(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "graph.jsonl"))

	err := s.Lock(func(g *graph.WorkGraph) error {
		require.NoError(t, g.AddTask(&graph.Task{ID: "zeta"}))
		require.NoError(t, g.AddTask(&graph.Task{ID: "alpha"}))
		return nil
	})
	require.NoError(t, err)

	first, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	// Re-save via a no-op mutation; output must be byte-identical.
	err = s.Lock(func(g *graph.WorkGraph) error { return nil })
	require.NoError(t, err)

	second, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadRejectsMalformedLineWithLineNumber(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("# comment\n{\"kind\":\"task\",\"id\":\"a\"}\nnot json\n"), 0o644))

	s := New(path)
	_, err := s.Load()
	require.Error(t, err)
	var gerr *graph.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, graph.KindParse, gerr.Kind)
	assert.Equal(t, 3, gerr.Line)
}

func TestLoadToleratesCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.jsonl")
	content := "# header comment\n\n  \n{\"kind\":\"task\",\"id\":\"a\",\"status\":\"Open\"}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := New(path)
	g, err := s.Load()
	require.NoError(t, err)
	_, ok := g.GetTask("a")
	assert.True(t, ok)
}

func TestSecondLockerIsRejectedWhileFirstHoldsLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.jsonl")
	s1 := New(path)
	s2 := New(path)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s1.Lock(func(g *graph.WorkGraph) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := s2.Lock(func(g *graph.WorkGraph) error { return nil })
	require.Error(t, err)
	var gerr *graph.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, graph.KindLock, gerr.Kind)
	close(release)
}

func TestCrashMidWriteLeavesLastGoodGraphIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.jsonl")
	s := New(path)

	require.NoError(t, s.Lock(func(g *graph.WorkGraph) error {
		return g.AddTask(&graph.Task{ID: "a", Title: "committed"})
	}))
	committed, err := os.ReadFile(path)
	require.NoError(t, err)

	// Simulate a crash between the temp file write and the rename: a
	// stray .graph-*.tmp sibling exists but graph.jsonl was never
	// replaced. Load must return the last successfully renamed content,
	// never the abandoned temp file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".graph-crash.tmp"), []byte("{\"kind\":\"task\",\"id\":\"corrupt-not-json\""), 0o644))

	g, err := s.Load()
	require.NoError(t, err)
	task, ok := g.GetTask("a")
	require.True(t, ok)
	assert.Equal(t, "committed", task.Title)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, committed, after)
}

func TestMigrateLoopsToFoldsIntoCycleConfig(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "graph.jsonl"))

	err := s.Lock(func(g *graph.WorkGraph) error {
		require.NoError(t, g.AddTask(&graph.Task{ID: "write", Status: graph.StatusDone}))
		require.NoError(t, g.AddTask(&graph.Task{
			ID:     "review",
			Status: graph.StatusDone,
			After:  []string{"write"},
			LoopsTo: []graph.LegacyLoopsTo{
				{Target: "write", MaxIterations: 3},
			},
		}))
		folded, err := MigrateLoopsTo(g)
		require.NoError(t, err)
		assert.Equal(t, 1, folded)
		return nil
	})
	require.NoError(t, err)

	g, err := s.Load()
	require.NoError(t, err)
	write, ok := g.GetTask("write")
	require.True(t, ok)
	require.NotNil(t, write.CycleConfig)
	assert.Equal(t, 3, write.CycleConfig.MaxIterations)
	assert.Contains(t, write.After, "review")

	review, ok := g.GetTask("review")
	require.True(t, ok)
	assert.Empty(t, review.LoopsTo)
}
