package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTaskRejectsSelfReference(t *testing.T) {
	g := New()
	err := g.AddTask(&Task{ID: "a", After: []string{"a"}})
	require.Error(t, err)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindRejected, gerr.Kind)
}

func TestAddTaskRejectsDuplicateID(t *testing.T) {
	g := New()
	require.NoError(t, g.AddTask(&Task{ID: "a"}))
	err := g.AddTask(&Task{ID: "a"})
	require.Error(t, err)
}

func TestAddTaskDefaultsStatusOpen(t *testing.T) {
	g := New()
	require.NoError(t, g.AddTask(&Task{ID: "a"}))
	task, ok := g.GetTask("a")
	require.True(t, ok)
	assert.Equal(t, StatusOpen, task.Status)
}

func TestRemoveNodeScrubsReferences(t *testing.T) {
	g := New()
	require.NoError(t, g.AddTask(&Task{ID: "a"}))
	require.NoError(t, g.AddTask(&Task{ID: "b", After: []string{"a"}}))

	assert.True(t, g.RemoveNode("a"))
	b, ok := g.GetTask("b")
	require.True(t, ok)
	assert.Empty(t, b.After)
}

func TestIsCrossRepoRef(t *testing.T) {
	assert.True(t, IsCrossRepoRef("peer-one:task-two"))
	assert.False(t, IsCrossRepoRef("plain-task"))
	assert.False(t, IsCrossRepoRef("a:b:c"))
}

func TestInvalidateCycleCacheOnMutation(t *testing.T) {
	g := New()
	require.NoError(t, g.AddTask(&Task{ID: "a"}))
	g.SetCachedCycleAnalysis(EmptyCycleAnalysis())
	_, ok := g.CachedCycleAnalysis()
	require.True(t, ok)

	require.NoError(t, g.AddTask(&Task{ID: "b"}))
	_, ok = g.CachedCycleAnalysis()
	assert.False(t, ok, "adding a node must invalidate the cache")
}

func TestTaskCodecRoundTrip(t *testing.T) {
	orig := &Task{ID: "a", Title: "do the thing", Status: StatusOpen, After: []string{"x"}}
	data, err := MarshalTask(orig)
	require.NoError(t, err)

	decoded, err := UnmarshalTask(data)
	require.NoError(t, err)
	assert.Equal(t, orig.ID, decoded.ID)
	assert.Equal(t, orig.After, decoded.After)
}

func TestTaskCodecAcceptsLegacyAliases(t *testing.T) {
	legacy := []byte(`{"kind":"task","id":"b","status":"Open","blocked_by":["a"],"blocks":["c"]}`)
	decoded, err := UnmarshalTask(legacy)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, decoded.After)
	assert.Equal(t, []string{"c"}, decoded.Before)
}
