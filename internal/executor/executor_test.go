package executor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateExpandSubstitutesPlaceholders(t *testing.T) {
	tmpl, ok := Lookup("shell")
	require.True(t, ok)

	cmd, args := tmpl.Expand("task-1", "echo hi", "")
	assert.Equal(t, "/bin/sh", cmd)
	assert.Equal(t, []string{"-c", "echo hi"}, args)
}

func TestLookupUnknownTemplate(t *testing.T) {
	_, ok := Lookup("nonexistent")
	assert.False(t, ok)
}

func TestLaunchArchivesPromptAndCapturesOutput(t *testing.T) {
	root := t.TempDir()
	h, err := Launch(LaunchSpec{
		AgentsRoot: root,
		AgentID:    "agent-1",
		TaskID:     "task-1",
		Template:   "shell",
		Prompt:     "echo hello-from-agent",
	})
	require.NoError(t, err)
	require.NotNil(t, h.cmd)

	// Launch's own goroutine owns cmd.Wait; wait for it to reap the process.
	require.Eventually(t, func() bool { return !pidAlive(h.PID) }, 2*time.Second, 10*time.Millisecond)
	// stdout/stderr are closed asynchronously after Wait by the internal
	// goroutine; give it a moment.
	time.Sleep(50 * time.Millisecond)

	promptBytes, err := os.ReadFile(filepath.Join(h.WorkDir, "prompt.txt"))
	require.NoError(t, err)
	assert.Equal(t, "echo hello-from-agent", string(promptBytes))

	out, err := os.ReadFile(filepath.Join(h.WorkDir, "stdout.log"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "hello-from-agent")
}

func TestHeartbeatRoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().Truncate(time.Second)
	require.NoError(t, WriteHeartbeat(dir, now))

	got, err := ReadHeartbeat(dir)
	require.NoError(t, err)
	assert.True(t, got.Equal(now))
}

func TestReadHeartbeatMissingIsZero(t *testing.T) {
	dir := t.TempDir()
	got, err := ReadHeartbeat(dir)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestKillForceSendsImmediateSIGKILL(t *testing.T) {
	root := t.TempDir()
	h, err := Launch(LaunchSpec{
		AgentsRoot: root,
		AgentID:    "agent-kill-force",
		TaskID:     "task-1",
		Template:   "shell",
		Prompt:     "sleep 30",
	})
	require.NoError(t, err)

	require.NoError(t, h.Kill(true, 0))

	done := make(chan struct{})
	go func() {
		_ = h.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit after forced kill")
	}
}

func TestKillGracefulSendsSIGTERMThenSIGKILL(t *testing.T) {
	root := t.TempDir()
	h, err := Launch(LaunchSpec{
		AgentsRoot: root,
		AgentID:    "agent-kill-graceful",
		TaskID:     "task-1",
		// trap SIGTERM and ignore it, forcing the grace window to elapse
		// and the SIGKILL fallback to fire.
		Template: "shell",
		Prompt:   "trap '' TERM; sleep 30",
	})
	require.NoError(t, err)

	require.NoError(t, h.Kill(false, 100*time.Millisecond))

	done := make(chan struct{})
	go func() {
		_ = h.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit after SIGKILL fallback")
	}
}

func TestKillPIDRejectsNonPositivePID(t *testing.T) {
	assert.Error(t, KillPID(0, true, 0))
	assert.Error(t, KillPID(-1, false, 0))
}

func TestGCKeepsAllDirsWithinLimit(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		dir := filepath.Join(root, "agent-"+string(rune('a'+i)))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		modTime := time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(dir, modTime, modTime))
	}

	// MaxRetainedWorkDirs can't be overridden (it's a const), so this
	// exercises the below-limit path: nothing should be removed.
	require.NoError(t, GC(root))
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 5, "below the retention limit nothing should be removed")
}
