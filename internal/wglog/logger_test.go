package wglog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Infof("coordinator", "tick %d", 1)
	l.Warnf("coordinator", "slow tick")

	out := buf.String()
	assert.NotContains(t, out, "tick 1")
	assert.Contains(t, out, "slow tick")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "[coordinator]")
}

func TestRotatingWriterRotatesAtThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wgd.log")

	l, err := NewFile(path, 64, LevelDebug)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		l.Infof("test", "padding line number %d to exceed threshold", i)
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "expected a rotated backup file to exist")

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, len(current) < 2000, "current log file should have been truncated by rotation")
	assert.True(t, strings.Contains(string(current), "padding line"))
}
