package executor

import (
	"os"
	"path/filepath"
	"sort"
)

// MaxRetainedWorkDirs bounds how many agent working directories are kept
// under <service-dir>/agents/ before the oldest are garbage collected
// (§4.6).
const MaxRetainedWorkDirs = 100

// WorkDir returns the per-agent working directory path and ensures it
// exists.
func WorkDir(agentsRoot, agentID string) (string, error) {
	dir := filepath.Join(agentsRoot, agentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// GC removes the oldest agent working directories once more than
// MaxRetainedWorkDirs exist, keeping the most recently modified ones.
func GC(agentsRoot string) error {
	entries, err := os.ReadDir(agentsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) <= MaxRetainedWorkDirs {
		return nil
	}

	type dirInfo struct {
		name    string
		modTime int64
	}
	infos := make([]dirInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, dirInfo{name: e.Name(), modTime: fi.ModTime().UnixNano()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].modTime < infos[j].modTime })

	excess := len(infos) - MaxRetainedWorkDirs
	for i := 0; i < excess; i++ {
		if err := os.RemoveAll(filepath.Join(agentsRoot, infos[i].name)); err != nil {
			return err
		}
	}
	return nil
}
