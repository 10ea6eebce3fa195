// Command wgd is the coordinator daemon: it holds the single-writer lock
// on a workgraph's task graph, runs the periodic+event-triggered tick
// loop, and serves the IPC control protocol (§4.7, §4.8).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/workgraph/workgraph/internal/config"
	"github.com/workgraph/workgraph/internal/coordinator"
	"github.com/workgraph/workgraph/internal/daemon"
	"github.com/workgraph/workgraph/internal/executor"
	"github.com/workgraph/workgraph/internal/ipc"
	"github.com/workgraph/workgraph/internal/metrics"
	"github.com/workgraph/workgraph/internal/store"
	"github.com/workgraph/workgraph/internal/wglog"
)

func main() {
	graphPath := flag.String("graph", "./graph.jsonl", "path to graph.jsonl")
	socketPath := flag.String("socket", "", "path to the control socket (default: alongside the service dir)")
	configPath := flag.String("config", "./config.toml", "path to config.toml")
	serviceDir := flag.String("service-dir", "", "path to the service directory (default: alongside graph)")
	flag.Parse()

	if *serviceDir == "" {
		*serviceDir = filepath.Join(filepath.Dir(*graphPath), ".workgraph")
	}
	dir := daemon.ServiceDir{Root: *serviceDir}
	// wgd always binds its socket inside the service directory; --socket is
	// accepted for command-line symmetry with wg but callers should read
	// state.json for the authoritative path.
	_ = *socketPath

	logger, err := wglog.NewFile(dir.LogFile(), 0, wglog.LevelInfo)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open log file:", err)
		os.Exit(1)
	}

	reloader := config.NewReloadable(*configPath)
	cfg, err := reloader.Reload()
	if err != nil {
		logger.Errorf("daemon", "load config: %v", err)
		os.Exit(1)
	}

	d, err := daemon.New(dir, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "daemon startup:", err)
		os.Exit(1)
	}
	d.Dir.GraphPath = *graphPath

	st := store.New(*graphPath)
	registry, err := coordinator.LoadRegistry(dir.RegistryFile())
	if err != nil {
		logger.Errorf("daemon", "load registry: %v", err)
		os.Exit(1)
	}

	promReg := prometheus.NewRegistry()
	mcs := metrics.New(promReg)

	coord := coordinator.New(st, registry, dir.AgentsDir(), mcs, logger)
	coord.SetConfig(cfg.Coordinator, cfg.Agent)
	coord.Paused = d.Paused

	d.SetHandler(makeHandler(d, coord, st, &cfg, logger), ipc.DefaultAddTaskRateLimit)

	if err := executor.GC(dir.AgentsDir()); err != nil {
		logger.Warnf("daemon", "startup agent workdir gc: %v", err)
	}

	startedAt := time.Now()
	if err := d.WriteState(startedAt); err != nil {
		logger.Warnf("daemon", "write initial state: %v", err)
	}

	shutdownSig, reloadSig := daemon.Signals()
	ticker := time.NewTicker(cfg.Coordinator.PollInterval)
	defer ticker.Stop()

	// Agent working-directory retention GC (§4.6) runs on its own slower
	// cadence; checking it every coordinator tick would stat the agents
	// directory far more often than its 100-entry bound could ever change.
	gcTicker := time.NewTicker(gcInterval)
	defer gcTicker.Stop()

	logger.Infof("daemon", "wgd started, pid=%d, graph=%s", os.Getpid(), *graphPath)

	reload := func() {
		newCfg, err := reloader.Reload()
		if err != nil {
			logger.Warnf("daemon", "reload failed: %v", err)
			return
		}
		cfg = newCfg
		coord.SetConfig(cfg.Coordinator, cfg.Agent)
		ticker.Reset(cfg.Coordinator.PollInterval)
		logger.Infof("daemon", "config reloaded")
	}

	ctx := context.Background()
	for {
		select {
		case <-shutdownSig:
			logger.Infof("daemon", "shutdown signal received")
			_ = d.Shutdown()
			return
		case <-reloadSig:
			reload()
		case <-d.Reloads():
			reload()
		case <-ticker.C:
			runTick(ctx, coord, logger)
		case <-d.Triggers():
			runTick(ctx, coord, logger)
		case <-gcTicker.C:
			if err := executor.GC(dir.AgentsDir()); err != nil {
				logger.Warnf("daemon", "periodic agent workdir gc: %v", err)
			}
		}
	}
}

// gcInterval is how often the agent working-directory retention GC runs
// once the daemon is up (§4.6); the startup pass above covers directories
// left over from a prior run.
const gcInterval = 10 * time.Minute

func runTick(ctx context.Context, coord *coordinator.Coordinator, logger *wglog.Logger) {
	if err := coord.Tick(ctx); err != nil {
		logger.Warnf("coordinator", "tick error: %v", err)
	}
}
