// Package coordinator implements the daemon's tick sequence (§4.8): reap
// zombies, scan agent liveness, triage dead agents, compute the ready set,
// and spawn workers up to the configured concurrency bound.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/workgraph/workgraph/internal/config"
	"github.com/workgraph/workgraph/internal/cycle"
	"github.com/workgraph/workgraph/internal/executor"
	"github.com/workgraph/workgraph/internal/graph"
	"github.com/workgraph/workgraph/internal/iterate"
	"github.com/workgraph/workgraph/internal/metrics"
	"github.com/workgraph/workgraph/internal/query"
	"github.com/workgraph/workgraph/internal/store"
	"github.com/workgraph/workgraph/internal/wglog"
)

// Now is overridable in tests.
var Now = time.Now

// Stats is the tick bookkeeping surfaced by the IPC "status" request.
type Stats struct {
	mu             sync.Mutex
	TicksRun       int64
	LastTick       time.Time
	LastDuration   time.Duration
	AgentsAlive    int
	ReadySetSize   int
}

func (s *Stats) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{TicksRun: s.TicksRun, LastTick: s.LastTick, LastDuration: s.LastDuration, AgentsAlive: s.AgentsAlive, ReadySetSize: s.ReadySetSize}
}

// Snapshot returns a copy of the current stats, safe for concurrent reads
// from the IPC handler.
func (s *Stats) Snapshot() Stats { return s.snapshot() }

// Coordinator owns the tick loop's dependencies.
type Coordinator struct {
	Store      *store.Store
	Registry   *Registry
	AgentsRoot string
	Metrics    *metrics.Collectors
	Log        *wglog.Logger
	Paused     func() bool

	Stats Stats

	cfgMu sync.RWMutex
	cfg   config.Coordinator
	agent config.Agent
}

// New builds a Coordinator. SetConfig must be called before the first
// Tick.
func New(st *store.Store, reg *Registry, agentsRoot string, m *metrics.Collectors, log *wglog.Logger) *Coordinator {
	return &Coordinator{Store: st, Registry: reg, AgentsRoot: agentsRoot, Metrics: m, Log: log, Paused: func() bool { return false }}
}

// SetConfig installs the coordinator/agent configuration applied by the
// next tick (and by a reload, per §6).
func (c *Coordinator) SetConfig(coord config.Coordinator, agent config.Agent) {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	c.cfg = coord
	c.agent = agent
}

func (c *Coordinator) config() (config.Coordinator, config.Agent) {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg, c.agent
}

// Tick runs one full coordinator iteration (§4.8 steps 1-7).
func (c *Coordinator) Tick(ctx context.Context) error {
	start := Now()
	cfg, agentCfg := c.config()

	c.reapZombies()

	dead := c.livenessScan(agentCfg.HeartbeatTimeout)

	if err := c.triageDeadAgents(dead); err != nil {
		return fmt.Errorf("triage dead agents: %w", err)
	}

	alive := c.countAlive()
	if c.Metrics != nil {
		c.Metrics.AgentsAlive.Set(float64(alive))
	}

	if c.Paused != nil && c.Paused() {
		c.finishTick(start, alive, 0)
		return nil
	}

	if alive >= cfg.MaxAgents {
		c.finishTick(start, alive, 0)
		return nil
	}

	ready, err := c.computeReady()
	if err != nil {
		return fmt.Errorf("compute ready set: %w", err)
	}
	if c.Metrics != nil {
		c.Metrics.ReadySetSize.Set(float64(len(ready)))
	}

	capacity := cfg.MaxAgents - alive
	spawned := 0
	for _, t := range ready {
		if spawned >= capacity {
			break
		}
		select {
		case <-ctx.Done():
			c.finishTick(start, alive+spawned, len(ready))
			return ctx.Err()
		default:
		}

		if err := c.spawnOne(t, cfg, agentCfg); err != nil {
			c.Log.Warnf("coordinator", "spawn for task %s failed: %v", t, err)
			continue
		}
		spawned++
	}

	if c.Metrics != nil {
		c.Metrics.TicksTotal.Inc()
	}
	c.finishTick(start, alive+spawned, len(ready))
	return nil
}

func (c *Coordinator) finishTick(start time.Time, agentsAlive, readySetSize int) {
	dur := Now().Sub(start)
	c.Stats.mu.Lock()
	c.Stats.TicksRun++
	c.Stats.LastTick = start
	c.Stats.LastDuration = dur
	c.Stats.AgentsAlive = agentsAlive
	c.Stats.ReadySetSize = readySetSize
	c.Stats.mu.Unlock()
	if c.Metrics != nil {
		c.Metrics.TickDuration.Observe(dur.Seconds())
	}
}

// reapZombies non-blockingly waits on any tracked process that has
// exited, updating its registry status. Go's os/exec already reaps via
// cmd.Wait in its own goroutine (see internal/executor), so here we only
// need to reconcile registry status against PID liveness; a dedicated
// waitpid loop is unnecessary because the executor package owns each
// subprocess's Wait call. An agent whose process is gone while its task is
// still InProgress under it is left for the liveness scan, which marks it
// dead so its task is triaged.
func (c *Coordinator) reapZombies() {
	g, err := c.Store.Load()
	if err != nil {
		return
	}
	for _, rec := range c.Registry.All() {
		if rec.Status == AgentExited || rec.Status == AgentDead {
			continue
		}
		if !pidAlive(rec.PID) {
			if t, ok := g.GetTask(rec.TaskID); ok && t.Status == graph.StatusInProgress && t.Assigned == rec.ID {
				continue
			}
			rec.Status = AgentExited
			c.Registry.Put(rec)
		}
	}
	_ = c.Registry.Save()
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// livenessScan checks every tracked agent's PID and heartbeat freshness in
// parallel (§4.8 step 2); both signals must pass for an agent to be
// considered alive (§9).
func (c *Coordinator) livenessScan(heartbeatTimeout time.Duration) []AgentRecord {
	records := c.Registry.All()
	deadFlags := make([]bool, len(records))

	g := new(errgroup.Group)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if rec.Status != AgentAlive {
				return nil
			}
			if !pidAlive(rec.PID) {
				deadFlags[i] = true
				return nil
			}
			hb, err := executor.ReadHeartbeat(rec.WorkDir)
			if err == nil && !hb.IsZero() {
				if Now().Sub(hb) > heartbeatTimeout {
					deadFlags[i] = true
				}
			} else if Now().Sub(rec.StartedAt) > heartbeatTimeout {
				deadFlags[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	var dead []AgentRecord
	for i, flagged := range deadFlags {
		if flagged {
			records[i].Status = AgentDead
			c.Registry.Put(records[i])
			dead = append(dead, records[i])
		}
	}
	if len(dead) > 0 {
		_ = c.Registry.Save()
	}
	return dead
}

// triageDeadAgents unclaims each dead agent's task under the graph lock,
// then runs the cycle iteration evaluator against it (§4.8 step 3).
// Idempotent: running it twice on the same registry state is a no-op the
// second time, since a task already Open has nothing left to unclaim.
func (c *Coordinator) triageDeadAgents(dead []AgentRecord) error {
	if len(dead) == 0 {
		return nil
	}
	sort.Slice(dead, func(i, j int) bool { return dead[i].ID < dead[j].ID })

	return c.Store.Lock(func(g *graph.WorkGraph) error {
		analysis := cycle.AnalyzeAndCache(g)
		for _, rec := range dead {
			t, ok := g.GetTask(rec.TaskID)
			if !ok || t.Status != graph.StatusInProgress {
				continue
			}
			t.Status = graph.StatusOpen
			t.Assigned = ""
			t.Agent = ""
			t.AppendLog(Now(), "", fmt.Sprintf("Agent %s found dead; task unclaimed", rec.ID))
			iterate.Evaluate(g, analysis, rec.TaskID)

			rec.Status = AgentDead
			c.Registry.Put(rec)
		}
		return nil
	})
}

func (c *Coordinator) countAlive() int {
	n := 0
	for _, rec := range c.Registry.All() {
		if rec.Status == AgentAlive {
			n++
		}
	}
	return n
}

// computeReady loads the graph read-only and returns ready task ids sorted
// deterministically by (created_at, priority, id) per §4.8/§9.
func (c *Coordinator) computeReady() ([]string, error) {
	g, err := c.Store.Load()
	if err != nil {
		return nil, err
	}
	analysis := cycle.AnalyzeAndCache(g)
	tasks := query.ReadyTasks(g, analysis)

	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids, nil
}

// spawnOne claims taskID under the graph lock, launches its agent, and
// records it in the registry; a spawn failure reverts the claim (§4.8
// step 6c).
func (c *Coordinator) spawnOne(taskID string, cfg config.Coordinator, agentCfg config.Agent) error {
	template := cfg.Executor
	if template == "" {
		template = agentCfg.Executor
	}
	model := cfg.Model
	if model == "" {
		model = agentCfg.Model
	}
	_, err := c.claimAndLaunch(taskID, template, model)
	return err
}

// Spawn is the diagnostic spawn path exposed over IPC (§4.7's `Spawn
// {task_id, executor?, model?}`): claim taskID outside the normal tick
// cadence, using executorOverride/modelOverride when given and falling
// back to the configured defaults otherwise.
func (c *Coordinator) Spawn(taskID, executorOverride, modelOverride string) (string, error) {
	cfg, agentCfg := c.config()

	template := executorOverride
	if template == "" {
		template = cfg.Executor
	}
	if template == "" {
		template = agentCfg.Executor
	}
	model := modelOverride
	if model == "" {
		model = cfg.Model
	}
	if model == "" {
		model = agentCfg.Model
	}
	return c.claimAndLaunch(taskID, template, model)
}

// claimAndLaunch claims taskID under the graph lock, launches its agent,
// and records it in the registry; a spawn failure reverts the claim.
// Shared by the tick's spawn loop and the diagnostic Spawn IPC path.
func (c *Coordinator) claimAndLaunch(taskID, template, model string) (string, error) {
	var prompt, agentID string

	err := c.Store.Lock(func(g *graph.WorkGraph) error {
		t, ok := g.GetTask(taskID)
		if !ok || t.Status != graph.StatusOpen {
			return graph.NewRejected("task no longer open: " + taskID)
		}
		agentID = fmt.Sprintf("%s-%s", taskID, uuid.NewString())
		prompt = t.Description
		if prompt == "" {
			prompt = t.Title
		}

		t.Status = graph.StatusInProgress
		t.Assigned = agentID
		now := Now()
		t.StartedAt = &now
		t.AppendLog(now, agentID, "Claimed by coordinator for spawn")
		return nil
	})
	if err != nil {
		return "", err
	}

	h, launchErr := executor.Launch(executor.LaunchSpec{
		AgentsRoot: c.AgentsRoot,
		AgentID:    agentID,
		TaskID:     taskID,
		Template:   template,
		Prompt:     prompt,
		Model:      model,
	})
	if launchErr != nil {
		_ = c.Store.Lock(func(g *graph.WorkGraph) error {
			t, ok := g.GetTask(taskID)
			if !ok {
				return nil
			}
			t.Status = graph.StatusOpen
			t.Assigned = ""
			t.StartedAt = nil
			t.AppendLog(Now(), "", fmt.Sprintf("Spawn failed: %v", launchErr))
			return nil
		})
		return "", launchErr
	}

	c.Registry.Put(AgentRecord{
		ID:        agentID,
		PID:       h.PID,
		TaskID:    taskID,
		Template:  template,
		WorkDir:   h.WorkDir,
		Status:    AgentAlive,
		StartedAt: Now(),
	})
	if c.Metrics != nil {
		c.Metrics.SpawnsTotal.Inc()
	}
	return agentID, c.Registry.Save()
}

// Kill signals a registered agent's process group (§4.7's `Kill
// {agent_id, force?}`): immediate SIGKILL if force, otherwise SIGTERM
// followed by SIGKILL after the configured grace period. The registry
// entry is marked dead once the signal sequence completes so the next
// tick's reap/liveness steps don't have to wait on PID liveness to notice.
func (c *Coordinator) Kill(agentID string, force bool) error {
	rec, ok := c.Registry.Get(agentID)
	if !ok {
		return fmt.Errorf("unknown agent %q", agentID)
	}

	_, agentCfg := c.config()
	if err := executor.KillPID(rec.PID, force, agentCfg.KillGracePeriod); err != nil {
		return err
	}

	rec.Status = AgentDead
	c.Registry.Put(rec)
	return c.Registry.Save()
}
