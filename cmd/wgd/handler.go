package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/workgraph/workgraph/internal/config"
	"github.com/workgraph/workgraph/internal/coordinator"
	"github.com/workgraph/workgraph/internal/cycle"
	"github.com/workgraph/workgraph/internal/daemon"
	"github.com/workgraph/workgraph/internal/graph"
	"github.com/workgraph/workgraph/internal/ipc"
	"github.com/workgraph/workgraph/internal/query"
	"github.com/workgraph/workgraph/internal/store"
	"github.com/workgraph/workgraph/internal/wglog"
)

// makeHandler builds the IPC request dispatcher (§4.7's request/response
// table). It closes over the daemon's pause state and the coordinator so
// status/pause/resume/agents reflect live state without another lock.
func makeHandler(d *daemon.Daemon, coord *coordinator.Coordinator, st *store.Store, cfg *config.Config, log *wglog.Logger) ipc.Handler {
	startedAt := time.Now()

	return func(req ipc.Request) ipc.Response {
		switch req.Type {
		case ipc.ReqStatus:
			return handleStatus(d, coord, st, startedAt)
		case ipc.ReqGraphChanged:
			d.Trigger()
			return ipc.Response{OK: true}
		case ipc.ReqPause:
			d.SetPaused(true)
			return ipc.Response{OK: true}
		case ipc.ReqResume:
			d.SetPaused(false)
			d.Trigger()
			return ipc.Response{OK: true}
		case ipc.ReqReload:
			d.RequestReload()
			return ipc.Response{OK: true}
		case ipc.ReqStop:
			return handleStop(d, coord, req, log)
		case ipc.ReqAgents:
			return handleAgents(coord)
		case ipc.ReqAddTask:
			return handleAddTask(d, st, req)
		case ipc.ReqQueryTask:
			return handleQueryTask(st, req)
		case ipc.ReqSpawn:
			return handleSpawn(coord, req)
		case ipc.ReqKill:
			return handleKill(coord, req)
		default:
			return ipc.Response{OK: false, Error: "unsupported request type: " + string(req.Type)}
		}
	}
}

func handleStatus(d *daemon.Daemon, coord *coordinator.Coordinator, st *store.Store, startedAt time.Time) ipc.Response {
	stats := coord.Stats.Snapshot()

	g, err := st.Load()
	openTasks := 0
	readyTasks := 0
	if err == nil {
		analysis := cycle.Analyze(g)
		readyTasks = len(query.ReadyTasks(g, analysis))
		for _, t := range g.Tasks() {
			if !t.Status.Terminal() {
				openTasks++
			}
		}
	}

	return ipc.Response{OK: true, Status: &ipc.StatusPayload{
		Paused:      d.Paused(),
		StartedAt:   startedAt,
		LastTick:    stats.LastTick,
		TicksRun:    stats.TicksRun,
		AgentsAlive: stats.AgentsAlive,
		ReadyTasks:  readyTasks,
		OpenTasks:   openTasks,
		PID:         os.Getpid(),
	}}
}

// handleStop implements `Stop {force?, kill_agents?}` (§4.7/§5): a plain
// stop waits a fixed 10ms before shutting down and exiting; force shuts
// down at once. Neither waits for a tick in progress or for other IPC
// connections to finish. kill_agents additionally signals every live agent
// (force also applies to that signal — immediate SIGKILL rather than
// SIGTERM-then-grace).
func handleStop(d *daemon.Daemon, coord *coordinator.Coordinator, req ipc.Request, log *wglog.Logger) ipc.Response {
	if req.KillAgents {
		for _, rec := range coord.Registry.All() {
			if rec.Status != coordinator.AgentAlive {
				continue
			}
			if err := coord.Kill(rec.ID, req.Force); err != nil {
				log.Warnf("daemon", "stop: kill agent %s: %v", rec.ID, err)
			}
		}
	}

	drain := 10 * time.Millisecond
	if req.Force {
		drain = 0
	}
	go func() {
		if drain > 0 {
			time.Sleep(drain)
		}
		_ = d.Shutdown()
		os.Exit(0)
	}()
	return ipc.Response{OK: true}
}

func handleSpawn(coord *coordinator.Coordinator, req ipc.Request) ipc.Response {
	if req.TaskID == "" {
		return ipc.Response{OK: false, Error: "task_id is required"}
	}
	agentID, err := coord.Spawn(req.TaskID, req.AgentTemplate, req.Model)
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	return ipc.Response{OK: true, SpawnedID: agentID}
}

func handleKill(coord *coordinator.Coordinator, req ipc.Request) ipc.Response {
	if req.AgentID == "" {
		return ipc.Response{OK: false, Error: "agent_id is required"}
	}
	if err := coord.Kill(req.AgentID, req.Force); err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	return ipc.Response{OK: true}
}

func handleAgents(coord *coordinator.Coordinator) ipc.Response {
	var agents []ipc.AgentInfo
	for _, rec := range coord.Registry.All() {
		agents = append(agents, ipc.AgentInfo{
			ID:            rec.ID,
			TaskID:        rec.TaskID,
			PID:           rec.PID,
			Template:      rec.Template,
			SpawnedAt:     rec.StartedAt,
			LastHeartbeat: rec.LastHeartbeat,
		})
	}
	return ipc.Response{OK: true, Agents: agents}
}

func handleAddTask(d *daemon.Daemon, st *store.Store, req ipc.Request) ipc.Response {
	id, _ := req.Task["id"].(string)
	if id == "" {
		return ipc.Response{OK: false, Error: "task.id is required"}
	}
	title, _ := req.Task["title"].(string)

	err := st.Lock(func(g *graph.WorkGraph) error {
		t := &graph.Task{ID: id, Title: title, CreatedAt: time.Now()}
		if afterRaw, ok := req.Task["after"].([]any); ok {
			for _, a := range afterRaw {
				if s, ok := a.(string); ok {
					t.After = append(t.After, s)
				}
			}
		}
		return g.AddTask(t)
	})
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	d.Trigger()
	return ipc.Response{OK: true}
}

func handleQueryTask(st *store.Store, req ipc.Request) ipc.Response {
	g, err := st.Load()
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	t, ok := g.GetTask(req.TaskID)
	if !ok {
		return ipc.Response{OK: false, Error: "unknown task: " + req.TaskID}
	}
	data, err := graph.MarshalTask(t)
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	return ipc.Response{OK: true, Task: m}
}
