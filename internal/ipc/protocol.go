// Package ipc implements the daemon's control protocol (§4.7): newline
// delimited JSON requests and responses exchanged over a Unix domain
// socket.
package ipc

import "time"

// RequestType enumerates the supported IPC operations.
type RequestType string

const (
	ReqStatus      RequestType = "status"
	ReqGraphChanged RequestType = "graph_changed"
	ReqPause       RequestType = "pause"
	ReqResume      RequestType = "resume"
	ReqReload      RequestType = "reload"
	ReqStop        RequestType = "stop"
	ReqAgents      RequestType = "agents"
	ReqSpawn       RequestType = "spawn"
	ReqAddTask     RequestType = "add_task"
	ReqQueryTask   RequestType = "query_task"
	ReqKill        RequestType = "kill"
)

// Request is the envelope sent by a client. Only the fields relevant to
// Type are populated; the rest are left zero.
type Request struct {
	Type RequestType `json:"type"`

	// AddTask / QueryTask / Spawn
	TaskID string `json:"task_id,omitempty"`

	// AddTask
	Task map[string]any `json:"task,omitempty"`

	// Spawn: executor template override
	AgentTemplate string `json:"agent_template,omitempty"`

	// Spawn: model override
	Model string `json:"model,omitempty"`

	// Kill
	AgentID string `json:"agent_id,omitempty"`

	// Stop: force skips the short pre-shutdown wait. Kill: force skips the
	// SIGTERM grace window and sends SIGKILL immediately.
	Force bool `json:"force,omitempty"`

	// Stop
	KillAgents bool `json:"kill_agents,omitempty"`
}

// Response is the envelope returned by the daemon for every Request.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Status     *StatusPayload `json:"status,omitempty"`
	Agents     []AgentInfo    `json:"agents,omitempty"`
	Task       map[string]any `json:"task,omitempty"`
	SpawnedID  string         `json:"spawned_id,omitempty"`
}

// StatusPayload answers a "status" request.
type StatusPayload struct {
	Paused       bool      `json:"paused"`
	StartedAt    time.Time `json:"started_at"`
	LastTick     time.Time `json:"last_tick"`
	TicksRun     int64     `json:"ticks_run"`
	AgentsAlive  int       `json:"agents_alive"`
	ReadyTasks   int       `json:"ready_tasks"`
	OpenTasks    int       `json:"open_tasks"`
	PID          int       `json:"pid"`
}

// AgentInfo describes one live agent, as returned by an "agents" request.
type AgentInfo struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	PID         int       `json:"pid"`
	Template    string    `json:"template"`
	SpawnedAt   time.Time `json:"spawned_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}
