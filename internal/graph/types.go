// Package graph defines the workgraph data model: tasks, actors, resources
// and the mutable graph that holds them.
package graph

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusOpen          Status = "Open"
	StatusInProgress    Status = "InProgress"
	StatusDone          Status = "Done"
	StatusFailed        Status = "Failed"
	StatusAbandoned     Status = "Abandoned"
	StatusBlocked       Status = "Blocked"
	StatusPendingReview Status = "PendingReview"
)

// Terminal reports whether s is one of the terminal statuses.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusAbandoned:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a recognized status value.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone, StatusFailed, StatusAbandoned, StatusBlocked, StatusPendingReview:
		return true
	default:
		return false
	}
}

// Visibility gates export of a task across organizational boundaries.
// Opaque to scheduling.
type Visibility string

const (
	VisibilityInternal Visibility = "Internal"
	VisibilityPeer     Visibility = "Peer"
	VisibilityPublic   Visibility = "Public"
)

// TrustLevel describes confidence in an actor identity.
type TrustLevel string

const (
	TrustUnknown     TrustLevel = "Unknown"
	TrustProvisional TrustLevel = "Provisional"
	TrustVerified    TrustLevel = "Verified"
)

// LogEntry is one append-only note on a task.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor,omitempty"`
	Message   string    `json:"message"`
}

// CycleConfig is present only on cycle headers. It authorizes the cycle
// iteration evaluator to re-open the header's strongly connected component
// when all members go terminal.
type CycleConfig struct {
	MaxIterations int            `json:"max_iterations"`
	Guard         string         `json:"guard,omitempty"`
	Delay         *time.Duration `json:"delay,omitempty"`
}

// Estimate is a planning-time (hours, cost) pair. Opaque to scheduling
// except for the budget/hours fit queries.
type Estimate struct {
	Hours float64 `json:"hours,omitempty"`
	Cost  float64 `json:"cost,omitempty"`
}

// Kind discriminates the sum type stored in a graph record.
type Kind string

const (
	KindTask     Kind = "task"
	KindActor    Kind = "actor"
	KindResource Kind = "resource"
)

// Node is the sum type persisted in the graph: a Task, Actor, or Resource.
// Only Task participates in scheduling.
type Node interface {
	NodeID() string
	NodeKind() Kind
}

// Task is the unit of work scheduled by the coordinator.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`

	// After lists predecessor task ids (or "<peer>:<task-id>" cross-repo
	// references) that must be terminal before this task is ready. This is
	// the authoritative edge field.
	After []string `json:"after,omitempty"`
	// Before is the computed inverse of After. Never trusted for scheduling.
	Before []string `json:"before,omitempty"`

	CycleConfig   *CycleConfig `json:"cycle_config,omitempty"`
	LoopIteration int          `json:"loop_iteration,omitempty"`

	Paused bool `json:"paused,omitempty"`

	NotBefore  *time.Time `json:"not_before,omitempty"`
	ReadyAfter *time.Time `json:"ready_after,omitempty"`

	Assigned string `json:"assigned,omitempty"`
	Agent    string `json:"agent,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	RetryCount     int    `json:"retry_count,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
	Estimate       *Estimate `json:"estimate,omitempty"`
	Tags           []string  `json:"tags,omitempty"`

	Skills      []string `json:"skills,omitempty"`
	Deliverables []string `json:"deliverables,omitempty"`
	Artifacts   []string `json:"artifacts,omitempty"`
	Verify      string   `json:"verify,omitempty"`

	Model string `json:"model,omitempty"`
	Exec  string `json:"exec,omitempty"`

	Log []LogEntry `json:"log,omitempty"`

	Priority int `json:"priority,omitempty"`

	Visibility Visibility `json:"visibility,omitempty"`

	// LoopsTo carries legacy back-edge records (see §9 migration). Ignored
	// by scheduling once migrated; tolerated on read.
	LoopsTo []LegacyLoopsTo `json:"loops_to,omitempty"`
}

// LegacyLoopsTo is a pre-migration explicit back-edge record.
type LegacyLoopsTo struct {
	Target        string         `json:"target"`
	Guard         string         `json:"guard,omitempty"`
	MaxIterations int            `json:"max_iterations,omitempty"`
	Delay         *time.Duration `json:"delay,omitempty"`
}

// NodeID implements Node.
func (t *Task) NodeID() string { return t.ID }

// NodeKind implements Node.
func (t *Task) NodeKind() Kind { return KindTask }

// HasTag reports whether t carries tag.
func (t *Task) HasTag(tag string) bool {
	for _, x := range t.Tags {
		if x == tag {
			return true
		}
	}
	return false
}

// AddTag adds tag idempotently.
func (t *Task) AddTag(tag string) {
	if !t.HasTag(tag) {
		t.Tags = append(t.Tags, tag)
	}
}

// AppendLog appends a log entry.
func (t *Task) AppendLog(now time.Time, actor, message string) {
	t.Log = append(t.Log, LogEntry{Timestamp: now, Actor: actor, Message: message})
}

// Actor is a human or AI worker identity. Opaque to scheduling except for
// task assignment and capability matching, both handled by external
// collaborators.
type Actor struct {
	ID               string     `json:"id"`
	Name             string     `json:"name,omitempty"`
	Capabilities     []string   `json:"capabilities,omitempty"`
	Trust            TrustLevel `json:"trust,omitempty"`
	Rate             float64    `json:"rate,omitempty"`
	Capacity         int        `json:"capacity,omitempty"`
	Contact          string     `json:"contact,omitempty"`
	ExecutorPref     string     `json:"executor_pref,omitempty"`
	RoleHash         string     `json:"role_hash,omitempty"`
	MotivationHash   string     `json:"motivation_hash,omitempty"`
}

// NodeID implements Node.
func (a *Actor) NodeID() string { return a.ID }

// NodeKind implements Node.
func (a *Actor) NodeKind() Kind { return KindActor }

// Resource is a named budget/compute envelope. Opaque to scheduling.
type Resource struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Capacity float64 `json:"capacity,omitempty"`
	Used     float64 `json:"used,omitempty"`
	Unit     string  `json:"unit,omitempty"`
}

// NodeID implements Node.
func (r *Resource) NodeID() string { return r.ID }

// NodeKind implements Node.
func (r *Resource) NodeKind() Kind { return KindResource }
