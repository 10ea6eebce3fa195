package graph

import (
	"encoding/json"
	"fmt"
)

// record is the on-disk envelope: a kind discriminator plus the raw payload.
// This is the re-architected replacement for a tagged dynamic-dispatch
// registry (§9): Node = Task | Actor | Resource, serialized with one tag
// field, decoded by a plain type switch below.
type record struct {
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"-"`
}

// taskWire is the on-disk shape of a Task. It carries the historical edge
// aliases (blocked_by/blocks for after/before) and the legacy loops_to field
// so old graphs deserialize without a separate migration step; MigrateLoopsTo
// folds loops_to into CycleConfig explicitly, but plain
// loads tolerate it unmigrated per §9.
type taskWire struct {
	Kind Kind `json:"kind"`
	Task
	BlockedBy []string `json:"blocked_by,omitempty"`
	Blocks    []string `json:"blocks,omitempty"`
}

// MarshalTask serializes a task using only the modern field names.
func MarshalTask(t *Task) ([]byte, error) {
	wire := taskWire{Kind: KindTask, Task: *t}
	// Never emit the legacy aliases; After/Before already carry the data.
	wire.BlockedBy = nil
	wire.Blocks = nil
	return json.Marshal(wire)
}

// UnmarshalTask decodes a task, accepting blocked_by/blocks as synonyms for
// after/before when after/before are absent.
func UnmarshalTask(data []byte) (*Task, error) {
	var wire taskWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	t := wire.Task
	if len(t.After) == 0 && len(wire.BlockedBy) > 0 {
		t.After = wire.BlockedBy
	}
	if len(t.Before) == 0 && len(wire.Blocks) > 0 {
		t.Before = wire.Blocks
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.Visibility == "" {
		t.Visibility = VisibilityInternal
	}
	return &t, nil
}

// MarshalNode dispatches on the node's kind.
func MarshalNode(n Node) ([]byte, error) {
	switch v := n.(type) {
	case *Task:
		return MarshalTask(v)
	case *Actor:
		return json.Marshal(struct {
			Kind Kind `json:"kind"`
			Actor
		}{KindActor, *v})
	case *Resource:
		return json.Marshal(struct {
			Kind Kind `json:"kind"`
			Resource
		}{KindResource, *v})
	default:
		return nil, fmt.Errorf("unknown node type %T", n)
	}
}

// UnmarshalNode decodes a single record line into its concrete Node type.
func UnmarshalNode(data []byte) (Node, error) {
	var disc struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &disc); err != nil {
		return nil, err
	}
	switch disc.Kind {
	case KindTask, "":
		return UnmarshalTask(data)
	case KindActor:
		var wire struct {
			Kind Kind `json:"kind"`
			Actor
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, err
		}
		a := wire.Actor
		if a.Trust == "" {
			a.Trust = TrustUnknown
		}
		return &a, nil
	case KindResource:
		var wire struct {
			Kind Kind `json:"kind"`
			Resource
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, err
		}
		r := wire.Resource
		return &r, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", disc.Kind)
	}
}
