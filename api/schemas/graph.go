package schemas

import (
	"time"
)

// -- Canonical Knowledge Graph Data Model --

// Node represents a single entity in the knowledge graph. Each node has a
// unique UID, an optional type tag, and a free-form set of meta properties
// that store instruction text and other reasoning metadata.
type Node struct {
	UID       string         `json:"uid"`
	Type      string         `json:"type,omitempty"`
	MetaProps map[string]any `json:"meta_props,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the node. Callers receive clones from the
// store so that direct field mutation cannot bypass the store's API.
func (n Node) Clone() Node {
	out := n
	out.MetaProps = cloneProps(n.MetaProps)
	return out
}

// Edge represents a directed relationship between two nodes. It shares the
// node shape (type, meta properties, timestamps) plus its endpoints. Both
// endpoints must exist in the graph when the edge is created.
type Edge struct {
	SourceUID string         `json:"source_uid"`
	TargetUID string         `json:"target_uid"`
	Type      string         `json:"type,omitempty"`
	MetaProps map[string]any `json:"meta_props,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	out := e
	out.MetaProps = cloneProps(e.MetaProps)
	return out
}

// GraphData is the serialized form of an entire graph: every node and edge
// in insertion order. Snapshots, the persistence backends and the KGML codec
// all exchange this shape.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Stats summarizes the size of a graph.
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// -- Versioning --

// VersionEntry is one point in an entity's fine-grained history. Every
// create and update appends one entry; index 0 is the state at creation.
type VersionEntry struct {
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// SnapshotInfo describes one whole-graph snapshot.
type SnapshotInfo struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// -- Audit & Events --

// Event names the graph lifecycle notifications a hook can subscribe to.
type Event string

const (
	EventNodeAdded      Event = "node_added"
	EventNodeUpdated    Event = "node_updated"
	EventNodeRemoved    Event = "node_removed"
	EventEdgeAdded      Event = "edge_added"
	EventEdgeUpdated    Event = "edge_updated"
	EventEdgeRemoved    Event = "edge_removed"
	EventSnapshot       Event = "snapshot"
	EventRollback       Event = "rollback"
	EventNodeRolledBack Event = "node_rolled_back"
	EventEdgeRolledBack Event = "edge_rolled_back"
	EventSave           Event = "save"
	EventLoad           Event = "load"
)

// AuditEntry is one record in the store's append-only audit log.
type AuditEntry struct {
	ID        string         `json:"id"`
	Event     Event          `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

func cloneProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
