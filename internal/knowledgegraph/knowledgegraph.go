// Package knowledgegraph implements the versioned, hook-firing directed
// graph store that KGML programs execute against.
package knowledgegraph

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nesthivep/kgml/api/schemas"
	"github.com/nesthivep/kgml/internal/kgml"
)

type edgeKey struct {
	source string
	target string
}

func (k edgeKey) String() string { return k.source + "->" + k.target }

// Graph is a mutable directed graph of typed nodes and edges with automatic
// timestamps, per-entity version histories, whole-graph snapshots, an
// append-only audit log and a hook bus.
//
// All exported methods serialize on one mutex, so the store behaves like a
// single global critical section: safe for multi-threaded use, not tuned
// for high-throughput concurrent access. Hooks fire after the mutex is
// released, so a hook callback may call back into the store without
// deadlocking.
type Graph struct {
	mu        sync.Mutex
	nodes     map[string]schemas.Node
	nodeOrder []string
	edges     map[edgeKey]schemas.Edge
	edgeOrder []edgeKey

	versions       map[int]graphVersion
	versionCounter int
	nodeVersions   map[string][]schemas.VersionEntry
	edgeVersions   map[edgeKey][]schemas.VersionEntry
	audit          []schemas.AuditEntry

	hooks   *HookBus
	backend schemas.PersistenceBackend
	log     *zap.Logger
}

// Option configures a Graph at construction time.
type Option func(*Graph)

// WithBackend attaches a persistence backend; Save and Load delegate to it.
func WithBackend(b schemas.PersistenceBackend) Option {
	return func(g *Graph) { g.backend = b }
}

// New creates an empty graph. A nil logger falls back to a no-op logger.
func New(logger *zap.Logger, opts ...Option) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Graph{
		nodes:        make(map[string]schemas.Node),
		edges:        make(map[edgeKey]schemas.Edge),
		versions:     make(map[int]graphVersion),
		nodeVersions: make(map[string][]schemas.VersionEntry),
		edgeVersions: make(map[edgeKey][]schemas.VersionEntry),
		log:          logger.Named("knowledgegraph"),
	}
	g.hooks = NewHookBus(logger)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Compile-time check: the graph satisfies the store surface the executor
// consumes.
var _ schemas.GraphStore = (*Graph)(nil)

// RegisterHook subscribes a callback to a graph lifecycle event.
func (g *Graph) RegisterHook(event schemas.Event, fn HookFunc) {
	g.hooks.Subscribe(event, fn)
}

// -- Node operations --

// AddNode inserts the node, or overwrites it if the uid already exists.
// Overwriting is logged as a warning, never rejected. Timestamps are
// stamped, one version entry is appended and node_added fires.
func (g *Graph) AddNode(node schemas.Node) error {
	g.mu.Lock()
	now := time.Now().UTC()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	node.UpdatedAt = now

	stored := node.Clone()
	if _, exists := g.nodes[node.UID]; exists {
		g.log.Warn("Node already exists, overwriting", zap.String("uid", node.UID))
	} else {
		g.nodeOrder = append(g.nodeOrder, node.UID)
	}
	g.nodes[node.UID] = stored

	g.nodeVersions[node.UID] = append(g.nodeVersions[node.UID], schemas.VersionEntry{
		Data:      stored.Clone(),
		Timestamp: now,
		Message:   "Created node",
	})
	g.recordAudit(schemas.EventNodeAdded, map[string]any{"node_id": node.UID})
	g.mu.Unlock()

	g.hooks.Publish(schemas.EventNodeAdded, map[string]any{"node": stored.Clone()})
	return nil
}

// UpdateNode merges the given properties into the stored node. The keys
// "type" and "meta_props" address the node's fields; any other key is set
// directly in the node's meta properties. Updating a missing node is an
// error.
func (g *Graph) UpdateNode(uid string, properties map[string]any) error {
	g.mu.Lock()
	node, ok := g.nodes[uid]
	if !ok {
		g.mu.Unlock()
		g.log.Error("Cannot update non-existent node", zap.String("uid", uid))
		return fmt.Errorf("node %q: %w", uid, ErrNodeNotFound)
	}
	now := time.Now().UTC()
	if err := applyProperties(&node.Type, &node.MetaProps, properties); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("node %q: %w", uid, err)
	}
	node.UpdatedAt = now
	g.nodes[uid] = node

	g.nodeVersions[uid] = append(g.nodeVersions[uid], schemas.VersionEntry{
		Data:      node.Clone(),
		Timestamp: now,
		Message:   "Updated node",
	})
	g.recordAudit(schemas.EventNodeUpdated, map[string]any{"node_id": uid, "properties": properties})
	g.mu.Unlock()

	g.hooks.Publish(schemas.EventNodeUpdated, map[string]any{"uid": uid, "properties": properties})
	return nil
}

// GetNode returns a copy of the node and whether it exists. Read-only.
func (g *Graph) GetNode(uid string) (schemas.Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	node, ok := g.nodes[uid]
	if !ok {
		return schemas.Node{}, false
	}
	return node.Clone(), true
}

// RemoveNode deletes the node if present. Removing an absent node logs a
// warning and is a no-op. Removal is not versioned: the entity's history
// ends at its last stored state.
func (g *Graph) RemoveNode(uid string) {
	g.mu.Lock()
	if _, ok := g.nodes[uid]; !ok {
		g.mu.Unlock()
		g.log.Warn("Attempted to remove non-existent node", zap.String("uid", uid))
		return
	}
	delete(g.nodes, uid)
	g.nodeOrder = removeString(g.nodeOrder, uid)
	g.recordAudit(schemas.EventNodeRemoved, map[string]any{"node_id": uid})
	g.mu.Unlock()

	g.hooks.Publish(schemas.EventNodeRemoved, map[string]any{"uid": uid})
}

// -- Edge operations --

// AddEdge inserts or overwrites the edge keyed by (source, target). Both
// endpoints must already exist as nodes.
func (g *Graph) AddEdge(edge schemas.Edge) error {
	g.mu.Lock()
	if _, ok := g.nodes[edge.SourceUID]; !ok {
		g.mu.Unlock()
		g.log.Error("Edge source does not exist", zap.String("source", edge.SourceUID))
		return fmt.Errorf("source node %q: %w", edge.SourceUID, ErrEndpointMissing)
	}
	if _, ok := g.nodes[edge.TargetUID]; !ok {
		g.mu.Unlock()
		g.log.Error("Edge target does not exist", zap.String("target", edge.TargetUID))
		return fmt.Errorf("target node %q: %w", edge.TargetUID, ErrEndpointMissing)
	}

	now := time.Now().UTC()
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = now
	}
	edge.UpdatedAt = now

	key := edgeKey{edge.SourceUID, edge.TargetUID}
	stored := edge.Clone()
	if _, exists := g.edges[key]; exists {
		g.log.Warn("Edge already exists, overwriting", zap.String("edge", key.String()))
	} else {
		g.edgeOrder = append(g.edgeOrder, key)
	}
	g.edges[key] = stored

	g.edgeVersions[key] = append(g.edgeVersions[key], schemas.VersionEntry{
		Data:      stored.Clone(),
		Timestamp: now,
		Message:   "Created edge",
	})
	g.recordAudit(schemas.EventEdgeAdded, map[string]any{"source": edge.SourceUID, "target": edge.TargetUID})
	g.mu.Unlock()

	g.hooks.Publish(schemas.EventEdgeAdded, map[string]any{"edge": stored.Clone()})
	return nil
}

// UpdateEdge merges properties into the stored edge, mirroring UpdateNode.
func (g *Graph) UpdateEdge(source, target string, properties map[string]any) error {
	key := edgeKey{source, target}
	g.mu.Lock()
	edge, ok := g.edges[key]
	if !ok {
		g.mu.Unlock()
		g.log.Error("Cannot update non-existent edge", zap.String("edge", key.String()))
		return fmt.Errorf("edge %s: %w", key, ErrEdgeNotFound)
	}
	now := time.Now().UTC()
	if err := applyProperties(&edge.Type, &edge.MetaProps, properties); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("edge %s: %w", key, err)
	}
	edge.UpdatedAt = now
	g.edges[key] = edge

	g.edgeVersions[key] = append(g.edgeVersions[key], schemas.VersionEntry{
		Data:      edge.Clone(),
		Timestamp: now,
		Message:   "Updated edge",
	})
	g.recordAudit(schemas.EventEdgeUpdated, map[string]any{"source": source, "target": target, "properties": properties})
	g.mu.Unlock()

	g.hooks.Publish(schemas.EventEdgeUpdated, map[string]any{"source": source, "target": target, "properties": properties})
	return nil
}

// GetEdge returns a copy of the edge keyed by (source, target).
func (g *Graph) GetEdge(source, target string) (schemas.Edge, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	edge, ok := g.edges[edgeKey{source, target}]
	if !ok {
		return schemas.Edge{}, false
	}
	return edge.Clone(), true
}

// RemoveEdge deletes the edge if present; absent edges warn and no-op.
func (g *Graph) RemoveEdge(source, target string) {
	key := edgeKey{source, target}
	g.mu.Lock()
	if _, ok := g.edges[key]; !ok {
		g.mu.Unlock()
		g.log.Warn("Attempted to remove non-existent edge", zap.String("edge", key.String()))
		return
	}
	delete(g.edges, key)
	g.edgeOrder = removeEdgeKey(g.edgeOrder, key)
	g.recordAudit(schemas.EventEdgeRemoved, map[string]any{"source": source, "target": target})
	g.mu.Unlock()

	g.hooks.Publish(schemas.EventEdgeRemoved, map[string]any{"source": source, "target": target})
}

// -- Queries --

// QueryNodes returns every node, in insertion order, whose fields match all
// given property constraints and (if non-nil) satisfy the filter. The keys
// "uid" and "type" address node fields; other keys match meta properties.
func (g *Graph) QueryNodes(filter func(schemas.Node) bool, properties map[string]any) []schemas.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []schemas.Node
	for _, uid := range g.nodeOrder {
		node := g.nodes[uid]
		if !matchNode(node, properties) {
			continue
		}
		if filter != nil && !filter(node.Clone()) {
			continue
		}
		out = append(out, node.Clone())
	}
	g.log.Debug("Query nodes", zap.Int("results", len(out)))
	return out
}

// QueryEdges is the edge analogue of QueryNodes; "source_uid" and
// "target_uid" address the endpoints.
func (g *Graph) QueryEdges(filter func(schemas.Edge) bool, properties map[string]any) []schemas.Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []schemas.Edge
	for _, key := range g.edgeOrder {
		edge := g.edges[key]
		if !matchEdge(edge, properties) {
			continue
		}
		if filter != nil && !filter(edge.Clone()) {
			continue
		}
		out = append(out, edge.Clone())
	}
	g.log.Debug("Query edges", zap.Int("results", len(out)))
	return out
}

// Stats reports node and edge counts.
func (g *Graph) Stats() schemas.Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return schemas.Stats{Nodes: len(g.nodes), Edges: len(g.edges)}
}

// Export returns a deep copy of the whole graph in insertion order.
func (g *Graph) Export() schemas.GraphData {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exportLocked()
}

// ExportKGML renders the live graph as KGML text.
func (g *Graph) ExportKGML() string {
	return kgml.Serialize(g.Export())
}

func (g *Graph) exportLocked() schemas.GraphData {
	data := schemas.GraphData{
		Nodes: make([]schemas.Node, 0, len(g.nodeOrder)),
		Edges: make([]schemas.Edge, 0, len(g.edgeOrder)),
	}
	for _, uid := range g.nodeOrder {
		data.Nodes = append(data.Nodes, g.nodes[uid].Clone())
	}
	for _, key := range g.edgeOrder {
		data.Edges = append(data.Edges, g.edges[key].Clone())
	}
	return data
}

// replaceLocked swaps the graph's contents for the given data. The caller
// must hold g.mu.
func (g *Graph) replaceLocked(data schemas.GraphData) {
	g.nodes = make(map[string]schemas.Node, len(data.Nodes))
	g.nodeOrder = g.nodeOrder[:0]
	for _, n := range data.Nodes {
		if _, exists := g.nodes[n.UID]; !exists {
			g.nodeOrder = append(g.nodeOrder, n.UID)
		}
		g.nodes[n.UID] = n.Clone()
	}
	g.edges = make(map[edgeKey]schemas.Edge, len(data.Edges))
	g.edgeOrder = g.edgeOrder[:0]
	for _, e := range data.Edges {
		key := edgeKey{e.SourceUID, e.TargetUID}
		if _, exists := g.edges[key]; !exists {
			g.edgeOrder = append(g.edgeOrder, key)
		}
		g.edges[key] = e.Clone()
	}
}

// AuditLog returns a copy of the append-only audit trail.
func (g *Graph) AuditLog() []schemas.AuditEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]schemas.AuditEntry, len(g.audit))
	copy(out, g.audit)
	return out
}

// -- Persistence --

// Save delegates to the configured backend, exporting the graph while the
// lock is held so the backend sees a consistent state.
func (g *Graph) Save(ctx context.Context) error {
	if g.backend == nil {
		g.log.Error("No persistence backend configured")
		return ErrNoBackend
	}
	g.mu.Lock()
	data := g.exportLocked()
	if err := g.backend.Save(ctx, data); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("backend save: %w", err)
	}
	g.recordAudit(schemas.EventSave, nil)
	g.mu.Unlock()

	g.hooks.Publish(schemas.EventSave, map[string]any{})
	return nil
}

// Load reads the backend outside the lock, then swaps the in-memory state
// inside it. Whole-graph snapshots are discarded because they describe a
// graph that no longer exists; per-entity histories are retained.
func (g *Graph) Load(ctx context.Context) error {
	if g.backend == nil {
		g.log.Error("No persistence backend configured")
		return ErrNoBackend
	}
	data, err := g.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("backend load: %w", err)
	}
	g.mu.Lock()
	g.replaceLocked(data)
	g.versions = make(map[int]graphVersion)
	g.versionCounter = 0
	g.recordAudit(schemas.EventLoad, nil)
	g.mu.Unlock()

	g.hooks.Publish(schemas.EventLoad, map[string]any{})
	return nil
}

// -- Internals --

// recordAudit appends an audit entry. The caller must hold g.mu.
func (g *Graph) recordAudit(event schemas.Event, details map[string]any) {
	entry := schemas.AuditEntry{
		ID:        uuid.NewString(),
		Event:     event,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}
	g.audit = append(g.audit, entry)
	g.log.Debug("Audit", zap.String("event", string(event)), zap.Any("details", details))
}

// applyProperties merges an update-properties map into an entity's type and
// meta-prop fields. "type" and "meta_props" address the fields themselves;
// any other key is written into the meta properties.
func applyProperties(typ *string, metaProps *map[string]any, properties map[string]any) error {
	for k, v := range properties {
		switch k {
		case "type":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("%w: type must be a string, got %T", ErrInvalidProperty, v)
			}
			*typ = s
		case "meta_props":
			m, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: meta_props must be a map, got %T", ErrInvalidProperty, v)
			}
			*metaProps = cloneAnyMap(m)
		default:
			if *metaProps == nil {
				*metaProps = make(map[string]any)
			}
			(*metaProps)[k] = v
		}
	}
	return nil
}

func matchNode(node schemas.Node, properties map[string]any) bool {
	for k, v := range properties {
		switch k {
		case "uid":
			if node.UID != v {
				return false
			}
		case "type":
			if node.Type != v {
				return false
			}
		default:
			if !reflect.DeepEqual(node.MetaProps[k], v) {
				return false
			}
		}
	}
	return true
}

func matchEdge(edge schemas.Edge, properties map[string]any) bool {
	for k, v := range properties {
		switch k {
		case "source_uid":
			if edge.SourceUID != v {
				return false
			}
		case "target_uid":
			if edge.TargetUID != v {
				return false
			}
		case "type":
			if edge.Type != v {
				return false
			}
		default:
			if !reflect.DeepEqual(edge.MetaProps[k], v) {
				return false
			}
		}
	}
	return true
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func removeEdgeKey(s []edgeKey, v edgeKey) []edgeKey {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
