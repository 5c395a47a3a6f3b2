package knowledgegraph

import (
	"fmt"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/nesthivep/kgml/api/schemas"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// graphVersion holds one whole-graph snapshot: the serialized graph plus
// when and why it was taken.
type graphVersion struct {
	data      []byte
	timestamp time.Time
	message   string
}

// Snapshot serializes the entire current graph and stores it under the next
// version number. Versions start at 1 and increase monotonically. Snapshots
// are independent of the per-entity histories.
func (g *Graph) Snapshot(message string) (int, error) {
	g.mu.Lock()
	raw, err := jsonCodec.Marshal(g.exportLocked())
	if err != nil {
		g.mu.Unlock()
		return 0, fmt.Errorf("serialize graph: %w", err)
	}
	now := time.Now().UTC()
	g.versionCounter++
	version := g.versionCounter
	g.versions[version] = graphVersion{data: raw, timestamp: now, message: message}
	g.recordAudit(schemas.EventSnapshot, map[string]any{"version": version})
	g.mu.Unlock()

	g.log.Debug("Snapshot created", zap.Int("version", version))
	g.hooks.Publish(schemas.EventSnapshot, map[string]any{
		"version":   version,
		"timestamp": now,
		"message":   message,
	})
	return version, nil
}

// Rollback replaces the entire in-memory graph with the named snapshot's
// state. Unrelated to the per-entity rollback operations.
func (g *Graph) Rollback(version int) error {
	g.mu.Lock()
	snap, ok := g.versions[version]
	if !ok {
		g.mu.Unlock()
		g.log.Error("Snapshot version not found", zap.Int("version", version))
		return fmt.Errorf("version %d: %w", version, ErrUnknownVersion)
	}
	var data schemas.GraphData
	if err := jsonCodec.Unmarshal(snap.data, &data); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("deserialize snapshot %d: %w", version, err)
	}
	g.replaceLocked(data)
	g.recordAudit(schemas.EventRollback, map[string]any{"version": version})
	g.mu.Unlock()

	g.log.Debug("Rolled back", zap.Int("version", version))
	g.hooks.Publish(schemas.EventRollback, map[string]any{"version": version})
	return nil
}

// ListSnapshots describes every whole-graph snapshot, ordered by version.
func (g *Graph) ListSnapshots() []schemas.SnapshotInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]schemas.SnapshotInfo, 0, len(g.versions))
	for version, snap := range g.versions {
		out = append(out, schemas.SnapshotInfo{
			Version:   version,
			Timestamp: snap.timestamp,
			Message:   snap.message,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// NodeHistory returns a copy of the node's fine-grained version history.
func (g *Graph) NodeHistory(uid string) []schemas.VersionEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return copyHistory(g.nodeVersions[uid])
}

// EdgeHistory returns a copy of the edge's fine-grained version history.
func (g *Graph) EdgeHistory(source, target string) []schemas.VersionEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return copyHistory(g.edgeVersions[edgeKey{source, target}])
}

// RollbackNode restores a single node to the state recorded at
// versionIndex (0 = creation). The restore itself is appended to the
// node's history, so a rollback can be rolled back.
func (g *Graph) RollbackNode(uid string, versionIndex int) error {
	g.mu.Lock()
	history := g.nodeVersions[uid]
	if len(history) == 0 {
		g.mu.Unlock()
		return fmt.Errorf("node %q: %w", uid, ErrNoHistory)
	}
	if versionIndex < 0 || versionIndex >= len(history) {
		g.mu.Unlock()
		return fmt.Errorf("node %q index %d: %w", uid, versionIndex, ErrBadVersionIndex)
	}
	if _, ok := g.nodes[uid]; !ok {
		g.mu.Unlock()
		return fmt.Errorf("node %q: %w", uid, ErrNodeNotFound)
	}
	restored, ok := history[versionIndex].Data.(schemas.Node)
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("node %q index %d: history entry is not a node", uid, versionIndex)
	}
	now := time.Now().UTC()
	g.nodes[uid] = restored.Clone()
	g.nodeVersions[uid] = append(g.nodeVersions[uid], schemas.VersionEntry{
		Data:      restored.Clone(),
		Timestamp: now,
		Message:   fmt.Sprintf("Rolled back to version index %d", versionIndex),
	})
	g.recordAudit(schemas.EventNodeRolledBack, map[string]any{"node_id": uid, "version_index": versionIndex})
	g.mu.Unlock()

	g.hooks.Publish(schemas.EventNodeRolledBack, map[string]any{"uid": uid, "version_index": versionIndex})
	return nil
}

// RollbackEdge is the edge analogue of RollbackNode, keyed by
// (source, target).
func (g *Graph) RollbackEdge(source, target string, versionIndex int) error {
	key := edgeKey{source, target}
	g.mu.Lock()
	history := g.edgeVersions[key]
	if len(history) == 0 {
		g.mu.Unlock()
		return fmt.Errorf("edge %s: %w", key, ErrNoHistory)
	}
	if versionIndex < 0 || versionIndex >= len(history) {
		g.mu.Unlock()
		return fmt.Errorf("edge %s index %d: %w", key, versionIndex, ErrBadVersionIndex)
	}
	if _, ok := g.edges[key]; !ok {
		g.mu.Unlock()
		return fmt.Errorf("edge %s: %w", key, ErrEdgeNotFound)
	}
	restored, ok := history[versionIndex].Data.(schemas.Edge)
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("edge %s index %d: history entry is not an edge", key, versionIndex)
	}
	now := time.Now().UTC()
	g.edges[key] = restored.Clone()
	g.edgeVersions[key] = append(g.edgeVersions[key], schemas.VersionEntry{
		Data:      restored.Clone(),
		Timestamp: now,
		Message:   fmt.Sprintf("Rolled back to version index %d", versionIndex),
	})
	g.recordAudit(schemas.EventEdgeRolledBack, map[string]any{"source": source, "target": target, "version_index": versionIndex})
	g.mu.Unlock()

	g.hooks.Publish(schemas.EventEdgeRolledBack, map[string]any{"source": source, "target": target, "version_index": versionIndex})
	return nil
}

func copyHistory(entries []schemas.VersionEntry) []schemas.VersionEntry {
	out := make([]schemas.VersionEntry, len(entries))
	copy(out, entries)
	return out
}
