package schemas

import "context"

// GraphStore is the store surface the KGML executor needs. Snapshot,
// rollback and hook administration are deliberately excluded: those are
// operations for the surrounding agent layer, not for program execution.
type GraphStore interface {
	AddNode(node Node) error
	UpdateNode(uid string, properties map[string]any) error
	GetNode(uid string) (Node, bool)
	RemoveNode(uid string)

	AddEdge(edge Edge) error
	UpdateEdge(source, target string, properties map[string]any) error
	GetEdge(source, target string) (Edge, bool)
	RemoveEdge(source, target string)

	QueryNodes(filter func(Node) bool, properties map[string]any) []Node
	QueryEdges(filter func(Edge) bool, properties map[string]any) []Edge
}

// PersistenceBackend stores and retrieves a whole graph. Implementations
// must be safe to call from a single goroutine at a time; the store
// serializes access itself.
type PersistenceBackend interface {
	Save(ctx context.Context, data GraphData) error
	Load(ctx context.Context) (GraphData, error)
}
