package knowledgegraph

import "errors"

// Sentinel errors returned by the store. Callers should match them with
// errors.Is; the wrapped messages carry the offending uid or version.
var (
	// ErrNodeNotFound is returned when updating or rolling back a node
	// that is not present in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when updating or rolling back an edge
	// that is not present in the graph.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrEndpointMissing is returned by AddEdge when the source or target
	// node does not exist yet.
	ErrEndpointMissing = errors.New("edge endpoint does not exist")

	// ErrUnknownVersion is returned by Rollback for a version number that
	// was never produced by Snapshot.
	ErrUnknownVersion = errors.New("unknown snapshot version")

	// ErrNoHistory is returned by the per-entity rollback operations when
	// the entity has no recorded version history.
	ErrNoHistory = errors.New("no version history")

	// ErrBadVersionIndex is returned when a per-entity rollback index is
	// out of bounds for the entity's history.
	ErrBadVersionIndex = errors.New("version index out of range")

	// ErrNoBackend is returned by Save and Load when the graph was created
	// without a persistence backend.
	ErrNoBackend = errors.New("no persistence backend configured")

	// ErrInvalidProperty is returned by the update operations when a
	// well-known property key carries a value of the wrong type.
	ErrInvalidProperty = errors.New("invalid property value")
)
