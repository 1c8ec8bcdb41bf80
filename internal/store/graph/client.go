// Package graph is the adapter for the Neo4j graph store. The graph mirrors
// campaign content for traversal queries; it is never the source of truth,
// so callers treat failures here as warnings, not workflow errors.
package graph

import (
	"context"
	"time"
)

// Client provides graph database operations. Implementations must be
// thread-safe for concurrent access.
type Client interface {
	// Connect establishes a connection to the graph database.
	Connect(ctx context.Context) error

	// Close releases all resources and closes the connection.
	Close(ctx context.Context) error

	// ExecuteRead runs a Cypher query in a read transaction.
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (QueryResult, error)

	// ExecuteWrite runs a Cypher query in a write transaction.
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (QueryResult, error)
}

// QueryResult represents the result of a Cypher query execution.
type QueryResult struct {
	// Records contains the result rows as maps of column name to value.
	Records []map[string]any

	// Summary contains counters for the query execution.
	Summary QuerySummary
}

// QuerySummary provides write counters for idempotence checks: re-running
// a synchronization pass must report zero created nodes/relationships.
type QuerySummary struct {
	ExecutionTime        time.Duration
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}

// Merge accumulates another summary's counters.
func (s *QuerySummary) Merge(other QuerySummary) {
	s.NodesCreated += other.NodesCreated
	s.NodesDeleted += other.NodesDeleted
	s.RelationshipsCreated += other.RelationshipsCreated
	s.RelationshipsDeleted += other.RelationshipsDeleted
	s.PropertiesSet += other.PropertiesSet
}
