package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/BillClerici/skill-forge-sub000/internal/config"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Neo4jClient implements Client for Neo4j graph databases.
type Neo4jClient struct {
	config config.GraphConfig
	driver neo4j.DriverWithContext
}

// NewNeo4jClient creates a new Neo4j client with the given configuration.
// The client must be connected via Connect() before use.
func NewNeo4jClient(cfg config.GraphConfig) *Neo4jClient {
	return &Neo4jClient{config: cfg}
}

// Connect establishes a connection to Neo4j with exponential backoff.
func (c *Neo4jClient) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(c.config.Username, c.config.Password, "")

	var lastErr error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		driver, err := neo4j.NewDriverWithContext(c.config.URI, auth)
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				c.driver = driver
				return nil
			}
		}
		lastErr = err

		if ctx.Err() != nil {
			return types.WrapError(types.GRAPH_CONNECT_FAILED, "connection attempt cancelled", ctx.Err())
		}

		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.config.Timeout {
			delay = c.config.Timeout
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.WrapError(types.GRAPH_CONNECT_FAILED, "connection attempt cancelled", ctx.Err())
		}
	}

	return types.WrapError(types.GRAPH_CONNECT_FAILED,
		fmt.Sprintf("failed to connect after %d attempts", maxRetries), lastErr)
}

// Close releases the driver.
func (c *Neo4jClient) Close(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}

// ExecuteRead runs a Cypher query in a read transaction.
func (c *Neo4jClient) ExecuteRead(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	return c.execute(ctx, cypher, params, neo4j.AccessModeRead)
}

// ExecuteWrite runs a Cypher query in a write transaction.
func (c *Neo4jClient) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	return c.execute(ctx, cypher, params, neo4j.AccessModeWrite)
}

func (c *Neo4jClient) execute(ctx context.Context, cypher string, params map[string]any, mode neo4j.AccessMode) (QueryResult, error) {
	if c.driver == nil {
		return QueryResult{}, types.NewError(types.GRAPH_CONNECT_FAILED, "driver not connected")
	}

	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	session := c.driver.NewSession(opCtx, neo4j.SessionConfig{
		DatabaseName: c.config.Database,
		AccessMode:   mode,
	})
	defer session.Close(opCtx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		started := time.Now()

		neoResult, err := tx.Run(opCtx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := neoResult.Collect(opCtx)
		if err != nil {
			return nil, err
		}
		summary, err := neoResult.Consume(opCtx)
		if err != nil {
			return nil, err
		}

		out := QueryResult{
			Records: make([]map[string]any, 0, len(records)),
			Summary: QuerySummary{ExecutionTime: time.Since(started)},
		}
		for _, rec := range records {
			row := make(map[string]any, len(rec.Keys))
			for _, key := range rec.Keys {
				if value, ok := rec.Get(key); ok {
					row[key] = value
				}
			}
			out.Records = append(out.Records, row)
		}
		if counters := summary.Counters(); counters != nil {
			out.Summary.NodesCreated = counters.NodesCreated()
			out.Summary.NodesDeleted = counters.NodesDeleted()
			out.Summary.RelationshipsCreated = counters.RelationshipsCreated()
			out.Summary.RelationshipsDeleted = counters.RelationshipsDeleted()
			out.Summary.PropertiesSet = counters.PropertiesSet()
		}
		return out, nil
	}

	var (
		result any
		err    error
	)
	if mode == neo4j.AccessModeRead {
		result, err = session.ExecuteRead(opCtx, work)
	} else {
		result, err = session.ExecuteWrite(opCtx, work)
	}
	if err != nil {
		return QueryResult{}, types.WrapRetryableError(types.GRAPH_QUERY_FAILED, "cypher execution failed", err)
	}

	return result.(QueryResult), nil
}

var _ Client = (*Neo4jClient)(nil)
