package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// recordingClient captures executed Cypher and returns scripted results.
type recordingClient struct {
	cyphers []string
	params  []map[string]any
	results []QueryResult
	errs    []error
}

func (c *recordingClient) Connect(ctx context.Context) error { return nil }
func (c *recordingClient) Close(ctx context.Context) error   { return nil }

func (c *recordingClient) ExecuteRead(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	return c.ExecuteWrite(ctx, cypher, params)
}

func (c *recordingClient) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	idx := len(c.cyphers)
	c.cyphers = append(c.cyphers, cypher)
	c.params = append(c.params, params)

	var result QueryResult
	if idx < len(c.results) {
		result = c.results[idx]
	}
	var err error
	if idx < len(c.errs) {
		err = c.errs[idx]
	}
	return result, err
}

func oneRecord() QueryResult {
	return QueryResult{Records: []map[string]any{{"n": "node"}}}
}

func TestMergeNodeBuildsNaturalKeyMerge(t *testing.T) {
	client := &recordingClient{results: []QueryResult{oneRecord()}}
	sync := NewSynchronizer(client, nil)

	_, err := sync.MergeNode(context.Background(), "Species",
		map[string]any{"name": "Dunewalker", "world_id": "w1"},
		map[string]any{"id": "generated-id"},
		map[string]any{"updated": true})
	require.NoError(t, err)

	require.Len(t, client.cyphers, 1)
	cypher := client.cyphers[0]
	assert.Contains(t, cypher, "MERGE (n:Species {name: $key_name, world_id: $key_world_id})")
	assert.Contains(t, cypher, "ON CREATE SET n += $on_create")
	assert.Contains(t, cypher, "ON MATCH SET n += $on_match")

	params := client.params[0]
	assert.Equal(t, "Dunewalker", params["key_name"])
	assert.Equal(t, map[string]any{"id": "generated-id"}, params["on_create"])
}

func TestMergeNodeKeyOrderDeterministic(t *testing.T) {
	// The same key map must always render the same clause, or the graph
	// store's query cache churns.
	key := map[string]any{"b": 1, "a": 2, "c": 3}

	var first string
	for i := 0; i < 5; i++ {
		client := &recordingClient{results: []QueryResult{oneRecord()}}
		sync := NewSynchronizer(client, nil)
		_, err := sync.MergeNode(context.Background(), "Quest", key, nil, nil)
		require.NoError(t, err)
		if i == 0 {
			first = client.cyphers[0]
			continue
		}
		assert.Equal(t, first, client.cyphers[0])
	}
	assert.Contains(t, first, "{a: $key_a, b: $key_b, c: $key_c}")
}

func TestMergeNodeRejectsBadLabel(t *testing.T) {
	sync := NewSynchronizer(&recordingClient{}, nil)

	_, err := sync.MergeNode(context.Background(), "Species) DETACH DELETE (x", nil, nil, nil)
	assert.Error(t, err)
}

func TestMergeRelationshipHappyPath(t *testing.T) {
	client := &recordingClient{results: []QueryResult{{Records: []map[string]any{{"a": 1, "b": 2}}}}}
	sync := NewSynchronizer(client, nil)

	from, to := types.NewID(), types.NewID()
	_, err := sync.MergeRelationship(context.Background(), "Campaign", from, "HAS_QUEST", "Quest", to, nil)
	require.NoError(t, err)

	cypher := client.cyphers[0]
	assert.Contains(t, cypher, "MATCH (a:Campaign {id: $from_id})")
	assert.Contains(t, cypher, "MATCH (b:Quest {id: $to_id})")
	assert.Contains(t, cypher, "MERGE (a)-[r:HAS_QUEST]->(b)")
	assert.Equal(t, from.String(), client.params[0]["from_id"])
}

func TestMergeRelationshipFailsLoudlyOnMissingEndpoint(t *testing.T) {
	// Empty record set means one endpoint did not match: the adapter must
	// error instead of creating a malformed placeholder.
	client := &recordingClient{results: []QueryResult{{}}}
	sync := NewSynchronizer(client, nil)

	_, err := sync.MergeRelationship(context.Background(), "Campaign", types.NewID(), "HAS_QUEST", "Quest", types.NewID(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.NewError(types.GRAPH_ENDPOINT_ABSENT, ""))
}

func TestDetachDeleteTree(t *testing.T) {
	client := &recordingClient{results: []QueryResult{{Summary: QuerySummary{NodesDeleted: 12}}}}
	sync := NewSynchronizer(client, nil)

	id := types.NewID()
	summary, err := sync.DetachDeleteTree(context.Background(), "Campaign", id, "CONTAINS")
	require.NoError(t, err)
	assert.Equal(t, 12, summary.NodesDeleted)

	cypher := client.cyphers[0]
	assert.Contains(t, cypher, "MATCH (root:Campaign {id: $id})")
	assert.Contains(t, cypher, "OPTIONAL MATCH (root)-[:CONTAINS*]->(descendant)")
	assert.Contains(t, cypher, "DETACH DELETE descendant, root")
}

func TestConditionalDetachDeleteUsesForeachGuard(t *testing.T) {
	client := &recordingClient{results: []QueryResult{{}}}
	sync := NewSynchronizer(client, nil)

	_, err := sync.ConditionalDetachDelete(context.Background(), "Species", types.NewID())
	require.NoError(t, err)

	cypher := client.cyphers[0]
	assert.Contains(t, cypher, "OPTIONAL MATCH (n:Species {id: $id})")
	assert.Contains(t, cypher, "FOREACH (_ IN CASE WHEN n IS NOT NULL THEN [1] ELSE [] END |")
}

func TestSweepOrphans(t *testing.T) {
	client := &recordingClient{results: []QueryResult{{Summary: QuerySummary{NodesDeleted: 2}}}}
	sync := NewSynchronizer(client, nil)

	owner := types.NewID()
	summary, err := sync.SweepOrphans(context.Background(), "Scene", "campaign_id", owner)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NodesDeleted)
	assert.Equal(t, owner.String(), client.params[0]["owner"])
}

func TestQuerySummaryMerge(t *testing.T) {
	total := QuerySummary{NodesCreated: 1}
	total.Merge(QuerySummary{NodesCreated: 2, RelationshipsCreated: 3, NodesDeleted: 1})
	assert.Equal(t, 3, total.NodesCreated)
	assert.Equal(t, 3, total.RelationshipsCreated)
	assert.Equal(t, 1, total.NodesDeleted)
}

func TestIdentValidation(t *testing.T) {
	for _, bad := range []string{"", "1Bad", "has space", "semi;colon", "dash-ed"} {
		assert.Error(t, checkIdent("label", bad), bad)
	}
	for _, good := range []string{"Campaign", "HAS_QUEST", "n1"} {
		assert.NoError(t, checkIdent("label", good), good)
	}
}

func TestMergeRelationshipRejectsBadRelType(t *testing.T) {
	sync := NewSynchronizer(&recordingClient{}, nil)
	_, err := sync.MergeRelationship(context.Background(), "Campaign", types.NewID(), "HAS QUEST", "Quest", types.NewID(), nil)
	assert.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "panic"))
}
