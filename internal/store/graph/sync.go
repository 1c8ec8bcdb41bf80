package graph

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"context"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Synchronizer implements the store-synchronization rules: every node write
// merges by natural key with distinct on-create and on-match property sets,
// so re-running a creation step is a no-op beyond property refresh.
// Relationship writes re-match both endpoints by id and fail loudly when an
// endpoint does not exist yet, rather than creating a malformed placeholder.
type Synchronizer struct {
	client Client
	logger *slog.Logger
}

// NewSynchronizer wraps a connected Client.
func NewSynchronizer(client Client, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{client: client, logger: logger}
}

// identRe restricts labels and relationship types, which cannot be
// parameterized in Cypher and must never carry user text.
var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func checkIdent(kind, s string) error {
	if !identRe.MatchString(s) {
		return types.NewError(types.GRAPH_QUERY_FAILED, fmt.Sprintf("invalid %s: %q", kind, s))
	}
	return nil
}

// MergeNode merges a node by its natural key. Independent generation phases
// may provisionally create "the same" entity before ids are reconciled,
// which is why the merge key is the natural key, not the generated id.
// onCreate properties are set only when the node is first created (the
// minted id belongs here); onMatch properties refresh on every re-run.
func (s *Synchronizer) MergeNode(ctx context.Context, label string, key map[string]any, onCreate, onMatch map[string]any) (QuerySummary, error) {
	if err := checkIdent("label", label); err != nil {
		return QuerySummary{}, err
	}

	keyParts := make([]string, 0, len(key))
	params := map[string]any{
		"on_create": nonNil(onCreate),
		"on_match":  nonNil(onMatch),
	}
	for _, k := range sortedKeys(key) {
		param := "key_" + k
		keyParts = append(keyParts, fmt.Sprintf("%s: $%s", k, param))
		params[param] = key[k]
	}

	cypher := fmt.Sprintf(`
		MERGE (n:%s {%s})
		ON CREATE SET n += $on_create
		ON MATCH SET n += $on_match
		RETURN n
	`, label, strings.Join(keyParts, ", "))

	result, err := s.client.ExecuteWrite(ctx, cypher, params)
	if err != nil {
		return QuerySummary{}, err
	}
	return result.Summary, nil
}

// MergeRelationship merges an edge between two nodes matched by id. When
// either endpoint is absent the merge returns no rows and this fails with
// GRAPH_ENDPOINT_ABSENT: a relationship race against a not-yet-created
// endpoint must surface, not silently materialize a placeholder node.
func (s *Synchronizer) MergeRelationship(ctx context.Context, fromLabel string, fromID types.ID, relType string, toLabel string, toID types.ID, props map[string]any) (QuerySummary, error) {
	for kind, ident := range map[string]string{"label": fromLabel, "to label": toLabel, "relationship type": relType} {
		if err := checkIdent(kind, ident); err != nil {
			return QuerySummary{}, err
		}
	}

	cypher := fmt.Sprintf(`
		MATCH (a:%s {id: $from_id})
		MATCH (b:%s {id: $to_id})
		MERGE (a)-[r:%s]->(b)
		SET r += $props
		RETURN a, b
	`, fromLabel, toLabel, relType)

	result, err := s.client.ExecuteWrite(ctx, cypher, map[string]any{
		"from_id": fromID.String(),
		"to_id":   toID.String(),
		"props":   nonNil(props),
	})
	if err != nil {
		return QuerySummary{}, err
	}
	if len(result.Records) == 0 {
		return result.Summary, types.NewError(types.GRAPH_ENDPOINT_ABSENT,
			fmt.Sprintf("cannot merge %s: endpoint missing (%s %s -> %s %s)",
				relType, fromLabel, fromID, toLabel, toID))
	}
	return result.Summary, nil
}

// DetachDeleteTree performs the traversal-anchored cascade: everything
// reachable from the root over the given relationship type is detached and
// deleted, root included.
func (s *Synchronizer) DetachDeleteTree(ctx context.Context, rootLabel string, rootID types.ID, relType string) (QuerySummary, error) {
	if err := checkIdent("label", rootLabel); err != nil {
		return QuerySummary{}, err
	}
	if err := checkIdent("relationship type", relType); err != nil {
		return QuerySummary{}, err
	}

	cypher := fmt.Sprintf(`
		MATCH (root:%s {id: $id})
		OPTIONAL MATCH (root)-[:%s*]->(descendant)
		DETACH DELETE descendant, root
	`, rootLabel, relType)

	result, err := s.client.ExecuteWrite(ctx, cypher, map[string]any{"id": rootID.String()})
	if err != nil {
		return QuerySummary{}, err
	}
	return result.Summary, nil
}

// SweepOrphans deletes nodes of the given label carrying the owner id that
// the traversal did not reach, typically provisional nodes merged under a
// natural key before their containment edge existed.
func (s *Synchronizer) SweepOrphans(ctx context.Context, label, ownerProp string, ownerID types.ID) (QuerySummary, error) {
	if err := checkIdent("label", label); err != nil {
		return QuerySummary{}, err
	}
	if err := checkIdent("property", ownerProp); err != nil {
		return QuerySummary{}, err
	}

	cypher := fmt.Sprintf(`
		MATCH (n:%s {%s: $owner})
		DETACH DELETE n
	`, label, ownerProp)

	result, err := s.client.ExecuteWrite(ctx, cypher, map[string]any{"owner": ownerID.String()})
	if err != nil {
		return QuerySummary{}, err
	}
	return result.Summary, nil
}

// ConditionalDetachDelete deletes a node only when it still exists, using
// the optional-match/foreach idiom so an already-deleted node is a no-op
// instead of an error. Used for multi-label cleanup of shared entities.
func (s *Synchronizer) ConditionalDetachDelete(ctx context.Context, label string, id types.ID) (QuerySummary, error) {
	if err := checkIdent("label", label); err != nil {
		return QuerySummary{}, err
	}

	cypher := fmt.Sprintf(`
		OPTIONAL MATCH (n:%s {id: $id})
		FOREACH (_ IN CASE WHEN n IS NOT NULL THEN [1] ELSE [] END |
		    DETACH DELETE n
		)
	`, label)

	result, err := s.client.ExecuteWrite(ctx, cypher, map[string]any{"id": id.String()})
	if err != nil {
		return QuerySummary{}, err
	}
	return result.Summary, nil
}

// DeleteRelationship removes a single edge between two nodes matched by id,
// leaving both nodes in place.
func (s *Synchronizer) DeleteRelationship(ctx context.Context, fromLabel string, fromID types.ID, relType string, toLabel string, toID types.ID) (QuerySummary, error) {
	for kind, ident := range map[string]string{"label": fromLabel, "to label": toLabel, "relationship type": relType} {
		if err := checkIdent(kind, ident); err != nil {
			return QuerySummary{}, err
		}
	}

	cypher := fmt.Sprintf(`
		MATCH (a:%s {id: $from_id})-[r:%s]->(b:%s {id: $to_id})
		DELETE r
	`, fromLabel, relType, toLabel)

	result, err := s.client.ExecuteWrite(ctx, cypher, map[string]any{
		"from_id": fromID.String(),
		"to_id":   toID.String(),
	})
	if err != nil {
		return QuerySummary{}, err
	}
	return result.Summary, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
