package campaign

import (
	"context"
	"log/slog"

	"github.com/BillClerici/skill-forge-sub000/internal/store/graph"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Graph node labels and relationship types for campaign content.
const (
	LabelCampaign = "Campaign"
	LabelQuest    = "Quest"
	LabelPlace    = "Place"
	LabelScene    = "Scene"
	LabelSpecies  = "Species"
	LabelLocation = "Location"

	RelHasQuest = "HAS_QUEST"
	RelHasPlace = "HAS_PLACE"
	RelHasScene = "HAS_SCENE"
	RelAt       = "AT_LOCATION"
)

// GraphStore is the graph-store surface graph sync needs.
// *graph.Synchronizer satisfies it.
type GraphStore interface {
	MergeNode(ctx context.Context, label string, key map[string]any, onCreate, onMatch map[string]any) (graph.QuerySummary, error)
	MergeRelationship(ctx context.Context, fromLabel string, fromID types.ID, relType string, toLabel string, toID types.ID, props map[string]any) (graph.QuerySummary, error)
}

// GraphSync mirrors finalized campaign content into the graph store using
// natural-key merges, so running the same sync twice creates nothing new.
type GraphSync struct {
	store  GraphStore
	logger *slog.Logger
}

// NewGraphSync wraps a graph store.
func NewGraphSync(store GraphStore, logger *slog.Logger) *GraphSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphSync{store: store, logger: logger}
}

// SyncContent merges the full content tree. Nodes are keyed by id, which is
// the natural key once documents exist; a re-run after a crash only fills in
// whatever the first run missed.
func (g *GraphSync) SyncContent(ctx context.Context, content *Content) error {
	var total graph.QuerySummary
	c := content.Campaign

	summary, err := g.store.MergeNode(ctx, LabelCampaign,
		map[string]any{"id": c.ID.String()},
		map[string]any{"name": c.Name, "world_id": c.WorldID.String()},
		map[string]any{"name": c.Name})
	if err != nil {
		return err
	}
	total.Merge(summary)

	for _, q := range content.Quests {
		summary, err = g.store.MergeNode(ctx, LabelQuest,
			map[string]any{"id": q.ID.String()},
			map[string]any{"name": q.Name, "number": q.Number, "campaign_id": c.ID.String()},
			map[string]any{"name": q.Name})
		if err != nil {
			return err
		}
		total.Merge(summary)

		summary, err = g.store.MergeRelationship(ctx, LabelCampaign, c.ID, RelHasQuest, LabelQuest, q.ID, nil)
		if err != nil {
			return err
		}
		total.Merge(summary)
	}

	for _, p := range content.Places {
		summary, err = g.store.MergeNode(ctx, LabelPlace,
			map[string]any{"id": p.ID.String()},
			map[string]any{"name": p.Name, "campaign_id": c.ID.String()},
			map[string]any{"name": p.Name})
		if err != nil {
			return err
		}
		total.Merge(summary)

		summary, err = g.store.MergeRelationship(ctx, LabelQuest, p.QuestID, RelHasPlace, LabelPlace, p.ID, nil)
		if err != nil {
			return err
		}
		total.Merge(summary)

		if !p.LocationID.IsZero() {
			summary, err = g.store.MergeRelationship(ctx, LabelPlace, p.ID, RelAt, LabelLocation, p.LocationID, nil)
			if err != nil {
				return err
			}
			total.Merge(summary)
		}
	}

	for _, sc := range content.Scenes {
		summary, err = g.store.MergeNode(ctx, LabelScene,
			map[string]any{"id": sc.ID.String()},
			map[string]any{"name": sc.Name, "campaign_id": c.ID.String()},
			map[string]any{"name": sc.Name})
		if err != nil {
			return err
		}
		total.Merge(summary)

		summary, err = g.store.MergeRelationship(ctx, LabelPlace, sc.PlaceID, RelHasScene, LabelScene, sc.ID, nil)
		if err != nil {
			return err
		}
		total.Merge(summary)
	}

	g.logger.Info("graph sync finished",
		"campaign_id", c.ID,
		"nodes_created", total.NodesCreated,
		"relationships_created", total.RelationshipsCreated)
	return nil
}
