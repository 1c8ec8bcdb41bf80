package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/BillClerici/skill-forge-sub000/internal/campaign"
	"github.com/BillClerici/skill-forge-sub000/internal/engine"
	"github.com/BillClerici/skill-forge-sub000/internal/events"
	"github.com/BillClerici/skill-forge-sub000/internal/store/graph"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// WorkflowName identifies deletion workflow instances.
const WorkflowName = "deletion"

// DocumentStore is the document-store surface the coordinator needs.
// *document.Repository satisfies it.
type DocumentStore interface {
	GetCampaign(ctx context.Context, id types.ID) (*campaign.Campaign, error)
	QuestsByIDs(ctx context.Context, ids []types.ID) ([]campaign.Quest, error)
	QuestsByCampaign(ctx context.Context, campaignID types.ID) ([]campaign.Quest, error)
	PlacesByQuestIDs(ctx context.Context, questIDs []types.ID) ([]campaign.Place, error)
	ScenesByPlaceIDs(ctx context.Context, placeIDs []types.ID) ([]campaign.Scene, error)
	KnowledgeBySceneIDs(ctx context.Context, sceneIDs []types.ID) ([]campaign.KnowledgeEntity, error)
	ItemsBySceneIDs(ctx context.Context, sceneIDs []types.ID) ([]campaign.ItemEntity, error)
	CharactersByCampaign(ctx context.Context, campaignID types.ID) ([]campaign.Character, error)

	DeleteMany(ctx context.Context, coll string, ids []types.ID) (int64, error)
	DeleteCampaign(ctx context.Context, id types.ID) error

	SpeciesByIDs(ctx context.Context, ids []types.ID) ([]campaign.Species, error)
	CharactersBySpecies(ctx context.Context, speciesID types.ID) ([]campaign.Character, error)
	CampaignsCreatingSpecies(ctx context.Context, speciesID types.ID) ([]campaign.Campaign, error)
	DeleteSpecies(ctx context.Context, id types.ID) error
	PullWorldSpecies(ctx context.Context, worldID, speciesID types.ID) error

	LocationsByIDs(ctx context.Context, ids []types.ID) ([]campaign.Location, error)
	PlacesByLocation(ctx context.Context, locationID types.ID) ([]campaign.Place, error)
	CampaignsCreatingLocation(ctx context.Context, locationID types.ID) ([]campaign.Campaign, error)
	LocationsByParent(ctx context.Context, parentID types.ID) ([]campaign.Location, error)
	DeleteLocation(ctx context.Context, id types.ID) error

	InsertDeletionAudit(ctx context.Context, a *campaign.DeletionAudit) (types.ID, error)
}

// GraphStore is the graph-store surface the coordinator needs.
// *graph.Synchronizer satisfies it.
type GraphStore interface {
	DetachDeleteTree(ctx context.Context, rootLabel string, rootID types.ID, relType string) (graph.QuerySummary, error)
	SweepOrphans(ctx context.Context, label, ownerProp string, ownerID types.ID) (graph.QuerySummary, error)
	ConditionalDetachDelete(ctx context.Context, label string, id types.ID) (graph.QuerySummary, error)
}

// RelationalStore is the relational-store surface the coordinator needs.
// *relational.DB satisfies it.
type RelationalStore interface {
	DeleteByCampaign(ctx context.Context, campaignID types.ID) (int64, error)
}

// Manifest is the deletion workflow's payload: the fetched ownership tree,
// then per-category outcomes as the phases run.
type Manifest struct {
	CampaignID types.ID           `json:"campaign_id"`
	Campaign   *campaign.Campaign `json:"campaign,omitempty"`

	Quests     []campaign.Quest           `json:"quests,omitempty"`
	Places     []campaign.Place           `json:"places,omitempty"`
	Scenes     []campaign.Scene           `json:"scenes,omitempty"`
	Knowledge  []campaign.KnowledgeEntity `json:"knowledge,omitempty"`
	Items      []campaign.ItemEntity      `json:"items,omitempty"`
	Characters []campaign.Character       `json:"characters,omitempty"`

	// PrimaryDone flips when the primary-store cascade finishes. It alone
	// defines the success of the whole deletion.
	PrimaryDone bool `json:"primary_done"`

	Deleted  map[string]int      `json:"deleted,omitempty"`
	Retained map[string][]string `json:"retained,omitempty"`

	AuditID types.ID `json:"audit_id,omitempty"`
}

func (m *Manifest) countDeleted(category string, n int) {
	if m.Deleted == nil {
		m.Deleted = make(map[string]int)
	}
	m.Deleted[category] += n
}

func (m *Manifest) retain(category string, reasons ...string) {
	if m.Retained == nil {
		m.Retained = make(map[string][]string)
	}
	m.Retained[category] = append(m.Retained[category], reasons...)
}

// Coordinator assembles the deletion workflow. Graph and relational stores
// may be nil; their phases then record a warning and move on.
type Coordinator struct {
	docs   DocumentStore
	graphs GraphStore
	rel    RelationalStore
	bus    events.Bus
	logger *slog.Logger
}

// NewCoordinator wires the coordinator's stores.
func NewCoordinator(docs DocumentStore, graphs GraphStore, rel RelationalStore, bus events.Bus, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{docs: docs, graphs: graphs, rel: rel, bus: bus, logger: logger}
}

// NewState builds the initial instance state for deleting one campaign.
func (c *Coordinator) NewState(campaignID types.ID, maxRetries int) *engine.State[Manifest] {
	st := engine.NewState(WorkflowName, campaignID, Manifest{CampaignID: campaignID}, maxRetries)
	return st
}

// Definition returns the deletion workflow graph. Phases after the primary
// cascade route unconditionally forward: their failures are warnings.
func (c *Coordinator) Definition() *engine.Definition[Manifest] {
	return &engine.Definition[Manifest]{
		Name:  WorkflowName,
		Entry: "fetch",
		Nodes: map[string]engine.NodeFunc[Manifest]{
			"fetch":             c.fetch,
			"delete_primary":    c.deletePrimary,
			"delete_graph":      c.deleteGraph,
			"delete_relational": c.deleteRelational,
			"delete_species":    c.deleteSpecies,
			"delete_locations":  c.deleteLocations,
			"finalize":          c.finalize,
		},
		Routing: map[string]engine.RoutingFunc[Manifest]{
			"fetch":             engine.RetryOrAdvance[Manifest]("fetch", "delete_primary"),
			"delete_primary":    engine.RetryOrAdvance[Manifest]("delete_primary", "delete_graph"),
			"delete_graph":      engine.Always[Manifest]("delete_relational"),
			"delete_relational": engine.Always[Manifest]("delete_species"),
			"delete_species":    engine.Always[Manifest]("delete_locations"),
			"delete_locations":  engine.Always[Manifest]("finalize"),
			"finalize":          engine.RetryOrAdvance[Manifest]("finalize", engine.End),
		},
	}
}

// fetch loads the full ownership tree level by level. It reads quest ids
// from whichever schema generation the root document uses, and unions in a
// campaign_id scan so quests orphaned from the root list still get deleted.
func (c *Coordinator) fetch(ctx context.Context, st *engine.State[Manifest]) *engine.State[Manifest] {
	st.Phase = "fetch"
	m := &st.Content

	root, err := c.docs.GetCampaign(ctx, m.CampaignID)
	if err != nil {
		st.AddError(types.WrapError(types.DELETE_NOT_FOUND,
			"cannot load campaign "+m.CampaignID.String(), err))
		return st
	}
	m.Campaign = root

	questIDs := types.NewIDSet(root.AllQuestIDs()...)
	listed, err := c.docs.QuestsByIDs(ctx, questIDs.Slice())
	if err != nil {
		st.AddError(types.WrapRetryableError(types.DELETE_FETCH_FAILED, "quest fetch failed", err))
		return st
	}
	owned, err := c.docs.QuestsByCampaign(ctx, m.CampaignID)
	if err != nil {
		st.AddError(types.WrapRetryableError(types.DELETE_FETCH_FAILED, "quest scan failed", err))
		return st
	}

	seen := types.NewIDSet()
	for _, q := range append(listed, owned...) {
		if seen.Contains(q.ID) {
			continue
		}
		seen.Add(q.ID)
		m.Quests = append(m.Quests, q)
	}

	m.Places, err = c.docs.PlacesByQuestIDs(ctx, questSliceIDs(m.Quests))
	if err != nil {
		st.AddError(types.WrapRetryableError(types.DELETE_FETCH_FAILED, "place fetch failed", err))
		return st
	}
	m.Scenes, err = c.docs.ScenesByPlaceIDs(ctx, placeSliceIDs(m.Places))
	if err != nil {
		st.AddError(types.WrapRetryableError(types.DELETE_FETCH_FAILED, "scene fetch failed", err))
		return st
	}
	sceneIDs := sceneSliceIDs(m.Scenes)
	m.Knowledge, err = c.docs.KnowledgeBySceneIDs(ctx, sceneIDs)
	if err != nil {
		st.AddError(types.WrapRetryableError(types.DELETE_FETCH_FAILED, "knowledge fetch failed", err))
		return st
	}
	m.Items, err = c.docs.ItemsBySceneIDs(ctx, sceneIDs)
	if err != nil {
		st.AddError(types.WrapRetryableError(types.DELETE_FETCH_FAILED, "item fetch failed", err))
		return st
	}
	m.Characters, err = c.docs.CharactersByCampaign(ctx, m.CampaignID)
	if err != nil {
		st.AddError(types.WrapRetryableError(types.DELETE_FETCH_FAILED, "character fetch failed", err))
		return st
	}

	c.logger.Info("deletion manifest assembled",
		"campaign_id", m.CampaignID,
		"legacy_schema", root.Legacy(),
		"quests", len(m.Quests),
		"places", len(m.Places),
		"scenes", len(m.Scenes),
		"knowledge", len(m.Knowledge),
		"items", len(m.Items),
		"characters", len(m.Characters))
	return st
}

// deletePrimary removes the ownership tree from the document store,
// deepest level first so a crash mid-phase never strands unreachable
// children behind a deleted parent.
func (c *Coordinator) deletePrimary(ctx context.Context, st *engine.State[Manifest]) *engine.State[Manifest] {
	st.Phase = "primary"
	m := &st.Content

	levels := []struct {
		category string
		coll     string
		ids      []types.ID
	}{
		{"knowledge", campaign.CollKnowledge, knowledgeSliceIDs(m.Knowledge)},
		{"items", campaign.CollItems, itemSliceIDs(m.Items)},
		{"scenes", campaign.CollScenes, sceneSliceIDs(m.Scenes)},
		{"places", campaign.CollPlaces, placeSliceIDs(m.Places)},
		{"quests", campaign.CollQuests, questSliceIDs(m.Quests)},
		{"characters", campaign.CollCharacters, characterSliceIDs(m.Characters)},
	}

	for _, level := range levels {
		if len(level.ids) == 0 {
			continue
		}
		n, err := c.docs.DeleteMany(ctx, level.coll, level.ids)
		m.countDeleted(level.category, int(n))
		if err != nil {
			st.AddError(types.WrapRetryableError(types.DELETE_PRIMARY_FAILED,
				"primary cascade failed at "+level.category, err))
			return st
		}
	}

	if err := c.docs.DeleteCampaign(ctx, m.CampaignID); err != nil {
		// A missing root on a retry means the previous attempt already
		// removed it; that is success, not failure.
		if !errors.Is(err, types.NewError(types.DOC_NOT_FOUND, "")) {
			st.AddError(types.WrapRetryableError(types.DELETE_PRIMARY_FAILED,
				"failed to delete campaign root", err))
			return st
		}
	}
	m.countDeleted("campaign", 1)
	m.PrimaryDone = true

	c.publishPhase(ctx, st, "primary cascade complete")
	return st
}

// deleteGraph removes the campaign's mirror from the graph store: a
// detach-delete of the containment tree, then orphan sweeps for nodes the
// tree walk missed. Failures degrade to warnings.
func (c *Coordinator) deleteGraph(ctx context.Context, st *engine.State[Manifest]) *engine.State[Manifest] {
	st.Phase = "graph"
	m := &st.Content

	if c.graphs == nil {
		st.AddWarning("graph store not configured, skipping graph cleanup")
		return st
	}

	var total graph.QuerySummary
	summary, err := c.graphs.DetachDeleteTree(ctx, campaign.LabelCampaign, m.CampaignID, campaign.RelHasQuest)
	if err != nil {
		st.AddWarning("graph tree delete failed: " + err.Error())
	}
	total.Merge(summary)

	for _, label := range []string{campaign.LabelPlace, campaign.LabelScene} {
		summary, err = c.graphs.SweepOrphans(ctx, label, "campaign_id", m.CampaignID)
		if err != nil {
			st.AddWarning("graph orphan sweep failed for " + label + ": " + err.Error())
			continue
		}
		total.Merge(summary)
	}

	m.countDeleted("graph_nodes", total.NodesDeleted)
	c.publishPhase(ctx, st, fmt.Sprintf("graph cleanup removed %d node(s)", total.NodesDeleted))
	return st
}

// deleteRelational clears auxiliary rows. Best-effort by design: a fresh
// deployment may not even have the tables.
func (c *Coordinator) deleteRelational(ctx context.Context, st *engine.State[Manifest]) *engine.State[Manifest] {
	st.Phase = "relational"

	if c.rel == nil {
		st.AddWarning("relational store not configured, skipping row cleanup")
		return st
	}

	n, err := c.rel.DeleteByCampaign(ctx, st.Content.CampaignID)
	if err != nil {
		st.AddWarning("relational cleanup failed: " + err.Error())
		return st
	}
	st.Content.countDeleted("relational_rows", int(n))
	c.publishPhase(ctx, st, fmt.Sprintf("relational cleanup removed %d row(s)", n))
	return st
}

// deleteSpecies decides each self-created species independently: recompute
// dependents now, delete when nothing else uses it, otherwise retain with
// named reasons.
func (c *Coordinator) deleteSpecies(ctx context.Context, st *engine.State[Manifest]) *engine.State[Manifest] {
	st.Phase = "species"
	m := &st.Content

	candidates := m.Campaign.CreatedSpeciesIDs
	if len(candidates) == 0 {
		return st
	}

	species, err := c.docs.SpeciesByIDs(ctx, candidates)
	if err != nil {
		st.AddWarning("species fetch failed: " + err.Error())
		return st
	}

	for _, sp := range species {
		deps, err := speciesDependents(ctx, c.docs, sp.ID, m.CampaignID)
		if err != nil {
			st.AddWarning("dependent check failed for species " + sp.Name + ": " + err.Error())
			continue
		}
		if deps.Blocking() {
			reasons := deps.Reasons("species " + sp.Name)
			m.retain("species", reasons...)
			c.publishRetained(ctx, st, "species", sp.ID, reasons)
			continue
		}

		if err := c.docs.DeleteSpecies(ctx, sp.ID); err != nil {
			st.AddWarning("failed to delete species " + sp.Name + ": " + err.Error())
			continue
		}
		if err := c.docs.PullWorldSpecies(ctx, sp.WorldID, sp.ID); err != nil {
			st.AddWarning("failed to detach species " + sp.Name + " from world: " + err.Error())
		}
		if c.graphs != nil {
			if _, err := c.graphs.ConditionalDetachDelete(ctx, campaign.LabelSpecies, sp.ID); err != nil {
				st.AddWarning("graph delete failed for species " + sp.Name + ": " + err.Error())
			}
		}
		m.countDeleted("species", 1)
	}

	c.publishPhase(ctx, st, fmt.Sprintf("species phase: %d deleted, %d reason(s) retained",
		m.Deleted["species"], len(m.Retained["species"])))
	return st
}

// deleteLocations decides each self-created location, deepest level first
// so child locations are gone before their parents are considered.
func (c *Coordinator) deleteLocations(ctx context.Context, st *engine.State[Manifest]) *engine.State[Manifest] {
	st.Phase = "locations"
	m := &st.Content

	candidates := m.Campaign.CreatedLocationIDs
	if len(candidates) == 0 {
		return st
	}

	locations, err := c.docs.LocationsByIDs(ctx, candidates)
	if err != nil {
		st.AddWarning("location fetch failed: " + err.Error())
		return st
	}
	sort.Slice(locations, func(i, j int) bool {
		return locations[i].Level > locations[j].Level
	})

	deleted := types.NewIDSet()
	for _, loc := range locations {
		deps, err := locationDependents(ctx, c.docs, loc.ID, m.CampaignID, deleted)
		if err != nil {
			st.AddWarning("dependent check failed for location " + loc.Name + ": " + err.Error())
			continue
		}
		if deps.Blocking() {
			reasons := deps.Reasons("location " + loc.Name)
			m.retain("locations", reasons...)
			c.publishRetained(ctx, st, "location", loc.ID, reasons)
			continue
		}

		if err := c.docs.DeleteLocation(ctx, loc.ID); err != nil {
			st.AddWarning("failed to delete location " + loc.Name + ": " + err.Error())
			continue
		}
		deleted.Add(loc.ID)
		if c.graphs != nil {
			if _, err := c.graphs.ConditionalDetachDelete(ctx, campaign.LabelLocation, loc.ID); err != nil {
				st.AddWarning("graph delete failed for location " + loc.Name + ": " + err.Error())
			}
		}
		m.countDeleted("locations", 1)
	}

	c.publishPhase(ctx, st, fmt.Sprintf("location phase: %d deleted, %d reason(s) retained",
		m.Deleted["locations"], len(m.Retained["locations"])))
	return st
}

// finalize writes the single audit document. Success reflects only the
// primary cascade; everything else is carried as warnings.
func (c *Coordinator) finalize(ctx context.Context, st *engine.State[Manifest]) *engine.State[Manifest] {
	st.Phase = "finalize"
	m := &st.Content

	categories := make(map[string]campaign.CategoryOutcome)
	for category, n := range m.Deleted {
		outcome := categories[category]
		outcome.Deleted = n
		categories[category] = outcome
	}
	for category, reasons := range m.Retained {
		outcome := categories[category]
		outcome.Retained = len(reasons)
		outcome.Reasons = reasons
		categories[category] = outcome
	}

	audit := &campaign.DeletionAudit{
		CampaignID: m.CampaignID,
		InstanceID: st.InstanceID,
		StartedAt:  st.StartedAt,
		FinishedAt: time.Now().UTC(),
		Success:    m.PrimaryDone,
		Warnings:   st.Warnings,
		Categories: categories,
	}

	id, err := c.docs.InsertDeletionAudit(ctx, audit)
	if err != nil {
		st.AddError(types.WrapRetryableError(types.DOC_WRITE_FAILED, "audit write failed", err))
		return st
	}
	m.AuditID = id

	if c.bus != nil {
		_ = c.bus.Publish(ctx, events.Event{
			Type:       events.EventDeletionDone,
			InstanceID: st.InstanceID,
			CampaignID: m.CampaignID,
			Phase:      st.Phase,
			Message:    fmt.Sprintf("deletion finished, success=%t", m.PrimaryDone),
			Details:    map[string]any{"audit_id": id.String()},
		})
	}
	return st
}

func (c *Coordinator) publishPhase(ctx context.Context, st *engine.State[Manifest], message string) {
	if c.bus == nil {
		return
	}
	_ = c.bus.Publish(ctx, events.Event{
		Type:       events.EventDeletionPhase,
		InstanceID: st.InstanceID,
		CampaignID: st.Content.CampaignID,
		Phase:      st.Phase,
		Message:    message,
	})
}

func (c *Coordinator) publishRetained(ctx context.Context, st *engine.State[Manifest], kind string, id types.ID, reasons []string) {
	c.logger.Info("shared entity retained",
		"campaign_id", st.Content.CampaignID, "kind", kind, "entity_id", id, "reasons", reasons)
	if c.bus == nil {
		return
	}
	_ = c.bus.Publish(ctx, events.Event{
		Type:       events.EventDeletionRetained,
		InstanceID: st.InstanceID,
		CampaignID: st.Content.CampaignID,
		Phase:      st.Phase,
		Message:    kind + " " + id.String() + " retained",
		Details:    map[string]any{"reasons": reasons},
	})
}

// --- id-list helpers ---

func questSliceIDs(in []campaign.Quest) []types.ID {
	out := make([]types.ID, 0, len(in))
	for _, v := range in {
		out = append(out, v.ID)
	}
	return out
}

func placeSliceIDs(in []campaign.Place) []types.ID {
	out := make([]types.ID, 0, len(in))
	for _, v := range in {
		out = append(out, v.ID)
	}
	return out
}

func sceneSliceIDs(in []campaign.Scene) []types.ID {
	out := make([]types.ID, 0, len(in))
	for _, v := range in {
		out = append(out, v.ID)
	}
	return out
}

func knowledgeSliceIDs(in []campaign.KnowledgeEntity) []types.ID {
	out := make([]types.ID, 0, len(in))
	for _, v := range in {
		out = append(out, v.ID)
	}
	return out
}

func itemSliceIDs(in []campaign.ItemEntity) []types.ID {
	out := make([]types.ID, 0, len(in))
	for _, v := range in {
		out = append(out, v.ID)
	}
	return out
}

func characterSliceIDs(in []campaign.Character) []types.ID {
	out := make([]types.ID, 0, len(in))
	for _, v := range in {
		out = append(out, v.ID)
	}
	return out
}
