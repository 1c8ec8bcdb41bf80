package document

import (
	"context"
	"time"

	"github.com/BillClerici/skill-forge-sub000/internal/campaign"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Repository is the typed campaign-content surface over the raw Store.
// Workflow code consumes interfaces satisfied by this type, keeping the
// stores mockable.
type Repository struct {
	store *Store
}

// NewRepository wraps a connected Store.
func NewRepository(store *Store) *Repository {
	return &Repository{store: store}
}

// --- worlds ---

// GetWorld loads one world document.
func (r *Repository) GetWorld(ctx context.Context, id types.ID) (*campaign.World, error) {
	var w campaign.World
	if err := r.store.FindByID(ctx, campaign.CollWorlds, id, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// AddWorldSpecies appends a species to a world's species list.
func (r *Repository) AddWorldSpecies(ctx context.Context, worldID, speciesID types.ID) error {
	return r.store.AddToArray(ctx, campaign.CollWorlds, worldID, "species_ids", speciesID.String())
}

// PullWorldSpecies detaches a species from its world's species list.
func (r *Repository) PullWorldSpecies(ctx context.Context, worldID, speciesID types.ID) error {
	return r.store.PullFromArray(ctx, campaign.CollWorlds, worldID, "species_ids", speciesID.String())
}

// --- campaigns ---

// InsertCampaign writes a campaign root record, minting its id.
func (r *Repository) InsertCampaign(ctx context.Context, c *campaign.Campaign) (types.ID, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return r.store.Insert(ctx, campaign.CollCampaigns, &c.ID, c)
}

// GetCampaign loads one campaign root record (either schema generation).
func (r *Repository) GetCampaign(ctx context.Context, id types.ID) (*campaign.Campaign, error) {
	var c campaign.Campaign
	if err := r.store.FindByID(ctx, campaign.CollCampaigns, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCampaignFields applies a partial update to a campaign document.
func (r *Repository) UpdateCampaignFields(ctx context.Context, id types.ID, fields map[string]any) error {
	return r.store.UpdateFields(ctx, campaign.CollCampaigns, id, fields)
}

// CampaignsCreatingSpecies returns campaigns listing the species as
// self-created. Used when recomputing a species' dependents.
func (r *Repository) CampaignsCreatingSpecies(ctx context.Context, speciesID types.ID) ([]campaign.Campaign, error) {
	var out []campaign.Campaign
	err := r.store.FindWhere(ctx, campaign.CollCampaigns, "created_species_ids", speciesID.String(), &out)
	return out, err
}

// CampaignsCreatingLocation returns campaigns listing the location as
// self-created.
func (r *Repository) CampaignsCreatingLocation(ctx context.Context, locationID types.ID) ([]campaign.Campaign, error) {
	var out []campaign.Campaign
	err := r.store.FindWhere(ctx, campaign.CollCampaigns, "created_location_ids", locationID.String(), &out)
	return out, err
}

// --- containment tree ---

// InsertQuest writes a quest, minting its id.
func (r *Repository) InsertQuest(ctx context.Context, q *campaign.Quest) (types.ID, error) {
	return r.store.Insert(ctx, campaign.CollQuests, &q.ID, q)
}

// QuestsByIDs resolves quests from a campaign's quest id-list.
func (r *Repository) QuestsByIDs(ctx context.Context, ids []types.ID) ([]campaign.Quest, error) {
	var out []campaign.Quest
	err := r.store.FindByIDs(ctx, campaign.CollQuests, ids, &out)
	return out, err
}

// QuestsByCampaign returns all quests owned by a campaign, regardless of
// whether the root record still references them.
func (r *Repository) QuestsByCampaign(ctx context.Context, campaignID types.ID) ([]campaign.Quest, error) {
	var out []campaign.Quest
	err := r.store.FindWhere(ctx, campaign.CollQuests, "campaign_id", campaignID.String(), &out)
	return out, err
}

// InsertPlace writes a place, minting its id.
func (r *Repository) InsertPlace(ctx context.Context, p *campaign.Place) (types.ID, error) {
	return r.store.Insert(ctx, campaign.CollPlaces, &p.ID, p)
}

// PlacesByQuestIDs resolves one containment level: all places under the
// given quests, in one id-list query.
func (r *Repository) PlacesByQuestIDs(ctx context.Context, questIDs []types.ID) ([]campaign.Place, error) {
	var out []campaign.Place
	err := r.store.FindWhereIn(ctx, campaign.CollPlaces, "quest_id", questIDs, &out)
	return out, err
}

// PlacesByLocation returns places anchored to a shared world location.
func (r *Repository) PlacesByLocation(ctx context.Context, locationID types.ID) ([]campaign.Place, error) {
	var out []campaign.Place
	err := r.store.FindWhere(ctx, campaign.CollPlaces, "location_id", locationID.String(), &out)
	return out, err
}

// InsertScene writes a scene, minting its id.
func (r *Repository) InsertScene(ctx context.Context, sc *campaign.Scene) (types.ID, error) {
	return r.store.Insert(ctx, campaign.CollScenes, &sc.ID, sc)
}

// ScenesByPlaceIDs resolves all scenes under the given places.
func (r *Repository) ScenesByPlaceIDs(ctx context.Context, placeIDs []types.ID) ([]campaign.Scene, error) {
	var out []campaign.Scene
	err := r.store.FindWhereIn(ctx, campaign.CollScenes, "place_id", placeIDs, &out)
	return out, err
}

// UpdateSceneAssignment stores a scene's cascade assignment.
func (r *Repository) UpdateSceneAssignment(ctx context.Context, sceneID types.ID, assignment any) error {
	return r.store.UpdateFields(ctx, campaign.CollScenes, sceneID, map[string]any{"assignment": assignment})
}

// --- leaf entities ---

// InsertKnowledge writes a knowledge entity, minting its id.
func (r *Repository) InsertKnowledge(ctx context.Context, k *campaign.KnowledgeEntity) (types.ID, error) {
	return r.store.Insert(ctx, campaign.CollKnowledge, &k.ID, k)
}

// KnowledgeBySceneIDs resolves knowledge entities under the given scenes.
func (r *Repository) KnowledgeBySceneIDs(ctx context.Context, sceneIDs []types.ID) ([]campaign.KnowledgeEntity, error) {
	var out []campaign.KnowledgeEntity
	err := r.store.FindWhereIn(ctx, campaign.CollKnowledge, "scene_id", sceneIDs, &out)
	return out, err
}

// InsertItem writes an item entity, minting its id.
func (r *Repository) InsertItem(ctx context.Context, it *campaign.ItemEntity) (types.ID, error) {
	return r.store.Insert(ctx, campaign.CollItems, &it.ID, it)
}

// ItemsBySceneIDs resolves item entities under the given scenes.
func (r *Repository) ItemsBySceneIDs(ctx context.Context, sceneIDs []types.ID) ([]campaign.ItemEntity, error) {
	var out []campaign.ItemEntity
	err := r.store.FindWhereIn(ctx, campaign.CollItems, "scene_id", sceneIDs, &out)
	return out, err
}

// --- shared entities ---

// InsertSpecies writes a species, minting its id.
func (r *Repository) InsertSpecies(ctx context.Context, sp *campaign.Species) (types.ID, error) {
	return r.store.Insert(ctx, campaign.CollSpecies, &sp.ID, sp)
}

// SpeciesByIDs resolves species documents from an id-list.
func (r *Repository) SpeciesByIDs(ctx context.Context, ids []types.ID) ([]campaign.Species, error) {
	var out []campaign.Species
	err := r.store.FindByIDs(ctx, campaign.CollSpecies, ids, &out)
	return out, err
}

// DeleteSpecies removes one species document.
func (r *Repository) DeleteSpecies(ctx context.Context, id types.ID) error {
	_, err := r.store.DeleteByID(ctx, campaign.CollSpecies, id)
	return err
}

// CharactersBySpecies returns characters of the given species across all
// campaigns.
func (r *Repository) CharactersBySpecies(ctx context.Context, speciesID types.ID) ([]campaign.Character, error) {
	var out []campaign.Character
	err := r.store.FindWhere(ctx, campaign.CollCharacters, "species_id", speciesID.String(), &out)
	return out, err
}

// CharactersByCampaign returns characters owned by a campaign.
func (r *Repository) CharactersByCampaign(ctx context.Context, campaignID types.ID) ([]campaign.Character, error) {
	var out []campaign.Character
	err := r.store.FindWhere(ctx, campaign.CollCharacters, "campaign_id", campaignID.String(), &out)
	return out, err
}

// InsertLocation writes a location, minting its id.
func (r *Repository) InsertLocation(ctx context.Context, loc *campaign.Location) (types.ID, error) {
	return r.store.Insert(ctx, campaign.CollLocations, &loc.ID, loc)
}

// GetLocation loads one location document.
func (r *Repository) GetLocation(ctx context.Context, id types.ID) (*campaign.Location, error) {
	var loc campaign.Location
	if err := r.store.FindByID(ctx, campaign.CollLocations, id, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// LocationsByIDs resolves location documents from an id-list.
func (r *Repository) LocationsByIDs(ctx context.Context, ids []types.ID) ([]campaign.Location, error) {
	var out []campaign.Location
	err := r.store.FindByIDs(ctx, campaign.CollLocations, ids, &out)
	return out, err
}

// LocationsByParent returns child locations nested under a parent.
func (r *Repository) LocationsByParent(ctx context.Context, parentID types.ID) ([]campaign.Location, error) {
	var out []campaign.Location
	err := r.store.FindWhere(ctx, campaign.CollLocations, "parent_id", parentID.String(), &out)
	return out, err
}

// DeleteLocation removes one location document.
func (r *Repository) DeleteLocation(ctx context.Context, id types.ID) error {
	_, err := r.store.DeleteByID(ctx, campaign.CollLocations, id)
	return err
}

// --- bulk deletes ---

// DeleteMany bulk-removes documents from a collection by id-list.
func (r *Repository) DeleteMany(ctx context.Context, coll string, ids []types.ID) (int64, error) {
	return r.store.DeleteManyByIDs(ctx, coll, ids)
}

// DeleteCampaign removes the campaign root record.
func (r *Repository) DeleteCampaign(ctx context.Context, id types.ID) error {
	n, err := r.store.DeleteByID(ctx, campaign.CollCampaigns, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return types.NewError(types.DOC_NOT_FOUND, "campaign root already absent: "+id.String())
	}
	return nil
}

// --- audits ---

// InsertDeletionAudit writes the deletion audit document.
func (r *Repository) InsertDeletionAudit(ctx context.Context, a *campaign.DeletionAudit) (types.ID, error) {
	return r.store.Insert(ctx, campaign.CollAudits, &a.ID, a)
}
