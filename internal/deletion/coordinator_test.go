package deletion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BillClerici/skill-forge-sub000/internal/campaign"
	"github.com/BillClerici/skill-forge-sub000/internal/engine"
	"github.com/BillClerici/skill-forge-sub000/internal/store/graph"
	"github.com/BillClerici/skill-forge-sub000/internal/store/resume"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// fakeDocStore is an in-memory DocumentStore holding a full content tree.
type fakeDocStore struct {
	campaigns  map[types.ID]campaign.Campaign
	quests     map[types.ID]campaign.Quest
	places     map[types.ID]campaign.Place
	scenes     map[types.ID]campaign.Scene
	knowledge  map[types.ID]campaign.KnowledgeEntity
	items      map[types.ID]campaign.ItemEntity
	characters map[types.ID]campaign.Character
	species    map[types.ID]campaign.Species
	locations  map[types.ID]campaign.Location

	worldSpecies map[types.ID][]types.ID
	audits       []campaign.DeletionAudit

	failDeleteColl string
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		campaigns:    map[types.ID]campaign.Campaign{},
		quests:       map[types.ID]campaign.Quest{},
		places:       map[types.ID]campaign.Place{},
		scenes:       map[types.ID]campaign.Scene{},
		knowledge:    map[types.ID]campaign.KnowledgeEntity{},
		items:        map[types.ID]campaign.ItemEntity{},
		characters:   map[types.ID]campaign.Character{},
		species:      map[types.ID]campaign.Species{},
		locations:    map[types.ID]campaign.Location{},
		worldSpecies: map[types.ID][]types.ID{},
	}
}

func (f *fakeDocStore) GetCampaign(ctx context.Context, id types.ID) (*campaign.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, types.NewError(types.DOC_NOT_FOUND, "no campaign")
	}
	return &c, nil
}

func (f *fakeDocStore) QuestsByIDs(ctx context.Context, ids []types.ID) ([]campaign.Quest, error) {
	var out []campaign.Quest
	for _, id := range ids {
		if q, ok := f.quests[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeDocStore) QuestsByCampaign(ctx context.Context, campaignID types.ID) ([]campaign.Quest, error) {
	var out []campaign.Quest
	for _, q := range f.quests {
		if q.CampaignID == campaignID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeDocStore) PlacesByQuestIDs(ctx context.Context, questIDs []types.ID) ([]campaign.Place, error) {
	set := types.NewIDSet(questIDs...)
	var out []campaign.Place
	for _, p := range f.places {
		if set.Contains(p.QuestID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeDocStore) ScenesByPlaceIDs(ctx context.Context, placeIDs []types.ID) ([]campaign.Scene, error) {
	set := types.NewIDSet(placeIDs...)
	var out []campaign.Scene
	for _, s := range f.scenes {
		if set.Contains(s.PlaceID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeDocStore) KnowledgeBySceneIDs(ctx context.Context, sceneIDs []types.ID) ([]campaign.KnowledgeEntity, error) {
	set := types.NewIDSet(sceneIDs...)
	var out []campaign.KnowledgeEntity
	for _, k := range f.knowledge {
		if set.Contains(k.SceneID) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeDocStore) ItemsBySceneIDs(ctx context.Context, sceneIDs []types.ID) ([]campaign.ItemEntity, error) {
	set := types.NewIDSet(sceneIDs...)
	var out []campaign.ItemEntity
	for _, it := range f.items {
		if set.Contains(it.SceneID) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeDocStore) CharactersByCampaign(ctx context.Context, campaignID types.ID) ([]campaign.Character, error) {
	var out []campaign.Character
	for _, ch := range f.characters {
		if ch.CampaignID == campaignID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeDocStore) DeleteMany(ctx context.Context, coll string, ids []types.ID) (int64, error) {
	if coll == f.failDeleteColl {
		return 0, types.NewRetryableError(types.DOC_DELETE_FAILED, "injected failure on "+coll)
	}
	var n int64
	for _, id := range ids {
		switch coll {
		case campaign.CollQuests:
			if _, ok := f.quests[id]; ok {
				delete(f.quests, id)
				n++
			}
		case campaign.CollPlaces:
			if _, ok := f.places[id]; ok {
				delete(f.places, id)
				n++
			}
		case campaign.CollScenes:
			if _, ok := f.scenes[id]; ok {
				delete(f.scenes, id)
				n++
			}
		case campaign.CollKnowledge:
			if _, ok := f.knowledge[id]; ok {
				delete(f.knowledge, id)
				n++
			}
		case campaign.CollItems:
			if _, ok := f.items[id]; ok {
				delete(f.items, id)
				n++
			}
		case campaign.CollCharacters:
			if _, ok := f.characters[id]; ok {
				delete(f.characters, id)
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeDocStore) DeleteCampaign(ctx context.Context, id types.ID) error {
	if _, ok := f.campaigns[id]; !ok {
		return types.NewError(types.DOC_NOT_FOUND, "campaign root already absent")
	}
	delete(f.campaigns, id)
	return nil
}

func (f *fakeDocStore) SpeciesByIDs(ctx context.Context, ids []types.ID) ([]campaign.Species, error) {
	var out []campaign.Species
	for _, id := range ids {
		if sp, ok := f.species[id]; ok {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (f *fakeDocStore) CharactersBySpecies(ctx context.Context, speciesID types.ID) ([]campaign.Character, error) {
	var out []campaign.Character
	for _, ch := range f.characters {
		if ch.SpeciesID == speciesID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeDocStore) CampaignsCreatingSpecies(ctx context.Context, speciesID types.ID) ([]campaign.Campaign, error) {
	var out []campaign.Campaign
	for _, c := range f.campaigns {
		for _, id := range c.CreatedSpeciesIDs {
			if id == speciesID {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeDocStore) DeleteSpecies(ctx context.Context, id types.ID) error {
	delete(f.species, id)
	return nil
}

func (f *fakeDocStore) PullWorldSpecies(ctx context.Context, worldID, speciesID types.ID) error {
	list := f.worldSpecies[worldID]
	out := list[:0]
	for _, id := range list {
		if id != speciesID {
			out = append(out, id)
		}
	}
	f.worldSpecies[worldID] = out
	return nil
}

func (f *fakeDocStore) LocationsByIDs(ctx context.Context, ids []types.ID) ([]campaign.Location, error) {
	var out []campaign.Location
	for _, id := range ids {
		if loc, ok := f.locations[id]; ok {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (f *fakeDocStore) PlacesByLocation(ctx context.Context, locationID types.ID) ([]campaign.Place, error) {
	var out []campaign.Place
	for _, p := range f.places {
		if p.LocationID == locationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeDocStore) CampaignsCreatingLocation(ctx context.Context, locationID types.ID) ([]campaign.Campaign, error) {
	var out []campaign.Campaign
	for _, c := range f.campaigns {
		for _, id := range c.CreatedLocationIDs {
			if id == locationID {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeDocStore) LocationsByParent(ctx context.Context, parentID types.ID) ([]campaign.Location, error) {
	var out []campaign.Location
	for _, loc := range f.locations {
		if loc.ParentID == parentID {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (f *fakeDocStore) DeleteLocation(ctx context.Context, id types.ID) error {
	delete(f.locations, id)
	return nil
}

func (f *fakeDocStore) InsertDeletionAudit(ctx context.Context, a *campaign.DeletionAudit) (types.ID, error) {
	if a.ID.IsZero() {
		a.ID = types.NewID()
	}
	f.audits = append(f.audits, *a)
	return a.ID, nil
}

// fakeGraphStore optionally fails every call.
type fakeGraphStore struct {
	fail  bool
	calls []string
}

func (f *fakeGraphStore) do(name string) (graph.QuerySummary, error) {
	f.calls = append(f.calls, name)
	if f.fail {
		return graph.QuerySummary{}, types.NewError(types.GRAPH_QUERY_FAILED, "graph down")
	}
	return graph.QuerySummary{NodesDeleted: 1}, nil
}

func (f *fakeGraphStore) DetachDeleteTree(ctx context.Context, rootLabel string, rootID types.ID, relType string) (graph.QuerySummary, error) {
	return f.do("tree:" + rootLabel)
}

func (f *fakeGraphStore) SweepOrphans(ctx context.Context, label, ownerProp string, ownerID types.ID) (graph.QuerySummary, error) {
	return f.do("sweep:" + label)
}

func (f *fakeGraphStore) ConditionalDetachDelete(ctx context.Context, label string, id types.ID) (graph.QuerySummary, error) {
	return f.do("conditional:" + label)
}

type fakeRelStore struct {
	rows map[types.ID]int64
	fail bool
}

func (f *fakeRelStore) DeleteByCampaign(ctx context.Context, campaignID types.ID) (int64, error) {
	if f.fail {
		return 0, types.NewError(types.SQL_DELETE_FAILED, "table missing")
	}
	n := f.rows[campaignID]
	delete(f.rows, campaignID)
	return n, nil
}

// seedCampaign builds one full tree in the store and returns the campaign id.
func seedCampaign(docs *fakeDocStore, worldID types.ID, legacy bool) types.ID {
	campaignID := types.NewID()
	questID := types.NewID()
	placeID := types.NewID()
	sceneID := types.NewID()

	c := campaign.Campaign{ID: campaignID, WorldID: worldID, Name: "Doomed"}
	if legacy {
		c.QuestIDs = []types.ID{questID}
	} else {
		c.Plan = &campaign.Plan{QuestIDs: []types.ID{questID}}
	}
	docs.campaigns[campaignID] = c

	docs.quests[questID] = campaign.Quest{ID: questID, CampaignID: campaignID, Number: 1}
	docs.places[placeID] = campaign.Place{ID: placeID, QuestID: questID, CampaignID: campaignID}
	docs.scenes[sceneID] = campaign.Scene{ID: sceneID, PlaceID: placeID, CampaignID: campaignID}
	kid := types.NewID()
	docs.knowledge[kid] = campaign.KnowledgeEntity{ID: kid, CampaignID: campaignID, SceneID: sceneID}
	iid := types.NewID()
	docs.items[iid] = campaign.ItemEntity{ID: iid, CampaignID: campaignID, SceneID: sceneID}
	chid := types.NewID()
	docs.characters[chid] = campaign.Character{ID: chid, CampaignID: campaignID}

	return campaignID
}

func runDeletion(t *testing.T, coord *Coordinator, campaignID types.ID) *engine.State[Manifest] {
	t.Helper()
	exec := engine.NewExecutor[Manifest](resume.NewMemoryStore())
	st, err := exec.Run(context.Background(), coord.Definition(), coord.NewState(campaignID, 2))
	require.NoError(t, err)
	return st
}

func TestDeletionRemovesEverythingOwned(t *testing.T) {
	docs := newFakeDocStore()
	graphs := &fakeGraphStore{}
	worldID := types.NewID()
	campaignID := seedCampaign(docs, worldID, false)
	rel := &fakeRelStore{rows: map[types.ID]int64{campaignID: 3}}

	coord := NewCoordinator(docs, graphs, rel, nil, nil)
	st := runDeletion(t, coord, campaignID)

	assert.Equal(t, engine.StatusCompleted, st.Status)
	assert.Empty(t, docs.campaigns)
	assert.Empty(t, docs.quests)
	assert.Empty(t, docs.places)
	assert.Empty(t, docs.scenes)
	assert.Empty(t, docs.knowledge)
	assert.Empty(t, docs.items)
	assert.Empty(t, docs.characters)

	require.Len(t, docs.audits, 1)
	audit := docs.audits[0]
	assert.True(t, audit.Success)
	assert.Equal(t, 1, audit.Categories["campaign"].Deleted)
	assert.Equal(t, int64(0), rel.rows[campaignID])
	assert.Contains(t, graphs.calls, "tree:Campaign")
	assert.Contains(t, graphs.calls, "sweep:Scene")
}

func TestDeletionHandlesLegacySchema(t *testing.T) {
	docs := newFakeDocStore()
	campaignID := seedCampaign(docs, types.NewID(), true)

	coord := NewCoordinator(docs, nil, nil, nil, nil)
	st := runDeletion(t, coord, campaignID)

	assert.Equal(t, engine.StatusCompleted, st.Status)
	assert.Empty(t, docs.quests, "legacy inline quest list still cascades")
}

func TestDeletionFindsOrphanedQuests(t *testing.T) {
	// A quest owned by the campaign but missing from the root's quest list
	// must still be deleted.
	docs := newFakeDocStore()
	campaignID := seedCampaign(docs, types.NewID(), false)

	orphanID := types.NewID()
	docs.quests[orphanID] = campaign.Quest{ID: orphanID, CampaignID: campaignID, Number: 9}

	coord := NewCoordinator(docs, nil, nil, nil, nil)
	st := runDeletion(t, coord, campaignID)

	assert.Equal(t, engine.StatusCompleted, st.Status)
	assert.Empty(t, docs.quests)
	assert.Equal(t, 2, st.Content.Deleted["quests"])
}

func TestDeletionGraphFailureIsOnlyAWarning(t *testing.T) {
	docs := newFakeDocStore()
	campaignID := seedCampaign(docs, types.NewID(), false)

	coord := NewCoordinator(docs, &fakeGraphStore{fail: true}, &fakeRelStore{fail: true}, nil, nil)
	st := runDeletion(t, coord, campaignID)

	assert.Equal(t, engine.StatusCompleted, st.Status)
	assert.NotEmpty(t, st.Warnings)

	require.Len(t, docs.audits, 1)
	assert.True(t, docs.audits[0].Success, "success is defined by the primary cascade alone")
	assert.NotEmpty(t, docs.audits[0].Warnings)
}

func TestDeletionPrimaryFailureFailsWorkflow(t *testing.T) {
	docs := newFakeDocStore()
	campaignID := seedCampaign(docs, types.NewID(), false)
	docs.failDeleteColl = campaign.CollScenes

	coord := NewCoordinator(docs, nil, nil, nil, nil)
	st := runDeletion(t, coord, campaignID)

	assert.Equal(t, engine.StatusFailed, st.Status)
	assert.False(t, st.Content.PrimaryDone)
	assert.Empty(t, docs.audits, "no audit without reaching finalize")
}

func TestDeletionUnknownCampaign(t *testing.T) {
	coord := NewCoordinator(newFakeDocStore(), nil, nil, nil, nil)
	st := runDeletion(t, coord, types.NewID())

	assert.Equal(t, engine.StatusFailed, st.Status)
}

func TestSharedSpeciesRetainedThenDeleted(t *testing.T) {
	docs := newFakeDocStore()
	worldID := types.NewID()

	// Campaign one created a species; a character in campaign two uses it.
	c1 := seedCampaign(docs, worldID, false)
	c2 := seedCampaign(docs, worldID, false)

	speciesID := types.NewID()
	docs.species[speciesID] = campaign.Species{
		ID: speciesID, WorldID: worldID, Name: "Dunewalker", CreatedByCampaignID: c1,
	}
	docs.worldSpecies[worldID] = []types.ID{speciesID}
	root := docs.campaigns[c1]
	root.CreatedSpeciesIDs = []types.ID{speciesID}
	docs.campaigns[c1] = root

	charID := types.NewID()
	docs.characters[charID] = campaign.Character{ID: charID, CampaignID: c2, SpeciesID: speciesID}

	coord := NewCoordinator(docs, nil, nil, nil, nil)

	// Deleting campaign one retains the species and says why.
	st := runDeletion(t, coord, c1)
	assert.Equal(t, engine.StatusCompleted, st.Status)
	assert.Contains(t, docs.species, speciesID)
	require.NotEmpty(t, st.Content.Retained["species"])
	assert.Contains(t, st.Content.Retained["species"][0], "Dunewalker")
	assert.Contains(t, docs.worldSpecies[worldID], speciesID)

	// The species survives as an orphan candidate: once campaign two and its
	// character are gone, a later sweep could remove it. Here nobody deletes
	// it because campaign two never listed it as self-created.
	st = runDeletion(t, coord, c2)
	assert.Equal(t, engine.StatusCompleted, st.Status)
	assert.Contains(t, docs.species, speciesID, "only self-created species are candidates")
}

func TestSelfCreatedSpeciesDeletedWhenUnused(t *testing.T) {
	docs := newFakeDocStore()
	worldID := types.NewID()
	c1 := seedCampaign(docs, worldID, false)

	speciesID := types.NewID()
	docs.species[speciesID] = campaign.Species{
		ID: speciesID, WorldID: worldID, Name: "Dunewalker", CreatedByCampaignID: c1,
	}
	docs.worldSpecies[worldID] = []types.ID{speciesID}
	root := docs.campaigns[c1]
	root.CreatedSpeciesIDs = []types.ID{speciesID}
	docs.campaigns[c1] = root

	// The deleting campaign's own character must not block deletion.
	ownChar := types.NewID()
	docs.characters[ownChar] = campaign.Character{ID: ownChar, CampaignID: c1, SpeciesID: speciesID}

	graphs := &fakeGraphStore{}
	coord := NewCoordinator(docs, graphs, nil, nil, nil)
	st := runDeletion(t, coord, c1)

	assert.Equal(t, engine.StatusCompleted, st.Status)
	assert.NotContains(t, docs.species, speciesID)
	assert.Empty(t, docs.worldSpecies[worldID], "species detached from world list")
	assert.Contains(t, graphs.calls, "conditional:Species")
	assert.Equal(t, 1, st.Content.Deleted["species"])
}

func TestSharedLocationRetention(t *testing.T) {
	docs := newFakeDocStore()
	worldID := types.NewID()
	c1 := seedCampaign(docs, worldID, false)
	c2 := seedCampaign(docs, worldID, false)

	region := types.NewID()
	town := types.NewID()
	docs.locations[region] = campaign.Location{
		ID: region, WorldID: worldID, Name: "Ashen Coast", Level: 1, CreatedByCampaignID: c1,
	}
	docs.locations[town] = campaign.Location{
		ID: town, WorldID: worldID, Name: "Brinewatch", Level: 2, ParentID: region, CreatedByCampaignID: c1,
	}
	root := docs.campaigns[c1]
	root.CreatedLocationIDs = []types.ID{region, town}
	docs.campaigns[c1] = root

	// Campaign two anchors a place to the town: town retained, and the
	// region retained because a child still nests under it.
	anchorPlace := types.NewID()
	docs.places[anchorPlace] = campaign.Place{
		ID: anchorPlace, QuestID: types.NewID(), CampaignID: c2, LocationID: town,
	}

	coord := NewCoordinator(docs, nil, nil, nil, nil)
	st := runDeletion(t, coord, c1)

	assert.Equal(t, engine.StatusCompleted, st.Status)
	assert.Contains(t, docs.locations, town)
	assert.Contains(t, docs.locations, region)
	assert.Len(t, st.Content.Retained["locations"], 2)
}

func TestLocationHierarchyDeletedDeepestFirst(t *testing.T) {
	docs := newFakeDocStore()
	worldID := types.NewID()
	c1 := seedCampaign(docs, worldID, false)

	region := types.NewID()
	town := types.NewID()
	docs.locations[region] = campaign.Location{
		ID: region, WorldID: worldID, Name: "Ashen Coast", Level: 1, CreatedByCampaignID: c1,
	}
	docs.locations[town] = campaign.Location{
		ID: town, WorldID: worldID, Name: "Brinewatch", Level: 2, ParentID: region, CreatedByCampaignID: c1,
	}
	root := docs.campaigns[c1]
	root.CreatedLocationIDs = []types.ID{region, town}
	docs.campaigns[c1] = root

	coord := NewCoordinator(docs, nil, nil, nil, nil)
	st := runDeletion(t, coord, c1)

	assert.Equal(t, engine.StatusCompleted, st.Status)
	assert.Empty(t, docs.locations, "own child deleted first unblocks the parent")
	assert.Equal(t, 2, st.Content.Deleted["locations"])
	assert.Empty(t, st.Content.Retained["locations"])
}
