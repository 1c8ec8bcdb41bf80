package campaign

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BillClerici/skill-forge-sub000/internal/engine"
	"github.com/BillClerici/skill-forge-sub000/internal/generator"
	"github.com/BillClerici/skill-forge-sub000/internal/store/resume"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// scriptedGen replays canned generator responses in call order.
type scriptedGen struct {
	responses []string
	calls     int
}

func (g *scriptedGen) GenerateInto(ctx context.Context, req generator.Request, out any) error {
	if g.calls >= len(g.responses) {
		return types.NewRetryableError(types.GEN_CALL_FAILED, "script exhausted")
	}
	resp := g.responses[g.calls]
	g.calls++
	return generator.Decode(resp, out)
}

// fakeContentStore records inserted documents in memory.
type fakeContentStore struct {
	world     *World
	campaigns []Campaign
	quests    []Quest
	places    []Place
	scenes    []Scene
	knowledge []KnowledgeEntity
	items     []ItemEntity
}

func (f *fakeContentStore) GetWorld(ctx context.Context, id types.ID) (*World, error) {
	if f.world == nil || f.world.ID != id {
		return nil, types.NewError(types.DOC_NOT_FOUND, "no world "+id.String())
	}
	return f.world, nil
}

func (f *fakeContentStore) InsertCampaign(ctx context.Context, c *Campaign) (types.ID, error) {
	f.campaigns = append(f.campaigns, *c)
	return c.ID, nil
}

func (f *fakeContentStore) InsertQuest(ctx context.Context, q *Quest) (types.ID, error) {
	f.quests = append(f.quests, *q)
	return q.ID, nil
}

func (f *fakeContentStore) InsertPlace(ctx context.Context, p *Place) (types.ID, error) {
	f.places = append(f.places, *p)
	return p.ID, nil
}

func (f *fakeContentStore) InsertScene(ctx context.Context, sc *Scene) (types.ID, error) {
	f.scenes = append(f.scenes, *sc)
	return sc.ID, nil
}

func (f *fakeContentStore) InsertKnowledge(ctx context.Context, k *KnowledgeEntity) (types.ID, error) {
	f.knowledge = append(f.knowledge, *k)
	return k.ID, nil
}

func (f *fakeContentStore) InsertItem(ctx context.Context, it *ItemEntity) (types.ID, error) {
	f.items = append(f.items, *it)
	return it.ID, nil
}

const coreResponse = `{"name": "Echoes of the Deep", "synopsis": "A drowned archive calls.",
	"narrative_beats": ["arrival", "descent"]}`

const questsResponse = `[
	{"number": 1, "name": "The Drowned Archive", "synopsis": "Find the archive."},
	{"number": 2, "name": "The Silent Reef", "synopsis": "Cross the reef."}]`

const leavesResponse = `[
	{"description": "learn tidal navigation", "quest_number": 1,
	 "knowledge_tags": ["tidal navigation"], "item_tags": [], "min_coverage": 1},
	{"description": "recover the sea charts", "quest_number": 2,
	 "knowledge_tags": [], "item_tags": ["sea charts"], "min_coverage": 1}]`

const placesResponse = `[
	{"quest_number": 1, "name": "Harbor District"},
	{"quest_number": 2, "name": "Outer Reef"}]`

const scenesResponse = `[
	{"place_name": "Harbor District", "name": "Dockside Rumors",
	 "narrative": "The harbormaster knows the tides.",
	 "completion_criteria": ["earn the harbormaster's trust"],
	 "knowledge": [{"domain": "tidal navigation", "mastery_ceiling": 3,
	   "acquisition_methods": ["study", "practice"], "quest_critical": true}],
	 "items": [],
	 "leaf_objectives": ["learn tidal navigation"],
	 "acquisition_methods": ["conversation"], "required": true},
	{"place_name": "Outer Reef", "name": "Chart Recovery",
	 "narrative": "The charts lie in a sunken hull.",
	 "completion_criteria": ["retrieve the sea charts"],
	 "knowledge": [],
	 "items": [{"category": "sea charts", "quantity": 1,
	   "acquisition_methods": ["salvage", "purchase"], "quest_critical": false}],
	 "leaf_objectives": ["recover the sea charts"],
	 "acquisition_methods": ["exploration"], "required": true}]`

func testRequest(worldID types.ID) GenerationRequest {
	return GenerationRequest{
		WorldID:    worldID,
		Premise:    "a flooded coastal kingdom",
		NumQuests:  2,
		Objectives: []string{"master the drowned archive"},
	}
}

func runGeneration(t *testing.T, gen *scriptedGen) (*fakeContentStore, *engine.Executor[Content], *engine.Definition[Content], *engine.State[Content]) {
	t.Helper()

	store := &fakeContentStore{world: &World{ID: types.NewID(), Name: "Maretide"}}
	wf := NewGenerationWorkflow(store, gen, nil, nil)
	def := wf.Definition()
	exec := engine.NewExecutor[Content](resume.NewMemoryStore())

	st, err := exec.Run(context.Background(), def, wf.NewState(testRequest(store.world.ID), 2))
	require.NoError(t, err)
	return store, exec, def, st
}

func TestGenerationHappyPath(t *testing.T) {
	gen := &scriptedGen{responses: []string{
		coreResponse, questsResponse, leavesResponse, placesResponse, scenesResponse,
	}}

	store, exec, def, st := runGeneration(t, gen)

	// Core draft parks for human review, nothing persisted yet.
	require.Equal(t, engine.StatusAwaitingDecision, st.Status)
	assert.Equal(t, "review_core", st.CurrentNode)
	assert.Empty(t, store.campaigns)
	assert.Contains(t, st.Checkpoints, PhaseCore)

	st, err := exec.Decide(context.Background(), def, st.InstanceID, DecisionCoreReview, true)
	require.NoError(t, err)
	require.Equal(t, engine.StatusCompleted, st.Status, "errors: %v", st.Errors)

	// Content tree landed in the document store.
	require.Len(t, store.campaigns, 1)
	c := store.campaigns[0]
	assert.Equal(t, "Echoes of the Deep", c.Name)
	assert.False(t, c.Legacy(), "new campaigns use the plan layout")
	assert.Len(t, c.AllQuestIDs(), 2)

	assert.Len(t, store.quests, 2)
	assert.Len(t, store.places, 2)
	assert.Len(t, store.scenes, 2)
	assert.Len(t, store.knowledge, 1)
	assert.Len(t, store.items, 1)

	// Containment wired bottom-up.
	for _, q := range store.quests {
		assert.Equal(t, c.ID, q.CampaignID)
		assert.NotEmpty(t, q.PlaceIDs)
	}
	for _, sc := range store.scenes {
		require.NotNil(t, sc.Assignment)
		assert.NotEmpty(t, sc.Assignment.AdvancesLeaves)
	}

	// Validation passed with all three checkpoints on record.
	require.NotNil(t, st.Content.Report)
	assert.True(t, st.Content.Report.Passed)
	assert.Contains(t, st.Checkpoints, PhaseStructure)
	assert.Contains(t, st.Checkpoints, PhaseContent)
}

func TestGenerationCoreRejected(t *testing.T) {
	gen := &scriptedGen{responses: []string{coreResponse}}

	store, exec, def, st := runGeneration(t, gen)
	require.Equal(t, engine.StatusAwaitingDecision, st.Status)

	st, err := exec.Decide(context.Background(), def, st.InstanceID, DecisionCoreReview, false)
	require.NoError(t, err)

	assert.Equal(t, engine.StatusFailed, st.Status)
	assert.Empty(t, store.campaigns, "rejected drafts never reach the store")
}

func TestGenerationValidationBlocksFinalize(t *testing.T) {
	// A quest-critical knowledge entity with zero acquisition methods is a
	// critical finding: the workflow must fail without writing documents.
	badScenes := `[
		{"place_name": "Harbor District", "name": "Dockside Rumors",
		 "completion_criteria": ["talk"],
		 "knowledge": [{"domain": "tidal navigation", "mastery_ceiling": 3,
		   "acquisition_methods": [], "quest_critical": true}],
		 "items": [],
		 "leaf_objectives": ["learn tidal navigation", "recover the sea charts"],
		 "acquisition_methods": ["conversation"], "required": true}]`

	gen := &scriptedGen{responses: []string{
		coreResponse, questsResponse, leavesResponse, placesResponse, badScenes,
	}}

	store, exec, def, st := runGeneration(t, gen)
	st, err := exec.Decide(context.Background(), def, st.InstanceID, DecisionCoreReview, true)
	require.NoError(t, err)

	assert.Equal(t, engine.StatusFailed, st.Status)
	require.NotNil(t, st.Content.Report)
	assert.False(t, st.Content.Report.Passed)
	assert.Empty(t, store.campaigns)
	assert.Empty(t, store.scenes)
}

func TestGenerationRetriesTransientQuestFailure(t *testing.T) {
	// One malformed quest response, then a good one: the node retries and
	// the run still completes.
	gen := &scriptedGen{responses: []string{
		coreResponse,
		`[{"number": 1, "name": "Only One", "synopsis": "too few"}]`,
		questsResponse, leavesResponse, placesResponse, scenesResponse,
	}}

	store, exec, def, st := runGeneration(t, gen)
	st, err := exec.Decide(context.Background(), def, st.InstanceID, DecisionCoreReview, true)
	require.NoError(t, err)

	assert.Equal(t, engine.StatusCompleted, st.Status, "errors: %v", st.Errors)
	assert.Len(t, st.Errors, 1, "the failed attempt stays on the record")
	assert.Len(t, store.quests, 2)
}

func TestGenerationUnknownWorldFailsFast(t *testing.T) {
	gen := &scriptedGen{}
	store := &fakeContentStore{world: &World{ID: types.NewID(), Name: "Maretide"}}
	wf := NewGenerationWorkflow(store, gen, nil, nil)
	exec := engine.NewExecutor[Content](resume.NewMemoryStore())

	st, err := exec.Run(context.Background(), wf.Definition(),
		wf.NewState(testRequest(types.NewID()), 2))
	require.NoError(t, err)

	assert.Equal(t, engine.StatusFailed, st.Status)
	assert.Zero(t, gen.calls, "no generator call without a world")
}
