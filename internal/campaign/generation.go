package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BillClerici/skill-forge-sub000/internal/cascade"
	"github.com/BillClerici/skill-forge-sub000/internal/engine"
	"github.com/BillClerici/skill-forge-sub000/internal/generator"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// WorkflowName identifies generation workflow instances in snapshots and
// events.
const WorkflowName = "generation"

// Checkpoint phases created by the generation workflow, in order.
const (
	PhaseCore      = "core"
	PhaseStructure = "structure"
	PhaseContent   = "content"
)

// DecisionCoreReview is the human decision flag gating the core draft.
const DecisionCoreReview = "core_review"

// GenerationRequest is the caller's input to a generation run.
type GenerationRequest struct {
	WorldID    types.ID `json:"world_id" validate:"required"`
	Premise    string   `json:"premise" validate:"required"`
	NumQuests  int      `json:"num_quests" validate:"min=1,max=10"`
	Objectives []string `json:"objectives" validate:"min=1,dive,required"`
}

// Content is the generation workflow's accumulating payload. Everything is
// built in memory; nothing reaches the stores until finalize, so a rollback
// to any checkpoint never leaves partial documents behind.
type Content struct {
	Request GenerationRequest `json:"request"`
	World   *World            `json:"world,omitempty"`

	Campaign   *Campaign              `json:"campaign,omitempty"`
	Objectives []cascade.TopObjective `json:"objectives,omitempty"`

	Quests    []Quest           `json:"quests,omitempty"`
	Places    []Place           `json:"places,omitempty"`
	Scenes    []Scene           `json:"scenes,omitempty"`
	Knowledge []KnowledgeEntity `json:"knowledge,omitempty"`
	Items     []ItemEntity      `json:"items,omitempty"`

	Decompositions []cascade.Decomposition   `json:"decompositions,omitempty"`
	NarrativePlan  []cascade.PlanEntry       `json:"narrative_plan,omitempty"`
	Assignments    []cascade.SceneAssignment `json:"assignments,omitempty"`
	Report         *cascade.Report           `json:"report,omitempty"`
}

// ContentStore is the document-store surface the workflow needs.
// *document.Repository satisfies it.
type ContentStore interface {
	GetWorld(ctx context.Context, id types.ID) (*World, error)
	InsertCampaign(ctx context.Context, c *Campaign) (types.ID, error)
	InsertQuest(ctx context.Context, q *Quest) (types.ID, error)
	InsertPlace(ctx context.Context, p *Place) (types.ID, error)
	InsertScene(ctx context.Context, sc *Scene) (types.ID, error)
	InsertKnowledge(ctx context.Context, k *KnowledgeEntity) (types.ID, error)
	InsertItem(ctx context.Context, it *ItemEntity) (types.ID, error)
}

// GenerationWorkflow assembles the campaign generation node and routing
// tables. One workflow value is shared by all instances.
type GenerationWorkflow struct {
	store     ContentStore
	gen       generator.Generator
	decompose *cascade.Decomposer
	graph     *GraphSync
	logger    *slog.Logger
}

// NewGenerationWorkflow wires the workflow's collaborators. graph may be
// nil; graph sync is then skipped with a warning.
func NewGenerationWorkflow(store ContentStore, gen generator.Generator, graph *GraphSync, logger *slog.Logger) *GenerationWorkflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationWorkflow{
		store:     store,
		gen:       gen,
		decompose: cascade.NewDecomposer(gen, logger),
		graph:     graph,
		logger:    logger,
	}
}

// NewState builds the initial instance state for a request.
func (w *GenerationWorkflow) NewState(req GenerationRequest, maxRetries int) *engine.State[Content] {
	return engine.NewState(WorkflowName, types.ID(""), Content{Request: req}, maxRetries)
}

// Definition returns the generation workflow graph.
func (w *GenerationWorkflow) Definition() *engine.Definition[Content] {
	return &engine.Definition[Content]{
		Name:  WorkflowName,
		Entry: "initialize",
		Nodes: map[string]engine.NodeFunc[Content]{
			"initialize":           w.initialize,
			"generate_core":        w.generateCore,
			"review_core":          w.reviewCore,
			"generate_quests":      w.generateQuests,
			"decompose_objectives": w.decomposeObjectives,
			"generate_places":      w.generatePlaces,
			"generate_scenes":      w.generateScenes,
			"assign_objectives":    w.assignObjectives,
			"validate_content":     w.validateContent,
			"finalize":             w.finalize,
		},
		Routing: map[string]engine.RoutingFunc[Content]{
			"initialize":           engine.AdvanceOrFail[Content]("generate_core"),
			"generate_core":        engine.RetryOrAdvance[Content]("generate_core", "review_core"),
			"review_core":          engine.OnDecision[Content](DecisionCoreReview, "review_core", "generate_quests", engine.Fail),
			"generate_quests":      engine.RetryOrAdvance[Content]("generate_quests", "decompose_objectives"),
			"decompose_objectives": engine.RetryOrAdvance[Content]("decompose_objectives", "generate_places"),
			"generate_places":      engine.RetryOrAdvance[Content]("generate_places", "generate_scenes"),
			"generate_scenes":      engine.RetryOrAdvance[Content]("generate_scenes", "assign_objectives"),
			"assign_objectives":    engine.AdvanceOrFail[Content]("validate_content"),
			"validate_content":     w.routeValidation,
			"finalize":             engine.RetryOrAdvance[Content]("finalize", engine.End),
		},
	}
}

// routeValidation advances only when no critical findings remain.
// Validation is deterministic, so retrying it is pointless.
func (w *GenerationWorkflow) routeValidation(st *engine.State[Content]) string {
	if st.Failing() {
		return engine.Fail
	}
	if st.Content.Report == nil || !st.Content.Report.Passed {
		return engine.Fail
	}
	return "finalize"
}

// --- generator draft shapes ---

type coreDraft struct {
	Name           string   `json:"name" validate:"required"`
	Synopsis       string   `json:"synopsis" validate:"required"`
	NarrativeBeats []string `json:"narrative_beats"`
}

type questDraft struct {
	Number   int    `json:"number" validate:"min=1"`
	Name     string `json:"name" validate:"required"`
	Synopsis string `json:"synopsis"`
}

type placeDraft struct {
	QuestNumber int    `json:"quest_number" validate:"min=1"`
	Name        string `json:"name" validate:"required"`
}

type knowledgeDraft struct {
	Domain             string   `json:"domain" validate:"required"`
	MasteryCeiling     int      `json:"mastery_ceiling" validate:"min=1,max=10"`
	AcquisitionMethods []string `json:"acquisition_methods"`
	QuestCritical      bool     `json:"quest_critical"`
}

type itemDraft struct {
	Category           string   `json:"category" validate:"required"`
	Quantity           int      `json:"quantity" validate:"min=1"`
	AcquisitionMethods []string `json:"acquisition_methods"`
	QuestCritical      bool     `json:"quest_critical"`
}

type sceneDraft struct {
	PlaceName          string           `json:"place_name" validate:"required"`
	Name               string           `json:"name" validate:"required"`
	Narrative          string           `json:"narrative"`
	CompletionCriteria []string         `json:"completion_criteria"`
	Knowledge          []knowledgeDraft `json:"knowledge"`
	Items              []itemDraft      `json:"items"`

	// Narrative-plan linkage, matched by objective description.
	LeafObjectives     []string `json:"leaf_objectives"`
	AcquisitionMethods []string `json:"acquisition_methods"`
	Required           bool     `json:"required"`
}

const systemPrompt = "You are a campaign content designer. " +
	"Respond with JSON only, matching the requested shape exactly."

// --- nodes ---

func (w *GenerationWorkflow) initialize(ctx context.Context, st *engine.State[Content]) *engine.State[Content] {
	st.Phase = "initialize"
	req := st.Content.Request

	if err := generator.ValidateOutput(&req); err != nil {
		st.AddError(err)
		return st
	}

	world, err := w.store.GetWorld(ctx, req.WorldID)
	if err != nil {
		st.AddError(err)
		return st
	}
	st.Content.World = world

	tops := make([]cascade.TopObjective, 0, len(req.Objectives))
	for _, desc := range req.Objectives {
		tops = append(tops, cascade.TopObjective{ID: types.NewID(), Description: desc})
	}
	st.Content.Objectives = tops

	w.logger.Info("generation initialized",
		"instance_id", st.InstanceID,
		"world_id", world.ID,
		"num_quests", req.NumQuests,
		"objectives", len(tops))
	return st
}

func (w *GenerationWorkflow) generateCore(ctx context.Context, st *engine.State[Content]) *engine.State[Content] {
	st.Phase = PhaseCore

	var draft coreDraft
	err := w.gen.GenerateInto(ctx, generator.Request{
		System: systemPrompt,
		Prompt: fmt.Sprintf(
			"Design the core of a campaign set in the world %q.\n"+
				"Premise: %s\n"+
				"Top-level objectives:\n%s\n"+
				"Return JSON: {\"name\": ..., \"synopsis\": ..., \"narrative_beats\": [...]}",
			st.Content.World.Name,
			st.Content.Request.Premise,
			bulleted(st.Content.Request.Objectives)),
	}, &draft)
	if err != nil {
		st.AddError(err)
		return st
	}

	st.Content.Campaign = &Campaign{
		ID:         types.NewID(),
		WorldID:    st.Content.Request.WorldID,
		Name:       draft.Name,
		Synopsis:   draft.Synopsis,
		Plan:       &Plan{NarrativeBeats: draft.NarrativeBeats},
		Objectives: st.Content.Objectives,
	}
	st.CampaignID = st.Content.Campaign.ID

	st.AddError(st.CreateCheckpoint(PhaseCore))
	return st
}

// reviewCore parks the instance until a human approves or rejects the core
// draft. Re-entered on resume; proceeds once the decision flag is set.
func (w *GenerationWorkflow) reviewCore(ctx context.Context, st *engine.State[Content]) *engine.State[Content] {
	if st.Decision(DecisionCoreReview) == engine.DecisionPending {
		st.AwaitDecision(DecisionCoreReview,
			fmt.Sprintf("review campaign core %q before quest generation", st.Content.Campaign.Name))
	}
	return st
}

func (w *GenerationWorkflow) generateQuests(ctx context.Context, st *engine.State[Content]) *engine.State[Content] {
	st.Phase = PhaseStructure

	var drafts []questDraft
	err := w.gen.GenerateInto(ctx, generator.Request{
		System: systemPrompt,
		Prompt: fmt.Sprintf(
			"Design exactly %d quests for the campaign %q.\nSynopsis: %s\n"+
				"Return a JSON array of {\"number\", \"name\", \"synopsis\"} with numbers 1..%d.",
			st.Content.Request.NumQuests,
			st.Content.Campaign.Name,
			st.Content.Campaign.Synopsis,
			st.Content.Request.NumQuests),
	}, &drafts)
	if err != nil {
		st.AddError(err)
		return st
	}
	if len(drafts) != st.Content.Request.NumQuests {
		st.AddError(types.NewRetryableError(types.GEN_INVALID_OUTPUT,
			fmt.Sprintf("expected %d quests, got %d", st.Content.Request.NumQuests, len(drafts))))
		return st
	}

	quests := make([]Quest, 0, len(drafts))
	for _, d := range drafts {
		quests = append(quests, Quest{
			ID:         types.NewID(),
			CampaignID: st.CampaignID,
			Number:     d.Number,
			Name:       d.Name,
			Synopsis:   d.Synopsis,
		})
	}
	st.Content.Quests = quests
	return st
}

func (w *GenerationWorkflow) decomposeObjectives(ctx context.Context, st *engine.State[Content]) *engine.State[Content] {
	st.Phase = PhaseStructure

	decomps, err := w.decompose.Decompose(ctx, st.Content.Objectives, st.Content.Request.NumQuests)
	if err != nil {
		st.AddError(err)
		return st
	}
	st.Content.Decompositions = decomps

	st.AddError(st.CreateCheckpoint(PhaseStructure))
	return st
}

func (w *GenerationWorkflow) generatePlaces(ctx context.Context, st *engine.State[Content]) *engine.State[Content] {
	st.Phase = PhaseContent

	var drafts []placeDraft
	err := w.gen.GenerateInto(ctx, generator.Request{
		System: systemPrompt,
		Prompt: fmt.Sprintf(
			"Design 1-3 places for each of these quests:\n%s\n"+
				"Return a JSON array of {\"quest_number\", \"name\"}.",
			questList(st.Content.Quests)),
	}, &drafts)
	if err != nil {
		st.AddError(err)
		return st
	}

	byNumber := make(map[int]*Quest, len(st.Content.Quests))
	for i := range st.Content.Quests {
		byNumber[st.Content.Quests[i].Number] = &st.Content.Quests[i]
	}

	places := make([]Place, 0, len(drafts))
	for _, d := range drafts {
		quest, ok := byNumber[d.QuestNumber]
		if !ok {
			st.AddWarning(fmt.Sprintf("place %q references unknown quest %d, skipped", d.Name, d.QuestNumber))
			continue
		}
		place := Place{
			ID:         types.NewID(),
			QuestID:    quest.ID,
			CampaignID: st.CampaignID,
			Name:       d.Name,
		}
		quest.PlaceIDs = append(quest.PlaceIDs, place.ID)
		places = append(places, place)
	}
	if len(places) == 0 {
		st.AddError(types.NewRetryableError(types.GEN_INVALID_OUTPUT, "no usable places generated"))
		return st
	}
	st.Content.Places = places
	return st
}

func (w *GenerationWorkflow) generateScenes(ctx context.Context, st *engine.State[Content]) *engine.State[Content] {
	st.Phase = PhaseContent

	var drafts []sceneDraft
	err := w.gen.GenerateInto(ctx, generator.Request{
		System: systemPrompt,
		Prompt: fmt.Sprintf(
			"Design 1-3 scenes per place for these places:\n%s\n"+
				"Leaf objectives to advance (reference them verbatim in leaf_objectives):\n%s\n"+
				"Return a JSON array of {\"place_name\", \"name\", \"narrative\", "+
				"\"completion_criteria\", \"knowledge\", \"items\", \"leaf_objectives\", "+
				"\"acquisition_methods\", \"required\"}.",
			placeList(st.Content.Places),
			leafList(st.Content.Decompositions)),
	}, &drafts)
	if err != nil {
		st.AddError(err)
		return st
	}

	byName := make(map[string]*Place, len(st.Content.Places))
	for i := range st.Content.Places {
		byName[strings.ToLower(strings.TrimSpace(st.Content.Places[i].Name))] = &st.Content.Places[i]
	}

	var scenes []Scene
	var knowledge []KnowledgeEntity
	var items []ItemEntity
	var plan []cascade.PlanEntry

	for _, d := range drafts {
		place, ok := byName[strings.ToLower(strings.TrimSpace(d.PlaceName))]
		if !ok {
			st.AddWarning(fmt.Sprintf("scene %q references unknown place %q, skipped", d.Name, d.PlaceName))
			continue
		}

		scene := Scene{
			ID:                 types.NewID(),
			PlaceID:            place.ID,
			CampaignID:         st.CampaignID,
			Name:               d.Name,
			Narrative:          d.Narrative,
			CompletionCriteria: d.CompletionCriteria,
		}
		place.SceneIDs = append(place.SceneIDs, scene.ID)

		entry := cascade.PlanEntry{
			SceneName:          d.Name,
			LeafObjectives:     d.LeafObjectives,
			AcquisitionMethods: d.AcquisitionMethods,
			Required:           d.Required,
		}

		for _, k := range d.Knowledge {
			ent := KnowledgeEntity{
				ID:                 types.NewID(),
				CampaignID:         st.CampaignID,
				SceneID:            scene.ID,
				Domain:             k.Domain,
				MasteryCeiling:     k.MasteryCeiling,
				AcquisitionMethods: k.AcquisitionMethods,
				QuestCritical:      k.QuestCritical,
			}
			scene.KnowledgeIDs = append(scene.KnowledgeIDs, ent.ID)
			knowledge = append(knowledge, ent)
			entry.KnowledgeProvided = append(entry.KnowledgeProvided, cascade.KnowledgeGrant{
				Domain:         k.Domain,
				MasteryCeiling: k.MasteryCeiling,
			})
		}
		for _, it := range d.Items {
			ent := ItemEntity{
				ID:                 types.NewID(),
				CampaignID:         st.CampaignID,
				SceneID:            scene.ID,
				Category:           it.Category,
				Quantity:           it.Quantity,
				AcquisitionMethods: it.AcquisitionMethods,
				QuestCritical:      it.QuestCritical,
			}
			scene.ItemIDs = append(scene.ItemIDs, ent.ID)
			items = append(items, ent)
			entry.ItemsProvided = append(entry.ItemsProvided, cascade.ItemGrant{
				Category: it.Category,
				Quantity: it.Quantity,
			})
		}

		scenes = append(scenes, scene)
		plan = append(plan, entry)
	}

	if len(scenes) == 0 {
		st.AddError(types.NewRetryableError(types.GEN_INVALID_OUTPUT, "no usable scenes generated"))
		return st
	}

	st.Content.Scenes = scenes
	st.Content.Knowledge = knowledge
	st.Content.Items = items
	st.Content.NarrativePlan = plan

	st.AddError(st.CreateCheckpoint(PhaseContent))
	return st
}

func (w *GenerationWorkflow) assignObjectives(ctx context.Context, st *engine.State[Content]) *engine.State[Content] {
	st.Phase = PhaseContent

	refs := make([]cascade.SceneRef, 0, len(st.Content.Scenes))
	for _, sc := range st.Content.Scenes {
		refs = append(refs, cascade.SceneRef{ID: sc.ID, Name: sc.Name})
	}

	assignments := cascade.Assign(refs, st.Content.Decompositions, st.Content.NarrativePlan)
	st.Content.Assignments = assignments

	byScene := make(map[types.ID]int, len(assignments))
	for i, a := range assignments {
		byScene[a.SceneID] = i
	}
	for i := range st.Content.Scenes {
		if idx, ok := byScene[st.Content.Scenes[i].ID]; ok {
			st.Content.Scenes[i].Assignment = &st.Content.Assignments[idx]
		}
	}
	return st
}

func (w *GenerationWorkflow) validateContent(ctx context.Context, st *engine.State[Content]) *engine.State[Content] {
	st.Phase = "validate"

	var missing []types.ID
	for _, sc := range st.Content.Scenes {
		if len(sc.CompletionCriteria) == 0 {
			missing = append(missing, sc.ID)
		}
	}

	report := cascade.Validate(cascade.Input{
		NumQuests:             st.Content.Request.NumQuests,
		Decompositions:        st.Content.Decompositions,
		Assignments:           st.Content.Assignments,
		Knowledge:             entityInfos(st.Content.Knowledge),
		Items:                 itemInfos(st.Content.Items),
		ScenesMissingCriteria: missing,
	})
	st.Content.Report = report

	for _, f := range report.Errors {
		st.AddWarning("validation critical: " + f.Message)
	}
	if !report.Passed {
		st.AddError(types.NewError(types.GEN_INVALID_OUTPUT,
			fmt.Sprintf("content validation failed with %d critical finding(s)", len(report.Errors))))
	}
	return st
}

// finalize persists the content tree to the document store, then mirrors it
// into the graph store. Graph failures degrade to warnings; the document
// store is the source of truth.
func (w *GenerationWorkflow) finalize(ctx context.Context, st *engine.State[Content]) *engine.State[Content] {
	st.Phase = "finalize"

	c := st.Content.Campaign
	c.Plan.QuestIDs = nil
	for _, q := range st.Content.Quests {
		c.Plan.QuestIDs = append(c.Plan.QuestIDs, q.ID)
	}

	if _, err := w.store.InsertCampaign(ctx, c); err != nil {
		st.AddError(err)
		return st
	}
	for i := range st.Content.Quests {
		if _, err := w.store.InsertQuest(ctx, &st.Content.Quests[i]); err != nil {
			st.AddError(err)
			return st
		}
	}
	for i := range st.Content.Places {
		if _, err := w.store.InsertPlace(ctx, &st.Content.Places[i]); err != nil {
			st.AddError(err)
			return st
		}
	}
	for i := range st.Content.Scenes {
		if _, err := w.store.InsertScene(ctx, &st.Content.Scenes[i]); err != nil {
			st.AddError(err)
			return st
		}
	}
	for i := range st.Content.Knowledge {
		if _, err := w.store.InsertKnowledge(ctx, &st.Content.Knowledge[i]); err != nil {
			st.AddError(err)
			return st
		}
	}
	for i := range st.Content.Items {
		if _, err := w.store.InsertItem(ctx, &st.Content.Items[i]); err != nil {
			st.AddError(err)
			return st
		}
	}

	if w.graph == nil {
		st.AddWarning("graph store not configured, skipping graph sync")
		return st
	}
	if err := w.graph.SyncContent(ctx, &st.Content); err != nil {
		st.AddWarning("graph sync failed: " + err.Error())
		w.logger.Warn("graph sync failed after document writes",
			"campaign_id", st.CampaignID, "error", err)
	}
	return st
}

// --- prompt helpers ---

func bulleted(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}

func questList(quests []Quest) string {
	var b strings.Builder
	for _, q := range quests {
		fmt.Fprintf(&b, "- quest %d: %s\n", q.Number, q.Name)
	}
	return b.String()
}

func placeList(places []Place) string {
	var b strings.Builder
	for _, p := range places {
		fmt.Fprintf(&b, "- %s\n", p.Name)
	}
	return b.String()
}

func leafList(decomps []cascade.Decomposition) string {
	var b strings.Builder
	for _, d := range decomps {
		for _, leaf := range d.Leaves {
			fmt.Fprintf(&b, "- quest %d: %s\n", leaf.QuestNumber, leaf.Description)
		}
	}
	return b.String()
}

func entityInfos(entities []KnowledgeEntity) []cascade.EntityInfo {
	out := make([]cascade.EntityInfo, 0, len(entities))
	for _, e := range entities {
		out = append(out, cascade.EntityInfo{
			ID:                 e.ID,
			Name:               e.Domain,
			AcquisitionMethods: e.AcquisitionMethods,
			QuestCritical:      e.QuestCritical,
		})
	}
	return out
}

func itemInfos(entities []ItemEntity) []cascade.EntityInfo {
	out := make([]cascade.EntityInfo, 0, len(entities))
	for _, e := range entities {
		out = append(out, cascade.EntityInfo{
			ID:                 e.ID,
			Name:               e.Category,
			AcquisitionMethods: e.AcquisitionMethods,
			QuestCritical:      e.QuestCritical,
		})
	}
	return out
}
