// Package cascade implements the objective cascade: decomposition of
// top-level campaign objectives into quest-level leaf objectives, assignment
// of leaf objectives to generated scenes, and validation that every
// objective is reachable and redundantly satisfiable through content.
package cascade

import (
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// TopObjective is a high-level campaign goal supplied before generation.
type TopObjective struct {
	ID          types.ID `json:"id" bson:"id"`
	Description string   `json:"description" bson:"description"`
}

// LeafObjective is a quest-level objective produced by decomposition.
// Every leaf traces to exactly one top-level objective via ParentID.
type LeafObjective struct {
	ID          types.ID `json:"id" bson:"id"`
	ParentID    types.ID `json:"parent_id" bson:"parent_id"`
	QuestNumber int      `json:"quest_number" bson:"quest_number"`
	Description string   `json:"description" bson:"description"`

	// KnowledgeTags and ItemTags are free-text requirement labels matched
	// to concrete knowledge/item entities after generation.
	KnowledgeTags []string `json:"knowledge_tags" bson:"knowledge_tags"`
	ItemTags      []string `json:"item_tags" bson:"item_tags"`

	// MinCoverage is the minimum number of distinct scenes that should
	// advance this leaf objective.
	MinCoverage int `json:"min_coverage" bson:"min_coverage"`
}

// Decomposition records one top-level objective broken into leaf objectives,
// plus the union of child requirement tags for coverage reporting.
type Decomposition struct {
	TopObjectiveID types.ID        `json:"top_objective_id" bson:"top_objective_id"`
	Leaves         []LeafObjective `json:"leaves" bson:"leaves"`
	KnowledgeTags  []string        `json:"knowledge_tags" bson:"knowledge_tags"`
	ItemTags       []string        `json:"item_tags" bson:"item_tags"`

	// RequiredQuestCoverage is how many distinct quests the leaves should
	// span before validation stops warning about thin coverage.
	RequiredQuestCoverage int `json:"required_quest_coverage" bson:"required_quest_coverage"`
}

// QuestNumbers returns the distinct quest numbers covered by the
// decomposition's leaves, in no particular order.
func (d Decomposition) QuestNumbers() []int {
	seen := make(map[int]struct{}, len(d.Leaves))
	for _, leaf := range d.Leaves {
		seen[leaf.QuestNumber] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}

// KnowledgeGrant is a knowledge domain a scene provides, capped at a
// mastery ceiling.
type KnowledgeGrant struct {
	Domain         string `json:"domain" bson:"domain"`
	MasteryCeiling int    `json:"mastery_ceiling" bson:"mastery_ceiling"`
}

// ItemGrant is an item category a scene provides, with a quantity.
type ItemGrant struct {
	Category string `json:"category" bson:"category"`
	Quantity int    `json:"quantity" bson:"quantity"`
}

// SceneAssignment links one scene to the leaf objectives it advances and
// the resources it provides. Advancement of a top-level objective is always
// derived (see AdvancedTopObjectives), never stored.
type SceneAssignment struct {
	SceneID            types.ID         `json:"scene_id" bson:"scene_id"`
	AdvancesLeaves     []types.ID       `json:"advances_leaves" bson:"advances_leaves"`
	KnowledgeProvided  []KnowledgeGrant `json:"knowledge_provided" bson:"knowledge_provided"`
	ItemsProvided      []ItemGrant      `json:"items_provided" bson:"items_provided"`
	AcquisitionMethods []string         `json:"acquisition_methods" bson:"acquisition_methods"`

	// Required marks scenes the player cannot skip.
	Required bool `json:"required" bson:"required"`

	// Redundant marks scenes that only duplicate coverage another scene
	// already provides.
	Redundant bool `json:"redundant" bson:"redundant"`
}

// AdvancedTopObjectives derives the top-level objectives a scene advances:
// a top-level objective is advanced iff the scene advances at least one of
// its leaf children. The result is computed on demand so it can never drift
// from the leaf assignments.
func (a SceneAssignment) AdvancedTopObjectives(decomps []Decomposition) []types.ID {
	advanced := types.NewIDSet()
	leafSet := types.NewIDSet(a.AdvancesLeaves...)

	for _, d := range decomps {
		for _, leaf := range d.Leaves {
			if leafSet.Contains(leaf.ID) {
				advanced.Add(d.TopObjectiveID)
				break
			}
		}
	}

	return advanced.Slice()
}

// EntityInfo describes a knowledge or item entity for validation: how many
// independent acquisition paths exist and whether the entity is
// quest-critical (redundancy factor >= 2 expected).
type EntityInfo struct {
	ID                 types.ID `json:"id"`
	Name               string   `json:"name"`
	AcquisitionMethods []string `json:"acquisition_methods"`
	QuestCritical      bool     `json:"quest_critical"`
}
