// Package campaign defines the campaign content model stored in the
// document store (the single source of truth) and assembles the
// generation workflow that produces it.
//
// Containment: Campaign -> Quest -> Place -> Scene -> knowledge/item
// entities. Species and Locations are world-scoped shared entities: a
// campaign may create them, but other campaigns may come to depend on
// them, which is why deletion recomputes dependents before touching them.
package campaign

import (
	"time"

	"github.com/BillClerici/skill-forge-sub000/internal/cascade"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Collection names in the document store.
const (
	CollWorlds     = "worlds"
	CollCampaigns  = "campaigns"
	CollQuests     = "quests"
	CollPlaces     = "places"
	CollScenes     = "scenes"
	CollKnowledge  = "knowledge_entities"
	CollItems      = "item_entities"
	CollSpecies    = "species"
	CollLocations  = "locations"
	CollCharacters = "characters"
	CollAudits     = "deletion_audits"
)

// World is the setting shared by campaigns. Worlds are never deleted by
// the deletion coordinator; only campaign-created content under them is.
type World struct {
	ID         types.ID   `bson:"_id" json:"id"`
	Name       string     `bson:"name" json:"name"`
	SpeciesIDs []types.ID `bson:"species_ids" json:"species_ids"`
}

// Plan is the current-generation campaign layout: quest ids live on a
// plan subdocument instead of inline on the campaign.
type Plan struct {
	QuestIDs       []types.ID `bson:"quest_ids" json:"quest_ids"`
	NarrativeBeats []string   `bson:"narrative_beats,omitempty" json:"narrative_beats,omitempty"`
}

// Campaign is the root record of one generated content unit.
//
// Two schema generations coexist in production data: legacy documents
// carry QuestIDs inline, current documents carry them on Plan. Readers
// must handle both; AllQuestIDs hides the difference.
type Campaign struct {
	ID       types.ID `bson:"_id" json:"id"`
	WorldID  types.ID `bson:"world_id" json:"world_id"`
	Name     string   `bson:"name" json:"name"`
	Synopsis string   `bson:"synopsis,omitempty" json:"synopsis,omitempty"`

	// QuestIDs is the legacy layout. Empty on current documents.
	QuestIDs []types.ID `bson:"quest_ids,omitempty" json:"quest_ids,omitempty"`

	// Plan is the current layout. Nil on legacy documents.
	Plan *Plan `bson:"plan,omitempty" json:"plan,omitempty"`

	// CreatedSpeciesIDs and CreatedLocationIDs track shared entities this
	// campaign created. Only self-created entities are deletion candidates.
	CreatedSpeciesIDs  []types.ID `bson:"created_species_ids,omitempty" json:"created_species_ids,omitempty"`
	CreatedLocationIDs []types.ID `bson:"created_location_ids,omitempty" json:"created_location_ids,omitempty"`

	Objectives []cascade.TopObjective `bson:"objectives,omitempty" json:"objectives,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Legacy reports whether the document uses the legacy inline-quest layout.
func (c *Campaign) Legacy() bool {
	return c.Plan == nil
}

// AllQuestIDs returns the campaign's quest ids regardless of schema
// generation.
func (c *Campaign) AllQuestIDs() []types.ID {
	if c.Plan != nil {
		return c.Plan.QuestIDs
	}
	return c.QuestIDs
}

// Quest is one chapter of a campaign.
type Quest struct {
	ID         types.ID   `bson:"_id" json:"id"`
	CampaignID types.ID   `bson:"campaign_id" json:"campaign_id"`
	Number     int        `bson:"number" json:"number"`
	Name       string     `bson:"name" json:"name"`
	Synopsis   string     `bson:"synopsis,omitempty" json:"synopsis,omitempty"`
	PlaceIDs   []types.ID `bson:"place_ids,omitempty" json:"place_ids,omitempty"`
}

// Place is a setting within a quest, optionally anchored to a shared
// world location.
type Place struct {
	ID         types.ID   `bson:"_id" json:"id"`
	QuestID    types.ID   `bson:"quest_id" json:"quest_id"`
	CampaignID types.ID   `bson:"campaign_id" json:"campaign_id"`
	Name       string     `bson:"name" json:"name"`
	LocationID types.ID   `bson:"location_id,omitempty" json:"location_id,omitempty"`
	SceneIDs   []types.ID `bson:"scene_ids,omitempty" json:"scene_ids,omitempty"`
}

// Scene is a playable unit within a place. Leaf knowledge/item entities
// hang off scenes.
type Scene struct {
	ID                 types.ID                 `bson:"_id" json:"id"`
	PlaceID            types.ID                 `bson:"place_id" json:"place_id"`
	CampaignID         types.ID                 `bson:"campaign_id" json:"campaign_id"`
	Name               string                   `bson:"name" json:"name"`
	Narrative          string                   `bson:"narrative,omitempty" json:"narrative,omitempty"`
	CompletionCriteria []string                 `bson:"completion_criteria,omitempty" json:"completion_criteria,omitempty"`
	Assignment         *cascade.SceneAssignment `bson:"assignment,omitempty" json:"assignment,omitempty"`
	KnowledgeIDs       []types.ID               `bson:"knowledge_ids,omitempty" json:"knowledge_ids,omitempty"`
	ItemIDs            []types.ID               `bson:"item_ids,omitempty" json:"item_ids,omitempty"`
}

// KnowledgeEntity is a knowledge domain a scene can teach.
type KnowledgeEntity struct {
	ID                 types.ID `bson:"_id" json:"id"`
	CampaignID         types.ID `bson:"campaign_id" json:"campaign_id"`
	SceneID            types.ID `bson:"scene_id,omitempty" json:"scene_id,omitempty"`
	Domain             string   `bson:"domain" json:"domain"`
	MasteryCeiling     int      `bson:"mastery_ceiling" json:"mastery_ceiling"`
	AcquisitionMethods []string `bson:"acquisition_methods,omitempty" json:"acquisition_methods,omitempty"`
	QuestCritical      bool     `bson:"quest_critical" json:"quest_critical"`
}

// ItemEntity is an item category a scene can yield.
type ItemEntity struct {
	ID                 types.ID `bson:"_id" json:"id"`
	CampaignID         types.ID `bson:"campaign_id" json:"campaign_id"`
	SceneID            types.ID `bson:"scene_id,omitempty" json:"scene_id,omitempty"`
	Category           string   `bson:"category" json:"category"`
	Quantity           int      `bson:"quantity" json:"quantity"`
	AcquisitionMethods []string `bson:"acquisition_methods,omitempty" json:"acquisition_methods,omitempty"`
	QuestCritical      bool     `bson:"quest_critical" json:"quest_critical"`
}

// Species is a world-scoped shared entity. CreatedByCampaignID records the
// creating campaign; dependents are always recomputed at deletion time,
// never trusted from creation time.
type Species struct {
	ID                  types.ID `bson:"_id" json:"id"`
	WorldID             types.ID `bson:"world_id" json:"world_id"`
	Name                string   `bson:"name" json:"name"`
	CreatedByCampaignID types.ID `bson:"created_by_campaign_id,omitempty" json:"created_by_campaign_id,omitempty"`
}

// Location is a world-scoped shared place in a containment hierarchy:
// level 1 is a root region, deeper levels nest via ParentID.
type Location struct {
	ID                  types.ID `bson:"_id" json:"id"`
	WorldID             types.ID `bson:"world_id" json:"world_id"`
	Name                string   `bson:"name" json:"name"`
	Level               int      `bson:"level" json:"level"`
	ParentID            types.ID `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	CreatedByCampaignID types.ID `bson:"created_by_campaign_id,omitempty" json:"created_by_campaign_id,omitempty"`
}

// Character is a player or non-player character. Characters referencing a
// species keep that species alive across campaign deletions.
type Character struct {
	ID         types.ID `bson:"_id" json:"id"`
	CampaignID types.ID `bson:"campaign_id" json:"campaign_id"`
	SpeciesID  types.ID `bson:"species_id,omitempty" json:"species_id,omitempty"`
	Name       string   `bson:"name" json:"name"`
}

// CategoryOutcome summarizes one content category in a deletion audit.
type CategoryOutcome struct {
	Deleted  int      `bson:"deleted" json:"deleted"`
	Retained int      `bson:"retained" json:"retained"`
	Reasons  []string `bson:"reasons,omitempty" json:"reasons,omitempty"`
}

// DeletionAudit is the single audit document written when a deletion
// workflow finalizes. Success reflects only the primary-store cascade;
// warnings carry everything else.
type DeletionAudit struct {
	ID         types.ID                   `bson:"_id" json:"id"`
	CampaignID types.ID                   `bson:"campaign_id" json:"campaign_id"`
	InstanceID types.ID                   `bson:"instance_id" json:"instance_id"`
	StartedAt  time.Time                  `bson:"started_at" json:"started_at"`
	FinishedAt time.Time                  `bson:"finished_at" json:"finished_at"`
	Success    bool                       `bson:"success" json:"success"`
	Warnings   []string                   `bson:"warnings,omitempty" json:"warnings,omitempty"`
	Categories map[string]CategoryOutcome `bson:"categories" json:"categories"`
}
