package cascade

import (
	"strings"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// SceneRef identifies a generated scene by id and narrative-plan name.
type SceneRef struct {
	ID   types.ID
	Name string
}

// PlanEntry is one narrative-plan line: a scene name plus the leaf
// objectives (by description) the plan says that scene advances, and the
// resources it provides.
type PlanEntry struct {
	SceneName          string           `json:"scene_name"`
	LeafObjectives     []string         `json:"leaf_objectives"`
	KnowledgeProvided  []KnowledgeGrant `json:"knowledge_provided"`
	ItemsProvided      []ItemGrant      `json:"items_provided"`
	AcquisitionMethods []string         `json:"acquisition_methods"`
	Required           bool             `json:"required"`
}

// Assign links scenes to the leaf objectives they advance using
// narrative-plan name matching. Scene and objective matching is
// case-insensitive and tolerant of surrounding whitespace; an entry whose
// scene name matches no generated scene is skipped (validation will flag
// the resulting coverage gap).
//
// The Redundant flag is set on any assignment whose every advanced leaf is
// already advanced by an earlier scene.
func Assign(scenes []SceneRef, decomps []Decomposition, plan []PlanEntry) []SceneAssignment {
	sceneByName := make(map[string]types.ID, len(scenes))
	for _, s := range scenes {
		sceneByName[normalize(s.Name)] = s.ID
	}

	leafByDescription := make(map[string]types.ID)
	for _, d := range decomps {
		for _, leaf := range d.Leaves {
			leafByDescription[normalize(leaf.Description)] = leaf.ID
		}
	}

	advancedSoFar := types.NewIDSet()
	assignments := make([]SceneAssignment, 0, len(plan))

	for _, entry := range plan {
		sceneID, ok := sceneByName[normalize(entry.SceneName)]
		if !ok {
			continue
		}

		assignment := SceneAssignment{
			SceneID:            sceneID,
			KnowledgeProvided:  entry.KnowledgeProvided,
			ItemsProvided:      entry.ItemsProvided,
			AcquisitionMethods: entry.AcquisitionMethods,
			Required:           entry.Required,
		}

		newCoverage := false
		for _, desc := range entry.LeafObjectives {
			leafID, ok := matchLeaf(leafByDescription, desc)
			if !ok {
				continue
			}
			assignment.AdvancesLeaves = append(assignment.AdvancesLeaves, leafID)
			if !advancedSoFar.Contains(leafID) {
				newCoverage = true
			}
		}

		assignment.Redundant = len(assignment.AdvancesLeaves) > 0 && !newCoverage
		for _, leafID := range assignment.AdvancesLeaves {
			advancedSoFar.Add(leafID)
		}

		assignments = append(assignments, assignment)
	}

	return assignments
}

// matchLeaf resolves a plan's objective description to a leaf id, first by
// exact normalized match, then by substring containment in either
// direction. Plans paraphrase objectives often enough that exact matching
// alone drops real links.
func matchLeaf(leafByDescription map[string]types.ID, desc string) (types.ID, bool) {
	norm := normalize(desc)
	if id, ok := leafByDescription[norm]; ok {
		return id, true
	}
	for stored, id := range leafByDescription {
		if strings.Contains(stored, norm) || strings.Contains(norm, stored) {
			return id, true
		}
	}
	return "", false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
