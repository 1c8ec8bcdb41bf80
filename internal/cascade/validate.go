package cascade

import (
	"fmt"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Severity grades a validation finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityLow      Severity = "low"
)

// FindingType identifies a class of validation finding. Each type maps to
// exactly one recommended auto-fix action.
type FindingType string

const (
	FindingQuestNumberOutOfRange FindingType = "quest_number_out_of_range"
	FindingObjectiveUncovered    FindingType = "objective_uncovered"
	FindingObjectiveThinCoverage FindingType = "objective_thin_coverage"
	FindingObjectiveUnreachable  FindingType = "objective_unreachable"
	FindingObjectiveSingleScene  FindingType = "objective_single_scene"
	FindingNoAcquisition         FindingType = "entity_no_acquisition"
	FindingSingleAcquisition     FindingType = "entity_single_acquisition"
	FindingMissingCriteria       FindingType = "missing_completion_criteria"
)

// Finding is one validation error or warning, with the ids it affects.
type Finding struct {
	Type        FindingType `json:"type"`
	Severity    Severity    `json:"severity"`
	Message     string      `json:"message"`
	AffectedIDs []types.ID  `json:"affected_ids"`
}

// Suggestion is the fixed recommended action for one finding type, for an
// optional downstream auto-fix pass. Priority 1 is most urgent.
type Suggestion struct {
	FindingType FindingType `json:"finding_type"`
	Action      string      `json:"action"`
	Priority    int         `json:"priority"`
	AffectedIDs []types.ID  `json:"affected_ids"`
}

// Report is the full validation result. Validation never mutates content;
// critical errors block finalization, warnings do not.
type Report struct {
	Errors      []Finding      `json:"errors"`
	Warnings    []Finding      `json:"warnings"`
	Stats       map[string]int `json:"stats"`
	Suggestions []Suggestion   `json:"auto_fix_suggestions"`
	Passed      bool           `json:"validation_passed"`
}

// RedundancyWarnings returns the warnings that flag single-path coverage
// (one advancing scene, or one acquisition method on a critical entity).
func (r *Report) RedundancyWarnings() []Finding {
	var out []Finding
	for _, w := range r.Warnings {
		if w.Type == FindingObjectiveSingleScene || w.Type == FindingSingleAcquisition {
			out = append(out, w)
		}
	}
	return out
}

// Input carries everything validation inspects.
type Input struct {
	NumQuests      int
	Decompositions []Decomposition
	Assignments    []SceneAssignment
	Knowledge      []EntityInfo
	Items          []EntityInfo

	// ScenesMissingCriteria lists scenes with no completion criteria.
	// These only ever produce low-severity warnings.
	ScenesMissingCriteria []types.ID
}

// Validate runs the full post-generation coverage, reachability, and
// acquisition analysis. It is pure: the same input always yields the same
// report and nothing is mutated.
func Validate(in Input) *Report {
	r := &Report{
		Stats: make(map[string]int),
	}

	validateCoverage(in, r)
	validateReachability(in, r)
	validateAcquisition(in, r)

	if len(in.ScenesMissingCriteria) > 0 {
		r.addFinding(Finding{
			Type:     FindingMissingCriteria,
			Severity: SeverityLow,
			Message: fmt.Sprintf("%d scene(s) have no completion criteria",
				len(in.ScenesMissingCriteria)),
			AffectedIDs: in.ScenesMissingCriteria,
		})
	}

	r.Stats["decompositions"] = len(in.Decompositions)
	r.Stats["scene_assignments"] = len(in.Assignments)
	r.Stats["knowledge_entities"] = len(in.Knowledge)
	r.Stats["item_entities"] = len(in.Items)
	r.Stats["errors"] = len(r.Errors)
	r.Stats["warnings"] = len(r.Warnings)

	// Low-severity findings never block finalization.
	r.Passed = len(r.Errors) == 0

	return r
}

// validateCoverage checks each decomposition spans enough distinct quests
// and that every leaf quest number lies within [1, NumQuests].
func validateCoverage(in Input, r *Report) {
	for _, d := range in.Decompositions {
		var outOfRange []types.ID
		for _, leaf := range d.Leaves {
			if leaf.QuestNumber < 1 || leaf.QuestNumber > in.NumQuests {
				outOfRange = append(outOfRange, leaf.ID)
			}
		}
		if len(outOfRange) > 0 {
			r.addFinding(Finding{
				Type:     FindingQuestNumberOutOfRange,
				Severity: SeverityCritical,
				Message: fmt.Sprintf("objective %s has leaf objectives referencing quests outside [1, %d]",
					d.TopObjectiveID, in.NumQuests),
				AffectedIDs: outOfRange,
			})
		}

		covered := len(d.QuestNumbers())
		required := d.RequiredQuestCoverage
		if required < 1 {
			required = 1
		}

		switch {
		case covered == 0:
			r.addFinding(Finding{
				Type:        FindingObjectiveUncovered,
				Severity:    SeverityCritical,
				Message:     fmt.Sprintf("objective %s is mapped to no quests", d.TopObjectiveID),
				AffectedIDs: []types.ID{d.TopObjectiveID},
			})
		case covered < required:
			r.addFinding(Finding{
				Type:     FindingObjectiveThinCoverage,
				Severity: SeverityWarning,
				Message: fmt.Sprintf("objective %s spans %d quest(s), expected %d",
					d.TopObjectiveID, covered, required),
				AffectedIDs: []types.ID{d.TopObjectiveID},
			})
		}
	}
}

// validateReachability checks every leaf objective is advanced by at least
// one scene, and warns when exactly one scene advances it (no redundancy).
func validateReachability(in Input, r *Report) {
	advancingScenes := make(map[types.ID]int)
	for _, a := range in.Assignments {
		seen := types.NewIDSet()
		for _, leafID := range a.AdvancesLeaves {
			if seen.Contains(leafID) {
				continue
			}
			seen.Add(leafID)
			advancingScenes[leafID]++
		}
	}

	for _, d := range in.Decompositions {
		for _, leaf := range d.Leaves {
			switch advancingScenes[leaf.ID] {
			case 0:
				r.addFinding(Finding{
					Type:     FindingObjectiveUnreachable,
					Severity: SeverityCritical,
					Message: fmt.Sprintf("leaf objective %q (quest %d) is not advanced by any scene",
						leaf.Description, leaf.QuestNumber),
					AffectedIDs: []types.ID{leaf.ID},
				})
			case 1:
				r.addFinding(Finding{
					Type:     FindingObjectiveSingleScene,
					Severity: SeverityWarning,
					Message: fmt.Sprintf("leaf objective %q has a single advancing scene, no redundancy",
						leaf.Description),
					AffectedIDs: []types.ID{leaf.ID},
				})
			}
		}
	}
}

// validateAcquisition checks every knowledge/item entity has at least one
// acquisition method, and that quest-critical entities have at least two
// (redundancy factor 2).
func validateAcquisition(in Input, r *Report) {
	check := func(entities []EntityInfo, kind string) {
		for _, e := range entities {
			switch {
			case len(e.AcquisitionMethods) == 0:
				r.addFinding(Finding{
					Type:        FindingNoAcquisition,
					Severity:    SeverityCritical,
					Message:     fmt.Sprintf("%s entity %q has no acquisition method", kind, e.Name),
					AffectedIDs: []types.ID{e.ID},
				})
			case e.QuestCritical && len(e.AcquisitionMethods) == 1:
				r.addFinding(Finding{
					Type:        FindingSingleAcquisition,
					Severity:    SeverityWarning,
					Message:     fmt.Sprintf("quest-critical %s entity %q has a single acquisition method", kind, e.Name),
					AffectedIDs: []types.ID{e.ID},
				})
			}
		}
	}

	check(in.Knowledge, "knowledge")
	check(in.Items, "item")
}

// addFinding routes a finding to the right list and records its auto-fix
// suggestion (one suggestion per finding type, ids aggregated).
func (r *Report) addFinding(f Finding) {
	if f.Severity == SeverityCritical {
		r.Errors = append(r.Errors, f)
	} else {
		r.Warnings = append(r.Warnings, f)
	}

	for i := range r.Suggestions {
		if r.Suggestions[i].FindingType == f.Type {
			r.Suggestions[i].AffectedIDs = append(r.Suggestions[i].AffectedIDs, f.AffectedIDs...)
			return
		}
	}

	r.Suggestions = append(r.Suggestions, Suggestion{
		FindingType: f.Type,
		Action:      recommendedAction(f.Type),
		Priority:    priorityFor(f.Severity),
		AffectedIDs: append([]types.ID(nil), f.AffectedIDs...),
	})
}

// recommendedAction returns the fixed remediation for a finding type.
func recommendedAction(t FindingType) string {
	switch t {
	case FindingQuestNumberOutOfRange:
		return "regenerate the leaf objective with a quest number inside the campaign's quest range"
	case FindingObjectiveUncovered:
		return "regenerate the decomposition so its leaf objectives map onto existing quests"
	case FindingObjectiveThinCoverage:
		return "add leaf objectives in quests the decomposition does not yet touch"
	case FindingObjectiveUnreachable:
		return "link the objective to an existing scene or generate a new advancing scene"
	case FindingObjectiveSingleScene:
		return "add a second advancing scene to provide a redundant path"
	case FindingNoAcquisition:
		return "generate at least one acquisition method for the entity"
	case FindingSingleAcquisition:
		return "add a second acquisition method for the quest-critical entity"
	case FindingMissingCriteria:
		return "generate completion criteria for the scene"
	default:
		return "review the affected content manually"
	}
}

func priorityFor(s Severity) int {
	switch s {
	case SeverityCritical:
		return 1
	case SeverityWarning:
		return 2
	default:
		return 3
	}
}
