package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/BillClerici/skill-forge-sub000/internal/generator"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Decomposer asks the generator to break top-level objectives into
// quest-level leaf objectives.
type Decomposer struct {
	gen    generator.Generator
	logger *slog.Logger
}

// NewDecomposer creates a Decomposer using the given generator.
func NewDecomposer(gen generator.Generator, logger *slog.Logger) *Decomposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decomposer{gen: gen, logger: logger}
}

// leafDraft is the shape the generator returns for one leaf objective.
type leafDraft struct {
	Description   string   `json:"description" validate:"required"`
	QuestNumber   int      `json:"quest_number" validate:"gte=1"`
	KnowledgeTags []string `json:"knowledge_tags"`
	ItemTags      []string `json:"item_tags"`
	MinCoverage   int      `json:"min_coverage"`
}

// LeavesPerObjective derives how many leaf objectives each top-level
// objective gets from the campaign's quest count, clamped to [1, 3].
func LeavesPerObjective(numQuests int) int {
	n := numQuests
	if n < 1 {
		n = 1
	}
	if n > 3 {
		n = 3
	}
	return n
}

// Decompose produces one Decomposition per top-level objective. Each leaf
// is stamped with a generated id and a back-reference to its parent, and
// the decomposition records the union of child requirement tags.
func (d *Decomposer) Decompose(ctx context.Context, tops []TopObjective, numQuests int) ([]Decomposition, error) {
	if numQuests < 1 {
		return nil, types.NewError(types.CASCADE_NO_QUESTS, "campaign has no quests to decompose objectives into")
	}

	leavesWanted := LeavesPerObjective(numQuests)
	decomps := make([]Decomposition, 0, len(tops))

	for _, top := range tops {
		drafts, err := d.requestLeaves(ctx, top, numQuests, leavesWanted)
		if err != nil {
			return nil, err
		}

		decomp := Decomposition{
			TopObjectiveID:        top.ID,
			Leaves:                make([]LeafObjective, 0, len(drafts)),
			RequiredQuestCoverage: leavesWanted,
		}

		for _, draft := range drafts {
			minCoverage := draft.MinCoverage
			if minCoverage < 1 {
				minCoverage = 1
			}
			decomp.Leaves = append(decomp.Leaves, LeafObjective{
				ID:            types.NewID(),
				ParentID:      top.ID,
				QuestNumber:   draft.QuestNumber,
				Description:   draft.Description,
				KnowledgeTags: draft.KnowledgeTags,
				ItemTags:      draft.ItemTags,
				MinCoverage:   minCoverage,
			})
		}

		decomp.KnowledgeTags = unionTags(decomp.Leaves, func(l LeafObjective) []string { return l.KnowledgeTags })
		decomp.ItemTags = unionTags(decomp.Leaves, func(l LeafObjective) []string { return l.ItemTags })

		d.logger.Info("decomposed objective",
			"top_objective_id", top.ID,
			"leaves", len(decomp.Leaves),
			"quest_numbers", decomp.QuestNumbers())

		decomps = append(decomps, decomp)
	}

	return decomps, nil
}

func (d *Decomposer) requestLeaves(ctx context.Context, top TopObjective, numQuests, leavesWanted int) ([]leafDraft, error) {
	req := generator.Request{
		System: "You decompose high-level campaign objectives into concrete quest-level objectives. Respond with a JSON array only.",
		Prompt: fmt.Sprintf(
			"Top-level objective: %q\n"+
				"The campaign has %d quests, numbered 1 to %d.\n"+
				"Produce exactly %d leaf objectives as a JSON array. Each element has:\n"+
				"  description (string), quest_number (1-%d),\n"+
				"  knowledge_tags (array of free-text knowledge domains the player needs),\n"+
				"  item_tags (array of free-text item categories the player needs),\n"+
				"  min_coverage (minimum number of scenes that should advance it, default 1).",
			top.Description, numQuests, numQuests, leavesWanted, numQuests),
	}

	var drafts []leafDraft
	if err := d.gen.GenerateInto(ctx, req, &drafts); err != nil {
		return nil, types.WrapRetryableError(types.CASCADE_DECOMPOSE_FAILED,
			"generator failed to decompose objective "+top.ID.String(), err)
	}
	if len(drafts) == 0 {
		return nil, types.NewRetryableError(types.CASCADE_DECOMPOSE_FAILED,
			"generator returned no leaf objectives for "+top.ID.String())
	}

	return drafts, nil
}

// unionTags collects the distinct, case-folded tags across leaves in
// stable sorted order.
func unionTags(leaves []LeafObjective, pick func(LeafObjective) []string) []string {
	seen := make(map[string]struct{})
	for _, leaf := range leaves {
		for _, tag := range pick(leaf) {
			tag = strings.TrimSpace(strings.ToLower(tag))
			if tag == "" {
				continue
			}
			seen[tag] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
