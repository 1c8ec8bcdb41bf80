// Package deletion implements the campaign deletion coordinator: a
// dependency-aware cascade across the document, graph, and relational
// stores that deletes everything a campaign owns while retaining shared
// world entities any other campaign still depends on.
//
// Success of a deletion is defined solely by the primary-store cascade.
// Every other phase degrades to warnings recorded in the audit document.
package deletion

import (
	"context"
	"fmt"

	"github.com/BillClerici/skill-forge-sub000/internal/campaign"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Dependents is the recomputed set of things keeping one shared entity
// alive. It is always built immediately before the delete decision, never
// trusted from an earlier fetch; another campaign may have grown a
// dependency while this workflow was parked.
type Dependents struct {
	Characters     []campaign.Character
	Campaigns      []campaign.Campaign
	Places         []campaign.Place
	ChildLocations []campaign.Location
}

// Blocking reports whether anything prevents deletion.
func (d Dependents) Blocking() bool {
	return len(d.Characters) > 0 || len(d.Campaigns) > 0 ||
		len(d.Places) > 0 || len(d.ChildLocations) > 0
}

// Reasons renders one human-readable retention reason per dependent class,
// naming the owners so the audit explains itself.
func (d Dependents) Reasons(entity string) []string {
	var out []string
	if n := len(d.Characters); n > 0 {
		out = append(out, fmt.Sprintf("%s retained: %d character(s) of other campaigns use it", entity, n))
	}
	if len(d.Campaigns) > 0 {
		names := make([]string, 0, len(d.Campaigns))
		for _, c := range d.Campaigns {
			names = append(names, c.Name)
		}
		out = append(out, fmt.Sprintf("%s retained: still created-by campaigns %v", entity, names))
	}
	if n := len(d.Places); n > 0 {
		out = append(out, fmt.Sprintf("%s retained: %d place(s) of other campaigns anchor to it", entity, n))
	}
	if n := len(d.ChildLocations); n > 0 {
		out = append(out, fmt.Sprintf("%s retained: %d child location(s) nest under it", entity, n))
	}
	return out
}

// speciesDependents recomputes what keeps a species alive, excluding
// anything owned by the campaign being deleted.
func speciesDependents(ctx context.Context, store DocumentStore, speciesID, deletingCampaign types.ID) (Dependents, error) {
	var deps Dependents

	chars, err := store.CharactersBySpecies(ctx, speciesID)
	if err != nil {
		return deps, err
	}
	for _, ch := range chars {
		if ch.CampaignID != deletingCampaign {
			deps.Characters = append(deps.Characters, ch)
		}
	}

	owners, err := store.CampaignsCreatingSpecies(ctx, speciesID)
	if err != nil {
		return deps, err
	}
	for _, c := range owners {
		if c.ID != deletingCampaign {
			deps.Campaigns = append(deps.Campaigns, c)
		}
	}

	return deps, nil
}

// locationDependents recomputes what keeps a shared location alive,
// excluding the deleting campaign and any locations already removed by this
// workflow.
func locationDependents(ctx context.Context, store DocumentStore, locationID, deletingCampaign types.ID, alreadyDeleted types.IDSet) (Dependents, error) {
	var deps Dependents

	places, err := store.PlacesByLocation(ctx, locationID)
	if err != nil {
		return deps, err
	}
	for _, p := range places {
		if p.CampaignID != deletingCampaign {
			deps.Places = append(deps.Places, p)
		}
	}

	owners, err := store.CampaignsCreatingLocation(ctx, locationID)
	if err != nil {
		return deps, err
	}
	for _, c := range owners {
		if c.ID != deletingCampaign {
			deps.Campaigns = append(deps.Campaigns, c)
		}
	}

	children, err := store.LocationsByParent(ctx, locationID)
	if err != nil {
		return deps, err
	}
	for _, child := range children {
		if !alreadyDeleted.Contains(child.ID) {
			deps.ChildLocations = append(deps.ChildLocations, child)
		}
	}

	return deps, nil
}
