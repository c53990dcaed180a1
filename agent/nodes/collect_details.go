package nodes

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	routex "github.com/pawdesk/groomflow/agent/route"
)

// After this many consecutive turns with no new field, stop re-listing
// the missing set and leave the conversation to the inactivity sweep.
const maxNoProgressPrompts = 3

// CollectDetails merges the turn's extraction into the conversation and
// re-prompts only for the fields still missing, in canonical order. When
// the set closes it writes the collected fields through to the lead and
// pet records.
type CollectDetails struct {
	deps Deps
}

func NewCollectDetails(deps Deps) *CollectDetails {
	return &CollectDetails{deps: deps}
}

func (n *CollectDetails) Execute(ctx context.Context, t *Turn) (routex.Outcome, error) {
	progressed := t.Conv.Merge(t.Extraction)
	if progressed {
		t.Conv.NoProgressTurns = 0
	} else {
		t.Conv.NoProgressTurns++
	}

	missing := t.Conv.Missing()
	if len(missing) > 0 {
		switch {
		case t.Conv.NoProgressTurns >= maxNoProgressPrompts:
			t.Say("No rush — whenever you're ready, just send over the rest and we'll pick it up from there.")
		case progressed:
			t.Say("Got it, thanks! Could you also share your " + joinFields(missing) + "?")
		default:
			t.Say("To get " + petLabel(t) + " booked in I still need your " + joinFields(missing) + ".")
		}
		return routex.Outcome{}, nil
	}

	// Set complete: write through to the records. Failures here do not
	// block the conversation; the fields stay in conversation state.
	if t.Conv.LeadID != "" {
		err := n.deps.Store.UpdateLead(ctx, t.Conv.LeadID, map[string]any{
			"customer_name": t.Conv.Customer.Name,
			"phone":         t.Conv.Customer.Phone,
			"status":        "qualified",
		})
		if err != nil {
			log.Warn().Err(err).Str("lead_id", t.Conv.LeadID).Msg("lead write-through failed")
		}
	}
	if t.Conv.PetID != "" {
		fields := map[string]any{
			"pet_name":  t.Conv.Pet.Name,
			"breed":     t.Conv.Pet.Breed,
			"weight_kg": t.Conv.Pet.WeightKg,
			"age_years": t.Conv.Pet.AgeYears,
		}
		if t.Conv.Pet.Species != "" {
			fields["species"] = t.Conv.Pet.Species
		}
		if t.Conv.Pet.CoatCondition != "" {
			fields["coat_condition"] = t.Conv.Pet.CoatCondition
		}
		if err := n.deps.Store.UpdatePet(ctx, t.Conv.PetID, fields); err != nil {
			log.Warn().Err(err).Str("pet_id", t.Conv.PetID).Msg("pet write-through failed")
		}
	}

	t.Say("Perfect, that's everything I need for " + t.Conv.Pet.Name + ".")
	return routex.Outcome{FieldsComplete: true}, nil
}

func joinFields(fields []string) string {
	switch len(fields) {
	case 0:
		return ""
	case 1:
		return fields[0]
	default:
		return strings.Join(fields[:len(fields)-1], ", ") + " and " + fields[len(fields)-1]
	}
}

func petLabel(t *Turn) string {
	if name := strings.TrimSpace(t.Conv.Pet.Name); name != "" {
		return name
	}
	return "your pet"
}
