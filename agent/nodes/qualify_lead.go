package nodes

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	recordx "github.com/pawdesk/groomflow/agent/record"
	routex "github.com/pawdesk/groomflow/agent/route"
)

// QualifyLead ensures the lead and pet placeholder records exist for a
// first-contact conversation, greets, and hands the turn to the
// detail-collection flow. Re-running it on a conversation that already
// has records is a no-op apart from the delegation.
type QualifyLead struct {
	deps    Deps
	collect *CollectDetails
}

func NewQualifyLead(deps Deps, collect *CollectDetails) *QualifyLead {
	return &QualifyLead{deps: deps, collect: collect}
}

func (n *QualifyLead) Execute(ctx context.Context, t *Turn) (routex.Outcome, error) {
	firstContact := t.Conv.LeadID == ""

	if t.Conv.LeadID == "" {
		lead := &recordx.Lead{
			LeadID:      recordx.NewID(recordx.PrefixLead),
			Status:      "new",
			Source:      "chat",
			CreatedDate: t.Now,
			Notes:       fmt.Sprintf("conversation %s", t.Conv.ID),
		}
		if err := n.deps.Store.InsertLead(ctx, lead); err != nil {
			return routex.Outcome{}, fmt.Errorf("qualify lead: %w", err)
		}
		t.Conv.LeadID = lead.LeadID
		log.Info().Str("conversation_id", t.Conv.ID).Str("lead_id", lead.LeadID).Msg("lead created")
	}

	if t.Conv.PetID == "" {
		pet := &recordx.Pet{
			PetID:  recordx.NewID(recordx.PrefixPet),
			LeadID: t.Conv.LeadID,
			Status: "active",
		}
		if err := n.deps.Store.InsertPet(ctx, pet); err != nil {
			return routex.Outcome{}, fmt.Errorf("qualify pet: %w", err)
		}
		t.Conv.PetID = pet.PetID
	}

	if firstContact {
		t.Say("Hi! Welcome to the grooming studio — happy to get your pet booked in.")
	}
	return n.collect.Execute(ctx, t)
}
