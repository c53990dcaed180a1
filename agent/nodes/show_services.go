package nodes

import (
	"context"
	"fmt"
	"strings"

	recordx "github.com/pawdesk/groomflow/agent/record"
	routex "github.com/pawdesk/groomflow/agent/route"
)

// ShowServices lists the active services priced for this pet, and when
// the customer names one of them, locks it in and moves the turn toward
// booking.
type ShowServices struct {
	deps Deps
}

func NewShowServices(deps Deps) *ShowServices {
	return &ShowServices{deps: deps}
}

func (n *ShowServices) Execute(ctx context.Context, t *Turn) (routex.Outcome, error) {
	services, err := n.deps.Store.ListServices(ctx, recordx.ServiceFilter{ActiveOnly: true})
	if err != nil {
		return routex.Outcome{}, fmt.Errorf("show services: %w", err)
	}
	if len(services) == 0 {
		t.Say("We're between service menus right now — someone from the studio will reach out shortly.")
		return routex.Outcome{}, nil
	}

	if chosen := matchService(services, t.Extraction.ServiceName); chosen != nil {
		t.Conv.SelectedService = chosen.ServiceName
		quote := n.deps.Pricing.Quote(*chosen, t.Conv.Pet.WeightKg, t.Conv.Pet.CoatCondition)
		t.Say(fmt.Sprintf("%s it is — that's $%.2f for %s. What date and time work for you?",
			chosen.ServiceName, quote, petLabel(t)))
		return routex.Outcome{ServiceChosen: true}, nil
	}

	var sb strings.Builder
	sb.WriteString("Here's what we offer for " + petLabel(t) + ":")
	lastCategory := ""
	for _, svc := range services {
		if svc.Category != lastCategory {
			sb.WriteString("\n" + svc.Category + ":")
			lastCategory = svc.Category
		}
		quote := n.deps.Pricing.Quote(svc, t.Conv.Pet.WeightKg, t.Conv.Pet.CoatCondition)
		sb.WriteString(fmt.Sprintf("\n- %s — $%.2f (%d min)", svc.ServiceName, quote, svc.DurationMinutes))
	}
	sb.WriteString("\nWhich one would you like?")
	t.Say(sb.String())
	return routex.Outcome{}, nil
}

// matchService resolves the customer's wording to a catalog entry, exact
// name first, then whole-name containment either way.
func matchService(services []recordx.Service, wanted string) *recordx.Service {
	wanted = strings.ToLower(strings.TrimSpace(wanted))
	if wanted == "" {
		return nil
	}
	for i := range services {
		if strings.ToLower(services[i].ServiceName) == wanted {
			return &services[i]
		}
	}
	for i := range services {
		name := strings.ToLower(services[i].ServiceName)
		if strings.Contains(name, wanted) || strings.Contains(wanted, name) {
			return &services[i]
		}
	}
	return nil
}
