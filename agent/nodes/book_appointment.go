package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/pawdesk/groomflow/agent/contract"
	recordx "github.com/pawdesk/groomflow/agent/record"
	routex "github.com/pawdesk/groomflow/agent/route"
	statex "github.com/pawdesk/groomflow/agent/state"
)

// BookAppointment negotiates the slot and commits the reservation.
// Reserve re-checks inside the gateway; a lost race surfaces as a
// conflict and the node re-offers free slots instead of dropping the
// booking intent.
type BookAppointment struct {
	deps Deps
}

func NewBookAppointment(deps Deps) *BookAppointment {
	return &BookAppointment{deps: deps}
}

func (n *BookAppointment) Execute(ctx context.Context, t *Turn) (routex.Outcome, error) {
	if t.Conv.Pending == nil {
		t.Conv.Pending = &statex.PendingSlot{}
	}
	if t.Extraction.Date != "" {
		t.Conv.Pending.Date = t.Extraction.Date
	}
	if t.Extraction.Time != "" {
		t.Conv.Pending.Time = t.Extraction.Time
	}

	switch {
	case t.Conv.Pending.Date == "" && t.Conv.Pending.Time == "":
		t.Say("What date and time would you like for " + petLabel(t) + "'s " + t.Conv.SelectedService + "?")
		return routex.Outcome{}, nil
	case t.Conv.Pending.Date == "":
		t.Say("Which date should I book " + t.Conv.Pending.Time + " on?")
		return routex.Outcome{}, nil
	case t.Conv.Pending.Time == "":
		return n.offerFreeSlots(ctx, t, "What time works on "+t.Conv.Pending.Date+"?")
	}

	free, _, err := n.deps.Gateway.Check(ctx, t.Conv.Pending.Date, t.Conv.Pending.Time)
	if err != nil {
		return routex.Outcome{}, fmt.Errorf("availability check: %w", err)
	}
	if !free {
		return n.conflictReoffer(ctx, t)
	}

	reservationID, err := n.deps.Gateway.Reserve(ctx, contractx.BookingRequest{
		Date:         t.Conv.Pending.Date,
		StartTime:    t.Conv.Pending.Time,
		CustomerName: t.Conv.Customer.Name,
		PetName:      t.Conv.Pet.Name,
		ServiceName:  t.Conv.SelectedService,
		Notes:        fmt.Sprintf("%s, %.0fkg", t.Conv.Pet.Breed, t.Conv.Pet.WeightKg),
	})
	if errors.Is(err, contractx.ErrConflict) {
		return n.conflictReoffer(ctx, t)
	}
	if err != nil {
		return routex.Outcome{}, fmt.Errorf("reserve slot: %w", err)
	}

	t.Conv.BookedAppointment = reservationID
	n.persistAppointment(ctx, t, reservationID)

	t.Say(fmt.Sprintf("You're all set! %s is booked for a %s on %s at %s. We'll send a reminder the day before and again 30 minutes ahead.",
		t.Conv.Pet.Name, t.Conv.SelectedService, t.Conv.Pending.Date, t.Conv.Pending.Time))
	return routex.Outcome{Reserved: true}, nil
}

func (n *BookAppointment) conflictReoffer(ctx context.Context, t *Turn) (routex.Outcome, error) {
	taken := t.Conv.Pending.Time
	t.Conv.Pending.Time = ""
	out, err := n.offerFreeSlots(ctx, t, taken+" just got taken — sorry about that.")
	if err != nil {
		return routex.Outcome{}, err
	}
	out.Conflict = true
	return out, nil
}

func (n *BookAppointment) offerFreeSlots(ctx context.Context, t *Turn, lead string) (routex.Outcome, error) {
	starts, err := n.deps.Gateway.ListFree(ctx, t.Conv.Pending.Date, n.deps.Hours, n.deps.SlotLen)
	if err != nil {
		return routex.Outcome{}, fmt.Errorf("list free slots: %w", err)
	}
	if len(starts) == 0 {
		t.Say(lead + " " + t.Conv.Pending.Date + " is fully booked — could you pick another day?")
		t.Conv.Pending.Date = ""
		return routex.Outcome{}, nil
	}
	if len(starts) > maxSlotSuggestions {
		starts = starts[:maxSlotSuggestions]
	}
	t.Say(lead + " On " + t.Conv.Pending.Date + " I still have " + strings.Join(starts, ", ") + ". Which would you like?")
	return routex.Outcome{}, nil
}

// persistAppointment records the booking; the reservation already holds
// the slot, so a record-store failure is logged rather than unwinding
// the booking.
func (n *BookAppointment) persistAppointment(ctx context.Context, t *Turn, reservationID string) {
	serviceID := ""
	totalPrice := 0.0
	services, err := n.deps.Store.ListServices(ctx, recordx.ServiceFilter{ActiveOnly: true})
	if err == nil {
		if svc := matchService(services, t.Conv.SelectedService); svc != nil {
			serviceID = svc.ServiceID
			totalPrice = n.deps.Pricing.Quote(*svc, t.Conv.Pet.WeightKg, t.Conv.Pet.CoatCondition)
		}
	}

	appt := &recordx.Appointment{
		AppointmentID:   recordx.NewID(recordx.PrefixAppointment),
		LeadID:          t.Conv.LeadID,
		PetID:           t.Conv.PetID,
		ServiceID:       serviceID,
		AppointmentDate: t.Conv.Pending.Date,
		AppointmentTime: t.Conv.Pending.Time,
		Status:          "scheduled",
		Notes:           "calendar event " + reservationID,
		TotalPrice:      totalPrice,
	}
	if err := n.deps.Store.InsertAppointment(ctx, appt); err != nil {
		log.Error().Err(err).
			Str("reservation_id", reservationID).
			Str("lead_id", t.Conv.LeadID).
			Msg("appointment record write failed after reservation")
	}
}
