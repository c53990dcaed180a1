package state

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	contractx "github.com/pawdesk/groomflow/agent/contract"
)

type Status string

const (
	StatusNew            Status = "NEW"
	StatusQualifying     Status = "QUALIFYING"
	StatusQualified      Status = "QUALIFIED"
	StatusShowingService Status = "SHOWING_SERVICES"
	StatusBooking        Status = "BOOKING"
	StatusBooked         Status = "BOOKED"
	StatusProvidingInfo  Status = "PROVIDING_INFO"
	StatusStalled        Status = "STALLED"
	StatusFollowedUp     Status = "FOLLOWED_UP"
	StatusClosed         Status = "CLOSED"
)

func (s Status) Terminal() bool {
	return s == StatusClosed
}

type Customer struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	City  string `json:"city,omitempty"`
}

type Pet struct {
	Name          string  `json:"name,omitempty"`
	Species       string  `json:"species,omitempty"`
	Breed         string  `json:"breed,omitempty"`
	WeightKg      float64 `json:"weight_kg,omitempty"`
	AgeYears      int     `json:"age_years,omitempty"`
	CoatCondition string  `json:"coat_condition,omitempty"`
}

// PendingSlot is the tentative (date, time) a customer is negotiating.
// It only exists while the conversation is in BOOKING.
type PendingSlot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type Event struct {
	Kind string    `json:"kind"` // "user" | "assistant" | "sweep"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Conversation is the per-identity state mutated on every turn.
// Status is only written through route decisions via ApplyStatus.
type Conversation struct {
	ID     string `json:"id"`
	LeadID string `json:"lead_id"`
	PetID  string `json:"pet_id"`

	Status      Status `json:"status"`
	PriorStatus Status `json:"prior_status,omitempty"` // resume target after a stall

	Customer Customer `json:"customer"`
	Pet      Pet      `json:"pet"`

	SelectedService   string       `json:"selected_service,omitempty"`
	Pending           *PendingSlot `json:"pending_slot,omitempty"`
	BookedAppointment string       `json:"booked_appointment,omitempty"`

	History        []Event   `json:"history,omitempty"` // append-only
	LastActivityAt time.Time `json:"last_activity_at"`

	FollowUps       int `json:"follow_ups"`
	NoProgressTurns int `json:"no_progress_turns"`
}

var (
	ErrInvalidConversation = errors.New("conversation id is empty")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// RequiredFields is the canonical prompt order for missing-field
// re-prompts: name, phone, pet name, breed, weight, age.
var RequiredFields = []string{"name", "phone", "pet name", "breed", "weight", "age"}

func NewConversation(id string, now time.Time) *Conversation {
	return &Conversation{
		ID:             strings.TrimSpace(id),
		Status:         StatusNew,
		LastActivityAt: now.UTC(),
	}
}

func (c *Conversation) Touch(now time.Time) {
	c.LastActivityAt = now.UTC()
}

func (c *Conversation) Append(kind, text string, now time.Time) {
	c.History = append(c.History, Event{Kind: kind, Text: text, At: now.UTC()})
	c.Touch(now)
}

// RecentHistory returns up to n most recent event texts, oldest first.
func (c *Conversation) RecentHistory(n int) []string {
	if n <= 0 || len(c.History) == 0 {
		return nil
	}
	start := len(c.History) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(c.History)-start)
	for _, ev := range c.History[start:] {
		out = append(out, ev.Kind+": "+ev.Text)
	}
	return out
}

/* --------------------------- Field collection --------------------------- */

// Missing returns the still-unpopulated required fields in canonical order.
func (c *Conversation) Missing() []string {
	var missing []string
	if strings.TrimSpace(c.Customer.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Customer.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(c.Pet.Name) == "" {
		missing = append(missing, "pet name")
	}
	if strings.TrimSpace(c.Pet.Breed) == "" {
		missing = append(missing, "breed")
	}
	if c.Pet.WeightKg <= 0 {
		missing = append(missing, "weight")
	}
	if c.Pet.AgeYears <= 0 {
		missing = append(missing, "age")
	}
	return missing
}

func (c *Conversation) Qualified() bool {
	return len(c.Missing()) == 0
}

// Merge folds non-empty extracted fields into the conversation without
// overwriting previously confirmed values, unless the extractor flagged
// the field as an explicit correction.
func (c *Conversation) Merge(ex contractx.Extraction) bool {
	corrected := func(field string) bool {
		return slices.Contains(ex.Corrections, field)
	}
	progressed := false
	setStr := func(dst *string, val, field string) {
		val = strings.TrimSpace(val)
		if val == "" {
			return
		}
		if *dst == "" || corrected(field) {
			if *dst != val {
				*dst = val
				progressed = true
			}
		}
	}

	setStr(&c.Customer.Name, ex.CustomerName, "customer_name")
	setStr(&c.Customer.Phone, ex.Phone, "phone")
	setStr(&c.Customer.City, ex.City, "city")
	setStr(&c.Pet.Name, ex.PetName, "pet_name")
	setStr(&c.Pet.Species, ex.Species, "species")
	setStr(&c.Pet.Breed, ex.Breed, "breed")
	setStr(&c.Pet.CoatCondition, ex.CoatCondition, "coat_condition")

	if ex.WeightKg > 0 && (c.Pet.WeightKg <= 0 || corrected("weight_kg")) {
		c.Pet.WeightKg = ex.WeightKg
		progressed = true
	}
	if ex.AgeYears > 0 && (c.Pet.AgeYears <= 0 || corrected("age_years")) {
		c.Pet.AgeYears = ex.AgeYears
		progressed = true
	}
	return progressed
}

/* --------------------------- Status transitions -------------------------- */

// ApplyStatus is the single mutation point for Status. It clears the
// pending slot whenever the conversation leaves BOOKING by any path and
// records the resume target when the conversation stalls.
func (c *Conversation) ApplyStatus(next Status, now time.Time) {
	if next == c.Status {
		c.Touch(now)
		return
	}
	if c.Status == StatusBooking && next != StatusBooking {
		c.Pending = nil
	}
	if next == StatusStalled && c.Status != StatusStalled && c.Status != StatusFollowedUp {
		c.PriorStatus = c.Status
	}
	if next != StatusStalled && next != StatusFollowedUp {
		c.PriorStatus = ""
		c.FollowUps = 0
	}
	c.Status = next
	c.Touch(now)
}

// Resume returns the status a re-engaged conversation should return to.
func (c *Conversation) Resume() Status {
	if c.PriorStatus != "" {
		return c.PriorStatus
	}
	return StatusQualifying
}

func (c *Conversation) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrInvalidConversation
	}
	// booked_appointment is set iff status == BOOKED; a conversation
	// explicitly closed from BOOKED keeps its reservation reference.
	if c.BookedAppointment != "" && c.Status != StatusBooked && c.Status != StatusClosed {
		return fmt.Errorf("%w: booked_appointment set while status=%s", ErrInvalidTransition, c.Status)
	}
	if c.BookedAppointment == "" && c.Status == StatusBooked {
		return fmt.Errorf("%w: status BOOKED without booked_appointment", ErrInvalidTransition)
	}
	if c.Pending != nil && c.Status != StatusBooking {
		return fmt.Errorf("%w: pending_slot outside BOOKING (status=%s)", ErrInvalidTransition, c.Status)
	}
	if c.Status == StatusBooking && strings.TrimSpace(c.SelectedService) == "" {
		return fmt.Errorf("%w: status BOOKING without selected_service", ErrInvalidTransition)
	}
	return nil
}

// Clone returns a deep copy used as the working state for one turn, so a
// failed turn never leaves partial mutations behind.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Pending != nil {
		p := *c.Pending
		cp.Pending = &p
	}
	cp.History = append([]Event(nil), c.History...)
	return &cp
}
