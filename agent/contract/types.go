package contract

import "time"

// Inbound is one message arriving from the chat-surface collaborator.
type Inbound struct {
	ConversationID string    `json:"conversation_id"`
	Text           string    `json:"text"`
	Sender         string    `json:"sender"`
	ReceivedAt     time.Time `json:"received_at"`
}

// Outbound is the reply handed back to the chat-surface collaborator.
type Outbound struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}

type Intent string

const (
	IntentBook          Intent = "book"
	IntentInfo          Intent = "info"
	IntentChooseService Intent = "choose_service"
	IntentClose         Intent = "close"
	IntentOther         Intent = "other"
)

// Extraction is the extractor's best-effort parse of one free-text turn.
// Zero values mean "not mentioned"; Corrections lists fields the user
// explicitly changed and which therefore may overwrite confirmed values.
type Extraction struct {
	CustomerName  string  `json:"customer_name,omitempty"`
	Phone         string  `json:"phone,omitempty"`
	City          string  `json:"city,omitempty"`
	PetName       string  `json:"pet_name,omitempty"`
	Species       string  `json:"species,omitempty"`
	Breed         string  `json:"breed,omitempty"`
	WeightKg      float64 `json:"weight_kg,omitempty"`
	AgeYears      int     `json:"age_years,omitempty"`
	CoatCondition string  `json:"coat_condition,omitempty"`

	Intent      Intent   `json:"intent"`
	ServiceName string   `json:"service_name,omitempty"`
	Date        string   `json:"date,omitempty"` // YYYY-MM-DD
	Time        string   `json:"time,omitempty"` // HH:MM, 24-hour
	Corrections []string `json:"corrections,omitempty"`
}

// BookingRequest is the ephemeral value handed to the availability
// gateway for one reservation attempt. It is never persisted.
type BookingRequest struct {
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	CustomerName string `json:"customer_name"`
	PetName      string `json:"pet_name"`
	ServiceName  string `json:"service_name"`
	Notes        string `json:"notes,omitempty"`
}

// Conflict describes one calendar interval blocking a requested slot.
type Conflict struct {
	EventID string    `json:"event_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Summary string    `json:"summary,omitempty"`
}

// BusinessHours is the configured open window for one day, expressed as
// whole hours on a 24-hour clock.
type BusinessHours struct {
	OpenHour  int `json:"open_hour"`
	CloseHour int `json:"close_hour"`
}
