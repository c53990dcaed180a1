package contract

import (
	"context"
	"time"
)

// Extractor parses one free-text turn into structured fields and intent
// signals. An empty Extraction with IntentOther is a valid answer for
// unparseable input; errors are reserved for collaborator failures.
type Extractor interface {
	Extract(ctx context.Context, text string, history []string) (Extraction, error)
}

// AvailabilityGateway is the calendar collaborator. Check is advisory
// only: Reserve re-checks immediately before writing and is the single
// point of truth for slot exclusivity.
type AvailabilityGateway interface {
	Check(ctx context.Context, date, startTime string) (bool, []Conflict, error)
	Reserve(ctx context.Context, req BookingRequest) (string, error)
	ListFree(ctx context.Context, date string, hours BusinessHours, slotLen time.Duration) ([]string, error)
	Cancel(ctx context.Context, reservationID string) error
}

// Courier delivers outbound reply events to the chat-surface
// collaborator. Delivery is best-effort, not exactly-once.
type Courier interface {
	Deliver(ctx context.Context, out Outbound) error
}
