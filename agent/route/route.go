// Package route is the state machine. It is pure decision logic: node
// executors report signals and outcomes, and every status transition in
// the engine goes through Next, Settle, or Sweep so the machine stays
// centrally auditable.
package route

import (
	statex "github.com/pawdesk/groomflow/agent/state"
)

// Signals are derived from the inbound turn before any node runs.
type Signals struct {
	FieldsComplete  bool
	BookingIntent   bool
	InfoIntent      bool
	CloseIntent     bool
	ServiceSelected bool          // a service is already on the conversation
	PriorStatus     statex.Status // resume target for stalled conversations
}

// Outcome is what a node executor reports back after running. Executors
// never set status themselves.
type Outcome struct {
	FieldsComplete bool
	ServiceChosen  bool
	Reserved       bool
	Conflict       bool
	Answered       bool
	Closed         bool
}

// Next decides which stage handles the incoming turn. Tie-break: a
// message that both answers missing fields and expresses booking intent
// keeps qualifying — nothing can be booked before qualification.
func Next(cur statex.Status, sig Signals) statex.Status {
	if sig.CloseIntent && cur != statex.StatusNew {
		return statex.StatusClosed
	}

	switch cur {
	case statex.StatusNew:
		return statex.StatusQualifying

	case statex.StatusQualifying:
		if !sig.FieldsComplete {
			return statex.StatusQualifying
		}
		return statex.StatusQualified

	case statex.StatusQualified:
		// automatic advance
		return statex.StatusShowingService

	case statex.StatusShowingService:
		switch {
		case sig.InfoIntent:
			return statex.StatusProvidingInfo
		case sig.BookingIntent && sig.ServiceSelected:
			return statex.StatusBooking
		default:
			// Booking intent without a chosen service stays on the
			// menu; Settle advances once the turn picks one.
			return statex.StatusShowingService
		}

	case statex.StatusProvidingInfo:
		// automatic return after answering
		return statex.StatusShowingService

	case statex.StatusBooking:
		if sig.InfoIntent {
			return statex.StatusProvidingInfo
		}
		return statex.StatusBooking

	case statex.StatusBooked:
		// Booked conversations only move on an explicit close.
		return statex.StatusBooked

	case statex.StatusStalled, statex.StatusFollowedUp:
		// Re-engagement resumes the prior non-stalled stage.
		if sig.PriorStatus != "" {
			return sig.PriorStatus
		}
		return statex.StatusQualifying

	default:
		return cur
	}
}

// Settle commits the post-execution transition for the stage that just
// ran. Identity when the outcome does not move the machine.
func Settle(stage statex.Status, out Outcome) statex.Status {
	if out.Closed {
		return statex.StatusClosed
	}

	switch stage {
	case statex.StatusQualifying:
		if out.FieldsComplete {
			return statex.StatusQualified
		}
		return statex.StatusQualifying

	case statex.StatusQualified:
		return statex.StatusShowingService

	case statex.StatusShowingService:
		if out.ServiceChosen {
			return statex.StatusBooking
		}
		return statex.StatusShowingService

	case statex.StatusProvidingInfo:
		if out.Answered {
			return statex.StatusShowingService
		}
		return statex.StatusProvidingInfo

	case statex.StatusBooking:
		if out.Reserved {
			return statex.StatusBooked
		}
		// conflict or missing slot: stay in BOOKING, re-offer
		return statex.StatusBooking

	default:
		return stage
	}
}

// Sweep drives the out-of-band inactivity transitions: a stale
// non-terminal conversation stalls, a stalled one gets exactly one
// follow-up per silence window, and an exhausted one closes.
func Sweep(cur statex.Status, followUps, maxFollowUps int) statex.Status {
	switch cur {
	case statex.StatusClosed, statex.StatusBooked:
		return cur
	case statex.StatusStalled:
		return statex.StatusFollowedUp
	case statex.StatusFollowedUp:
		if followUps >= maxFollowUps {
			return statex.StatusClosed
		}
		return statex.StatusFollowedUp
	default:
		return statex.StatusStalled
	}
}
