package nodes

import (
	"context"

	routex "github.com/pawdesk/groomflow/agent/route"
)

// FollowUp composes the sweep-triggered re-engagement message. The
// sweeper, not an inbound turn, drives it; the follow-up counter it
// bumps is what eventually closes an unresponsive conversation.
type FollowUp struct{}

func NewFollowUp() *FollowUp {
	return &FollowUp{}
}

func (n *FollowUp) Execute(ctx context.Context, t *Turn) (routex.Outcome, error) {
	t.Conv.FollowUps++
	t.Say("Just checking in — still want to get " + petLabel(t) + " booked in? I'm happy to pick up right where we left off.")
	return routex.Outcome{}, nil
}
