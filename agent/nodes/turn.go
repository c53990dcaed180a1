// Package nodes holds the per-stage executors. An executor mutates the
// working conversation copy and reports a route.Outcome; it never sets
// Status itself — that stays in the routing engine.
package nodes

import (
	"context"
	"strings"
	"time"

	contractx "github.com/pawdesk/groomflow/agent/contract"
	"github.com/pawdesk/groomflow/agent/pricing"
	recordx "github.com/pawdesk/groomflow/agent/record"
	routex "github.com/pawdesk/groomflow/agent/route"
	statex "github.com/pawdesk/groomflow/agent/state"
)

// Shortlist cap when re-offering free slots after a conflict.
const maxSlotSuggestions = 6

// Turn is the working context for one inbound message: the conversation
// clone being mutated, the raw inbound event, its extraction, and the
// reply under construction.
type Turn struct {
	Conv       *statex.Conversation
	Inbound    contractx.Inbound
	Extraction contractx.Extraction
	Now        time.Time

	replyParts []string
}

// Say appends one paragraph to the outbound reply.
func (t *Turn) Say(text string) {
	text = strings.TrimSpace(text)
	if text != "" {
		t.replyParts = append(t.replyParts, text)
	}
}

func (t *Turn) Reply() string {
	return strings.Join(t.replyParts, "\n\n")
}

// Executor runs one stage of the conversation.
type Executor interface {
	Execute(ctx context.Context, t *Turn) (routex.Outcome, error)
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, t *Turn) (routex.Outcome, error)

func (f ExecutorFunc) Execute(ctx context.Context, t *Turn) (routex.Outcome, error) {
	return f(ctx, t)
}

// Deps is the collaborator bundle shared by all executors.
type Deps struct {
	Store   recordx.Store
	Gateway contractx.AvailabilityGateway
	Pricing *pricing.Calculator
	Hours   contractx.BusinessHours
	SlotLen time.Duration
}
