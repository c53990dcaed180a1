// Package engine wires the collaborators together and drives one
// conversation turn end to end: acquire the per-conversation handle,
// run the compiled turn graph on a working copy, and commit state and
// reply together so a failed turn leaves nothing behind.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/pawdesk/groomflow/agent/contract"
	"github.com/pawdesk/groomflow/agent/nodes"
	"github.com/pawdesk/groomflow/agent/pricing"
	recordx "github.com/pawdesk/groomflow/agent/record"
	routex "github.com/pawdesk/groomflow/agent/route"
	statex "github.com/pawdesk/groomflow/agent/state"
)

const retryLaterReply = "Sorry, I'm having trouble on my end right now — please try again in a moment."

type Config struct {
	StallAfter    time.Duration `envconfig:"STALL_AFTER" split_words:"true" default:"30m"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" split_words:"true" default:"5m"`
	MaxFollowUps  int           `envconfig:"MAX_FOLLOW_UPS" split_words:"true" default:"1"`
	OpenHour      int           `envconfig:"OPEN_HOUR" split_words:"true" default:"9"`
	CloseHour     int           `envconfig:"CLOSE_HOUR" split_words:"true" default:"17"`
	SlotDuration  time.Duration `envconfig:"SLOT_DURATION" split_words:"true" default:"1h"`
	HistoryWindow int           `envconfig:"HISTORY_WINDOW" split_words:"true" default:"6"`
}

// Engine owns the registry and the compiled turn graph. One Engine
// serves all conversations; per-conversation serialization lives in the
// registry.
type Engine struct {
	cfg       Config
	registry  *statex.Registry
	extractor contractx.Extractor
	courier   contractx.Courier
	store     recordx.Store
	executors map[statex.Status]nodes.Executor
	followUp  *nodes.FollowUp
	runner    compose.Runnable[*turnContext, *turnContext]
	now       func() time.Time
}

func New(
	ctx context.Context,
	cfg Config,
	extractor contractx.Extractor,
	gateway contractx.AvailabilityGateway,
	store recordx.Store,
	courier contractx.Courier,
	calc *pricing.Calculator,
) (*Engine, error) {
	if cfg.StallAfter <= 0 {
		cfg.StallAfter = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	// One nudge per silent conversation; the next silence window closes it.
	if cfg.MaxFollowUps <= 0 {
		cfg.MaxFollowUps = 1
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = time.Hour
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 6
	}

	deps := nodes.Deps{
		Store:   store,
		Gateway: gateway,
		Pricing: calc,
		Hours:   contractx.BusinessHours{OpenHour: cfg.OpenHour, CloseHour: cfg.CloseHour},
		SlotLen: cfg.SlotDuration,
	}

	collect := nodes.NewCollectDetails(deps)
	qualify := nodes.NewQualifyLead(deps, collect)
	show := nodes.NewShowServices(deps)
	book := nodes.NewBookAppointment(deps)
	info := nodes.NewProvideInfo(deps)

	e := &Engine{
		cfg:       cfg,
		registry:  statex.NewRegistry(),
		extractor: extractor,
		courier:   courier,
		store:     store,
		followUp:  nodes.NewFollowUp(),
		now:       func() time.Time { return time.Now().UTC() },
		executors: map[statex.Status]nodes.Executor{
			statex.StatusQualifying:     qualify,
			statex.StatusQualified:      show,
			statex.StatusShowingService: show,
			statex.StatusProvidingInfo:  info,
			statex.StatusBooking:        book,
			statex.StatusBooked:         nodes.ExecutorFunc(bookedStage),
			statex.StatusClosed:         nodes.ExecutorFunc(closingStage),
		},
	}

	runner, err := e.compileTurnGraph(ctx)
	if err != nil {
		return nil, err
	}
	e.runner = runner
	return e, nil
}

// HandleMessage runs one inbound turn. State and reply commit together:
// a collaborator failure discards the working copy and yields a
// retry-later reply with the stored state untouched.
func (e *Engine) HandleMessage(ctx context.Context, in contractx.Inbound) (contractx.Outbound, error) {
	if strings.TrimSpace(in.ConversationID) == "" {
		return contractx.Outbound{}, fmt.Errorf("%w: conversation id is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(in.Text) == "" {
		return contractx.Outbound{}, fmt.Errorf("%w: message text is empty", contractx.ErrValidation)
	}

	now := e.now()
	if !in.ReceivedAt.IsZero() {
		now = in.ReceivedAt.UTC()
	}

	handle := e.registry.Acquire(in.ConversationID, now)
	defer handle.Release()

	tc := &turnContext{
		turn: &nodes.Turn{
			Conv:    handle.Snapshot(),
			Inbound: in,
			Now:     now,
		},
	}

	tc, err := e.runner.Invoke(ctx, tc)
	if err != nil {
		if errors.Is(err, contractx.ErrValidation) || errors.Is(err, contractx.ErrSchemaViolation) {
			return contractx.Outbound{}, err
		}
		log.Error().Err(err).Str("conversation_id", in.ConversationID).Msg("turn failed, state discarded")
		return contractx.Outbound{ConversationID: in.ConversationID, Reply: retryLaterReply}, nil
	}

	handle.Commit(tc.turn.Conv)
	if tc.turn.Conv.Status.Terminal() {
		// Drop the entry once the farewell is committed so a returning
		// customer starts a fresh intake instead of replaying goodbyes.
		defer e.registry.Evict(in.ConversationID)
	}
	e.deliver(ctx, tc.reply)
	go e.writeThrough(tc.turn.Conv)
	return tc.reply, nil
}

func (e *Engine) deliver(ctx context.Context, out contractx.Outbound) {
	if e.courier == nil {
		return
	}
	if err := e.courier.Deliver(ctx, out); err != nil {
		log.Warn().Err(err).Str("conversation_id", out.ConversationID).Msg("reply delivery failed")
	}
}

// writeThrough mirrors the committed conversation status onto the lead
// record off the turn path. Best effort only; conversation state is the
// source of truth while the dialogue is live.
func (e *Engine) writeThrough(conv *statex.Conversation) {
	if conv == nil || conv.LeadID == "" {
		return
	}
	leadStatus, ok := leadStatusFor(conv.Status)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := e.store.UpdateLead(ctx, conv.LeadID, map[string]any{"status": leadStatus})
	if err != nil && !errors.Is(err, contractx.ErrNotFound) {
		log.Warn().Err(err).Str("lead_id", conv.LeadID).Msg("lead status write-through failed")
	}
}

func leadStatusFor(s statex.Status) (string, bool) {
	switch s {
	case statex.StatusQualified, statex.StatusShowingService, statex.StatusBooking:
		return "qualified", true
	case statex.StatusBooked:
		return "booked", true
	case statex.StatusClosed:
		return "closed", true
	default:
		return "", false
	}
}

// signalsFor derives the routing signals from the pre-merge state and
// the turn's extraction.
func signalsFor(conv *statex.Conversation, ex contractx.Extraction) routex.Signals {
	return routex.Signals{
		FieldsComplete:  conv.Qualified(),
		BookingIntent:   ex.Intent == contractx.IntentBook,
		InfoIntent:      ex.Intent == contractx.IntentInfo,
		CloseIntent:     ex.Intent == contractx.IntentClose,
		ServiceSelected: conv.SelectedService != "",
		PriorStatus:     conv.Resume(),
	}
}

func bookedStage(ctx context.Context, t *nodes.Turn) (routex.Outcome, error) {
	t.Say("You're already booked in — see you then! Send a note any time if plans change.")
	return routex.Outcome{}, nil
}

func closingStage(ctx context.Context, t *nodes.Turn) (routex.Outcome, error) {
	t.Say("Thanks for stopping by! If you'd like to book later, just send a new message.")
	return routex.Outcome{Closed: true}, nil
}
