package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pawdesk/groomflow/agent/nodes"
	routex "github.com/pawdesk/groomflow/agent/route"
	statex "github.com/pawdesk/groomflow/agent/state"
)

// RunSweeper drives the inactivity lifecycle on a ticker: stale
// conversations stall, stalled ones get one follow-up per silence
// window, exhausted ones close and are evicted. Blocks until ctx is
// cancelled.
func (e *Engine) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", e.cfg.SweepInterval).
		Dur("stall_after", e.cfg.StallAfter).
		Int("max_follow_ups", e.cfg.MaxFollowUps).
		Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			e.SweepOnce(ctx)
		}
	}
}

// SweepOnce applies the inactivity transitions to every stale
// conversation. Exported so tests and operators can run a sweep without
// the ticker.
func (e *Engine) SweepOnce(ctx context.Context) {
	now := e.now()
	cutoff := now.Add(-e.cfg.StallAfter)

	for _, id := range e.registry.Stale(cutoff) {
		e.sweepConversation(ctx, id, now)
	}
}

func (e *Engine) sweepConversation(ctx context.Context, id string, now time.Time) {
	handle := e.registry.Acquire(id, now)
	defer handle.Release()

	conv := handle.Snapshot()
	// A turn may have landed between Stale() and Acquire().
	if !conv.LastActivityAt.Before(now.Add(-e.cfg.StallAfter)) {
		return
	}

	next := routex.Sweep(conv.Status, conv.FollowUps, e.cfg.MaxFollowUps)
	switch {
	case next == statex.StatusClosed:
		conv.ApplyStatus(statex.StatusClosed, now)
		conv.Append("sweep", "closed after unanswered follow-ups", now)
		handle.Commit(conv)
		log.Info().Str("conversation_id", id).Msg("conversation closed by sweep")
		go e.writeThrough(conv)
		defer e.registry.Evict(id)

	case next == statex.StatusFollowedUp:
		turn := &nodes.Turn{Conv: conv, Now: now}
		if _, err := e.followUp.Execute(ctx, turn); err != nil {
			log.Warn().Err(err).Str("conversation_id", id).Msg("follow-up failed")
			return
		}
		reply, err := nodes.ComposeReply(turn)
		if err != nil {
			log.Warn().Err(err).Str("conversation_id", id).Msg("follow-up compose failed")
			return
		}
		conv.ApplyStatus(statex.StatusFollowedUp, now)
		conv.Append("sweep", reply.Reply, now)
		handle.Commit(conv)
		e.deliver(ctx, reply)
		log.Info().Str("conversation_id", id).Int("follow_ups", conv.FollowUps).Msg("follow-up sent")

	case next == statex.StatusStalled && conv.Status != statex.StatusStalled:
		conv.ApplyStatus(statex.StatusStalled, now)
		conv.Append("sweep", "conversation stalled", now)
		handle.Commit(conv)
		log.Debug().Str("conversation_id", id).Str("prior", string(conv.PriorStatus)).Msg("conversation stalled")
	}
}
