package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/models"
	"github.com/parley-ai/parley/pkg/skill"
)

// Run drives one session from CREATED to COMPLETED. It blocks until the
// terminal event has been published. The caller's ctx carries external
// cancellation; the session wall clock is enforced on top of it.
//
// Run is the sole mutator of sess. It must be called exactly once per
// session.
func (e *Engine) Run(ctx context.Context, sess *models.NegotiationSession) {
	ctx, cancel := context.WithTimeout(ctx, e.settings.SessionWallClock())
	defer cancel()

	log := slog.With("negotiation_id", sess.ID, "requester", sess.Requester)
	log.Info("Negotiation started")

	err := e.drive(ctx, sess, log)
	e.finalize(sess, err, log)
}

// drive walks the lifecycle DAG. Any returned error ends the session; the
// caller turns it into the terminal event.
func (e *Engine) drive(ctx context.Context, sess *models.NegotiationSession, log *slog.Logger) error {
	// CREATED -> FORMULATING
	if err := e.transition(sess, models.StateFormulating); err != nil {
		return err
	}
	demand, err := e.formulator.Formulate(ctx, skill.FormulationInput{
		Requester: sess.Requester,
		RawDemand: sess.RawDemand,
	})
	if err != nil {
		return classify("formulate", err)
	}
	sess.Update(func() { sess.Demand = demand })
	sess.Trace.Append(models.TraceFormulated, demand)
	e.publish(sess, events.EventFormulationReady, demand)
	log.Info("Demand formulated", "intent", demand.Intent)

	if err := e.transition(sess, models.StateFormulated); err != nil {
		return err
	}
	if err := e.interrupted(ctx, sess); err != nil {
		return err
	}

	// FORMULATED -> ENCODING: encode views, rank, select participants.
	if err := e.transition(sess, models.StateEncoding); err != nil {
		return err
	}
	matches, err := e.matcher.Rank(ctx, demand, e.registry.Profiles())
	if err != nil {
		return classify("resonance", err)
	}
	ranks := make([]events.ParticipantRank, 0, len(matches))
	selected := make([]*models.AgentParticipant, 0, len(matches))
	for _, m := range matches {
		selected = append(selected, &models.AgentParticipant{
			AgentID:        m.AgentID,
			DisplayName:    m.DisplayName,
			Score:          m.Score,
			ScoreBreakdown: m.Breakdown,
			State:          models.ParticipantPending,
		})
		ranks = append(ranks, events.ParticipantRank{
			AgentID:     m.AgentID,
			DisplayName: m.DisplayName,
			Score:       m.Score,
			Breakdown:   m.Breakdown,
		})
	}
	sess.Update(func() { sess.Participants = selected })
	sess.Trace.Append(models.TraceResonanceComputed, ranks)
	e.publish(sess, events.EventResonanceActivated, ranks)
	log.Info("Resonance computed", "selected", len(matches))

	if err := e.interrupted(ctx, sess); err != nil {
		return err
	}

	// ENCODING -> OFFERING -> BARRIER_WAITING: parallel fan-out, then barrier.
	if err := e.transition(sess, models.StateOffering); err != nil {
		return err
	}
	if err := e.collectOffers(ctx, sess, log); err != nil {
		return err
	}
	if err := e.transition(sess, models.StateBarrierWaiting); err != nil {
		return err
	}
	e.publish(sess, events.EventBarrierComplete, barrierCounts(sess))

	if err := e.interrupted(ctx, sess); err != nil {
		return err
	}

	// BARRIER_WAITING -> SYNTHESISING: the coordinator loop.
	if err := e.transition(sess, models.StateSynthesising); err != nil {
		return err
	}
	plan, err := e.synthesise(ctx, sess, log)
	if err != nil {
		return err
	}
	sess.Update(func() { sess.Plan = plan })
	sess.Trace.Append(models.TracePlanEmitted, plan)
	e.publish(sess, events.EventPlanReady, plan)
	log.Info("Plan ready", "assignments", len(plan.Assignments), "degraded", plan.Degraded)
	return nil
}

// finalize force-transitions to COMPLETED and publishes exactly one
// terminal event. Cancellation wins over any error it caused downstream.
func (e *Engine) finalize(sess *models.NegotiationSession, err error, log *slog.Logger) {
	if terr := e.transition(sess, models.StateCompleted); terr != nil {
		// CanTransition always allows -> COMPLETED from non-terminal states;
		// reaching this means Run was called on a finished session.
		log.Error("Finalize on terminated session", "error", terr)
		return
	}

	switch {
	case err == nil:
		sess.Update(func() { sess.Outcome = models.OutcomeSuccess })
		e.publish(sess, events.EventNegotiationCompleted, events.TerminalPayload{
			Outcome: models.OutcomeSuccess,
		})
		log.Info("Negotiation completed")

	case sess.Cancelled() || errors.Is(err, context.Canceled):
		sess.Update(func() {
			sess.Outcome = models.OutcomeCancelled
			sess.ErrorDetail = err.Error()
		})
		sess.Trace.Append(models.TraceError, err.Error())
		e.publish(sess, events.EventNegotiationCancelled, events.TerminalPayload{
			Outcome: models.OutcomeCancelled,
			Detail:  err.Error(),
		})
		log.Info("Negotiation cancelled")

	default:
		sess.Update(func() {
			sess.Outcome = models.OutcomeError
			sess.ErrorDetail = err.Error()
		})
		sess.Trace.Append(models.TraceError, err.Error())
		e.publish(sess, events.EventNegotiationError, events.TerminalPayload{
			Outcome: models.OutcomeError,
			Detail:  err.Error(),
		})
		log.Error("Negotiation failed", "error", err)
	}
}

// interrupted reports external cancellation or an expired session clock.
func (e *Engine) interrupted(ctx context.Context, sess *models.NegotiationSession) error {
	if sess.Cancelled() {
		return &Error{Kind: KindCancelled, Op: "session", Err: context.Canceled}
	}
	if err := ctx.Err(); err != nil {
		return classify("session", err)
	}
	return nil
}

// offerOutcome is one settled offer task.
type offerOutcome struct {
	agentID string
	offer   *models.Offer
	err     error
}

// collectOffers fans out one task per participant and waits for all of them
// to settle. Offers are published as they arrive; per-agent failures mark
// the participant and never fail the session. Only session-level
// cancellation or deadline aborts the barrier.
func (e *Engine) collectOffers(ctx context.Context, sess *models.NegotiationSession, log *slog.Logger) error {
	participants := sess.Participants
	if len(participants) == 0 {
		return nil
	}

	results := make(chan offerOutcome, len(participants))
	for _, p := range participants {
		go func(agentID string) {
			offerCtx, cancel := context.WithTimeout(ctx, e.settings.PerOfferTimeout())
			defer cancel()
			offer, err := e.offers.Solicit(offerCtx, skill.OfferInput{
				Demand:  sess.Demand,
				AgentID: agentID,
			})
			results <- offerOutcome{agentID: agentID, offer: offer, err: err}
		}(p.AgentID)
	}

	for settled := 0; settled < len(participants); settled++ {
		select {
		case out := <-results:
			e.settleOffer(sess, out, ctx.Err() == nil, log)
		case <-ctx.Done():
			// Session cancelled or out of wall clock: in-flight tasks share
			// ctx and unwind on their own. The terminal event must not wait
			// for tasks that may swallow their interruption.
			return e.interrupted(ctx, sess)
		}
	}
	return nil
}

// settleOffer applies one settled offer task to the session. Each
// participant settles exactly once.
func (e *Engine) settleOffer(sess *models.NegotiationSession, out offerOutcome, sessionLive bool, log *slog.Logger) {
	p := sess.Participant(out.agentID)
	if p == nil || p.State.Settled() {
		return
	}

	switch {
	case out.err == nil:
		sess.Update(func() {
			p.State = models.ParticipantOffered
			p.Confidence = &out.offer.Confidence
			sess.Offers = append(sess.Offers, out.offer)
		})
		payload := events.OfferPayload{
			AgentID:    out.offer.AgentID,
			Text:       out.offer.Text,
			Confidence: out.offer.Confidence,
			Declined:   out.offer.Declined,
		}
		sess.Trace.Append(models.TraceOfferReceived, payload)
		e.publish(sess, events.EventOfferReceived, payload)
		log.Info("Offer received",
			"agent_id", out.agentID, "confidence", out.offer.Confidence, "declined", out.offer.Declined)

	case errors.Is(out.err, context.DeadlineExceeded) && sessionLive:
		sess.Update(func() { p.State = models.ParticipantTimedOut })
		log.Warn("Offer timed out", "agent_id", out.agentID)

	default:
		sess.Update(func() { p.State = models.ParticipantExited })
		log.Warn("Offer failed", "agent_id", out.agentID, "error", out.err)
	}
}

// barrierCounts tallies how the selected participants settled.
func barrierCounts(sess *models.NegotiationSession) events.BarrierPayload {
	var counts events.BarrierPayload
	for _, p := range sess.Participants {
		switch p.State {
		case models.ParticipantOffered:
			counts.Offered++
		case models.ParticipantTimedOut:
			counts.TimedOut++
		case models.ParticipantExited:
			counts.Exited++
		}
	}
	return counts
}
