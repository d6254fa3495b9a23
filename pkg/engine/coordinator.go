package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/models"
	"github.com/parley-ai/parley/pkg/skill"
)

// resultSummaryLimit caps the result text carried on center.tool_call
// events. The full result stays in the coordinator turn.
const resultSummaryLimit = 200

// synthState carries the mutable loop state one synthesis run owns.
type synthState struct {
	recursionDepth int
	plan           *models.Plan
}

// synthesise runs the coordinator loop: round 1 under the full tool set,
// rounds 2..M restricted, and a forced output_plan-only call when the budget
// runs out without a plan. A failed round consumes its slot of the budget.
func (e *Engine) synthesise(ctx context.Context, sess *models.NegotiationSession, log *slog.Logger) (*models.Plan, error) {
	state := &synthState{}
	maxRounds := e.settings.MaxCoordinatorRounds
	var lastErr error

	// With nobody at the table there is nothing to interrogate: skip straight
	// to a forced conclusion over the (empty) offer set.
	if len(sess.Participants) == 0 {
		log.Info("No participants selected, forcing conclusion")
		if err := e.runRound(ctx, sess, state, 1, skill.ModeFinal, log); err != nil {
			return nil, classify("coordinator", err)
		}
		if state.plan == nil {
			return nil, &Error{
				Kind: KindContractViolation,
				Op:   "coordinator",
				Err:  fmt.Errorf("forced conclusion produced no plan"),
			}
		}
		state.plan.Degraded = true
		return state.plan, nil
	}

	for round := 1; round <= maxRounds; round++ {
		if err := e.interrupted(ctx, sess); err != nil {
			return nil, err
		}

		mode := skill.ModeRestricted
		if round == 1 {
			mode = skill.ModeFull
		}
		if err := e.runRound(ctx, sess, state, round, mode, log); err != nil {
			if interr := e.interrupted(ctx, sess); interr != nil {
				return nil, interr
			}
			log.Warn("Coordinator round failed", "round", round, "error", err)
			lastErr = err
			continue
		}
		if state.plan != nil {
			return state.plan, nil
		}
	}

	// Budget exhausted without a plan: force a final call that may only
	// invoke output_plan.
	log.Info("Coordinator budget exhausted, forcing conclusion",
		"max_rounds", maxRounds, "last_error", lastErr)
	if err := e.runRound(ctx, sess, state, maxRounds+1, skill.ModeFinal, log); err != nil {
		return nil, classify("coordinator", err)
	}
	if state.plan == nil {
		return nil, &Error{
			Kind: KindContractViolation,
			Op:   "coordinator",
			Err:  fmt.Errorf("forced conclusion produced no plan"),
		}
	}
	state.plan.Degraded = true
	return state.plan, nil
}

// runRound executes one coordinator round: one skill call, then dispatch of
// every returned tool call. The turn (reasoning first, then calls and
// results) is appended to session history before dispatch so later rounds
// and sub-calls observe it.
func (e *Engine) runRound(ctx context.Context, sess *models.NegotiationSession, state *synthState, round int, mode skill.ToolMode, log *slog.Logger) error {
	result, err := e.coordinator.Round(ctx, skill.CoordinatorInput{
		Demand:       sess.Demand,
		Participants: sess.Participants,
		Offers:       sess.Offers,
		History:      sess.Turns,
		Round:        round,
		Mode:         mode,
	})
	if err != nil {
		return classify("coordinator", err)
	}

	turn := &models.CoordinatorTurn{Round: round, Reasoning: result.Reasoning}
	sess.Update(func() { sess.Turns = append(sess.Turns, turn) })

	for _, call := range result.ToolCalls {
		if state.plan != nil {
			// output_plan closed the loop; later calls in the same turn are
			// ignored, not dispatched and not announced.
			log.Debug("Ignoring tool call after output_plan",
				"round", round, "tool", call.Name)
			continue
		}

		// The turn is already visible to snapshots, so its call records are
		// appended under the session lock too. The lock is not held across
		// executeTool, which may block on an agent.
		sess.Update(func() { turn.ToolCalls = append(turn.ToolCalls, call) })
		res := e.executeTool(ctx, sess, state, call, log)
		sess.Update(func() { turn.ToolResults = append(turn.ToolResults, res) })
		e.publish(sess, events.EventCenterToolCall, events.ToolCallPayload{
			Round:         round,
			ToolName:      call.Name,
			Arguments:     call.Arguments,
			ResultSummary: summarize(res),
		})
	}

	sess.Trace.Append(models.TraceCoordinatorRound, turn)
	return nil
}

// executeTool dispatches one tool call against the engine's local handlers.
// Tool-level failures come back as error results, never as session errors:
// the coordinator sees them next round and the loop continues.
func (e *Engine) executeTool(ctx context.Context, sess *models.NegotiationSession, state *synthState, call models.ToolInvocation, log *slog.Logger) models.ToolResult {
	res := models.ToolResult{CallID: call.ID, Name: call.Name}

	switch call.Name {
	case skill.ToolAskAgent:
		res = e.toolAskAgent(ctx, sess, call)
	case skill.ToolStartDiscovery:
		res = e.toolStartDiscovery(ctx, sess, call)
	case skill.ToolRecurseOnGap:
		res = e.toolRecurseOnGap(ctx, sess, state, call)
	case skill.ToolRequestUserClarification:
		res = e.toolRequestClarification(sess, call)
	case skill.ToolOutputPlan:
		plan, err := skill.ParsePlan(call.Arguments)
		if err != nil {
			res.IsError = true
			res.Content = fmt.Sprintf("invalid plan: %v", err)
		} else {
			state.plan = plan
			res.Content = "plan accepted"
		}
	default:
		res.IsError = true
		res.Content = fmt.Sprintf("unknown tool %q", call.Name)
	}

	if res.IsError {
		log.Warn("Tool call failed", "tool", call.Name, "result", res.Content)
	}
	return res
}

func (e *Engine) toolAskAgent(ctx context.Context, sess *models.NegotiationSession, call models.ToolInvocation) models.ToolResult {
	res := models.ToolResult{CallID: call.ID, Name: call.Name}

	var args skill.AskAgentArgs
	if err := skill.ParseToolArgs(call, &args); err != nil {
		res.IsError = true
		res.Content = err.Error()
		return res
	}
	if strings.TrimSpace(args.Question) == "" {
		// Empty question: a no-op, not dispatched to the agent.
		res.Content = "no-op: empty question"
		return res
	}
	p := sess.Participant(args.AgentID)
	if p == nil {
		res.IsError = true
		res.Content = fmt.Sprintf("unknown agent id %q: not a participant of this negotiation", args.AgentID)
		return res
	}

	askCtx, cancel := context.WithTimeout(ctx, e.settings.PerOfferTimeout())
	defer cancel()
	answer, err := e.channel.Chat(askCtx, args.AgentID, []llm.Message{
		{Role: llm.RoleUser, Content: args.Question},
	})
	if err != nil {
		res.IsError = true
		res.Content = fmt.Sprintf("agent %s unavailable: %v", args.AgentID, err)
		return res
	}
	res.Content = answer
	return res
}

func (e *Engine) toolStartDiscovery(ctx context.Context, sess *models.NegotiationSession, call models.ToolInvocation) models.ToolResult {
	res := models.ToolResult{CallID: call.ID, Name: call.Name}

	var args skill.StartDiscoveryArgs
	if err := skill.ParseToolArgs(call, &args); err != nil {
		res.IsError = true
		res.Content = err.Error()
		return res
	}
	if len(args.ParticipantIDs) == 0 {
		res.IsError = true
		res.Content = "start_discovery requires at least one participant id"
		return res
	}

	subset := make([]*models.AgentParticipant, 0, len(args.ParticipantIDs))
	offers := make([]*models.Offer, 0, len(args.ParticipantIDs))
	for _, id := range args.ParticipantIDs {
		p := sess.Participant(id)
		if p == nil {
			res.IsError = true
			res.Content = fmt.Sprintf("invalid subset: %q is not a participant of this negotiation", id)
			return res
		}
		subset = append(subset, p)
		for _, o := range sess.Offers {
			if o.AgentID == id {
				offers = append(offers, o)
			}
		}
	}

	// Rounds run strictly sequentially and this call blocks, so at most one
	// sub-negotiation is ever in flight per parent session.
	finding, err := e.subNegotiator.Negotiate(ctx, skill.SubNegotiationInput{
		Topic:        args.Topic,
		Participants: subset,
		Offers:       offers,
	})
	if err != nil {
		res.IsError = true
		res.Content = fmt.Sprintf("sub-negotiation failed: %v", err)
		return res
	}
	res.Content = skill.RenderFinding(finding)
	return res
}

func (e *Engine) toolRecurseOnGap(ctx context.Context, sess *models.NegotiationSession, state *synthState, call models.ToolInvocation) models.ToolResult {
	res := models.ToolResult{CallID: call.ID, Name: call.Name}

	var args skill.RecurseOnGapArgs
	if err := skill.ParseToolArgs(call, &args); err != nil {
		res.IsError = true
		res.Content = err.Error()
		return res
	}
	if state.recursionDepth >= e.settings.RecursionMaxDepth {
		res.IsError = true
		res.Content = fmt.Sprintf("recursion depth limit (%d) reached", e.settings.RecursionMaxDepth)
		return res
	}
	state.recursionDepth++

	// A nested mini-formulation over the gap. Its product feeds back as a
	// tool result; it does not spawn a full nested session.
	gap, err := e.formulator.Formulate(ctx, skill.FormulationInput{
		Requester: sess.Requester,
		RawDemand: args.Description,
	})
	if err != nil {
		res.IsError = true
		res.Content = fmt.Sprintf("gap formulation failed: %v", err)
		return res
	}
	var b strings.Builder
	fmt.Fprintf(&b, "gap formulated: %s", gap.Intent)
	for _, c := range gap.Constraints {
		b.WriteString("\nconstraint: ")
		b.WriteString(c)
	}
	res.Content = b.String()
	return res
}

func (e *Engine) toolRequestClarification(sess *models.NegotiationSession, call models.ToolInvocation) models.ToolResult {
	res := models.ToolResult{CallID: call.ID, Name: call.Name}

	var args skill.ClarificationArgs
	if err := skill.ParseToolArgs(call, &args); err != nil {
		res.IsError = true
		res.Content = err.Error()
		return res
	}
	if strings.TrimSpace(args.Question) == "" {
		res.Content = "no-op: empty question"
		return res
	}

	// Delivery to the requester is deferred: the question is recorded on the
	// session for the host application to surface.
	sess.Update(func() { sess.Clarifications = append(sess.Clarifications, args.Question) })
	res.Content = "clarification recorded; the requester will be asked out of band. Continue with stated assumptions."
	return res
}

// summarize renders a tool result for the center.tool_call event. The cut
// backs off to a rune boundary so the summary stays valid UTF-8.
func summarize(res models.ToolResult) string {
	content := res.Content
	if len(content) > resultSummaryLimit {
		cut := resultSummaryLimit
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + "..."
	}
	if res.IsError {
		return "tool-error: " + content
	}
	return content
}
