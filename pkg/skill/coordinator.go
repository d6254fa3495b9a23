package skill

import (
	"context"
	"fmt"
	"strings"

	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/models"
)

const coordinatorSystemPrompt = `You are the central coordinator of a multi-agent negotiation. A requester posted a demand; relevant agents have responded with offers. Your job is to resolve the demand into one concrete plan.

You act ONLY through tool calls. Every round, either invoke tools to acquire the information you still need, or invoke output_plan to conclude. Plain text you write is recorded as reasoning but changes nothing by itself.

Principles:
- Interrogate before you assume: if an offer is vague, ask_agent.
- Assign work only to participants listed in this negotiation, by their agent id.
- Prefer a concrete, degradation-honest plan over a speculative complete one.
- Unresolved points go in the plan's open_questions, not under the rug.`

const fullModeInstructions = `All tools are available this round, including start_discovery and recurse_on_gap. Broad moves (discovery, recursion) are only possible now; later rounds are limited to questioning and concluding.`

const restrictedModeInstructions = `Restricted round: you may only ask_agent, request_user_clarification, or output_plan. If you have enough information, conclude with output_plan.`

const finalModeInstructions = `Final round: you MUST invoke output_plan now, using everything gathered so far. No other tool is available. If information is missing, state assumptions in the summary and list the gaps in open_questions.`

// offerMaskNote explains the redaction to the model so it reaches for tools
// instead of guessing at the hidden text.
const offerMaskNote = "Offer texts are redacted after round 1. Rely on your recorded reasoning and tool results; use ask_agent to re-acquire any detail you failed to note."

// CoordinatorSkill is the production Coordinator: one tool-use completion on
// the central client per round. After round 1 it masks raw offer text out of
// its own prompt; the engine never builds coordinator prompts itself.
type CoordinatorSkill struct {
	client llm.Client
}

var _ Coordinator = (*CoordinatorSkill)(nil)

// NewCoordinatorSkill creates the skill. Panics if client is nil.
func NewCoordinatorSkill(client llm.Client) *CoordinatorSkill {
	if client == nil {
		panic("skill.NewCoordinatorSkill: client must not be nil")
	}
	return &CoordinatorSkill{client: client}
}

// Round implements Coordinator.
func (c *CoordinatorSkill) Round(ctx context.Context, in CoordinatorInput) (*CoordinatorResult, error) {
	if in.Demand == nil {
		return nil, fmt.Errorf("%w: coordinator input has no demand", ErrContract)
	}

	resp, err := c.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: coordinatorSystemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: buildRoundPrompt(in)}},
		Tools:        Tools(in.Mode),
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator round %d: %w", in.Round, err)
	}

	result := &CoordinatorResult{Reasoning: resp.Content}
	for _, tc := range resp.ToolCalls {
		if !Allowed(in.Mode, tc.Name) {
			// The model reached for a tool outside this round's set. Drop it
			// here rather than surfacing an out-of-contract call to the engine.
			continue
		}
		result.ToolCalls = append(result.ToolCalls, models.ToolInvocation{
			ID:        tc.ID,
			Name:      tc.Name,
			Arguments: tc.Arguments,
		})
	}
	return result, nil
}

// buildRoundPrompt renders the user message for one round: demand, offers
// (verbatim only in round 1), and the coordinator's own history. All
// observation masking lives here.
func buildRoundPrompt(in CoordinatorInput) string {
	var b strings.Builder
	b.WriteString(renderDemand(in.Demand))
	b.WriteString("\n\n")

	if in.Round <= 1 {
		b.WriteString(renderOffers(in.Participants, in.Offers))
	} else {
		b.WriteString(renderMaskedOffers(in.Participants))
	}

	if len(in.History) > 0 {
		b.WriteString("\n\n")
		b.WriteString(renderHistory(in.History))
	}

	fmt.Fprintf(&b, "\n\n## Round %d\n", in.Round)
	switch in.Mode {
	case ModeFull:
		b.WriteString(fullModeInstructions)
	case ModeRestricted:
		b.WriteString(restrictedModeInstructions)
	default:
		b.WriteString(finalModeInstructions)
	}
	return b.String()
}

// renderOffers renders the full offer texts. Round 1 only.
func renderOffers(participants []*models.AgentParticipant, offers []*models.Offer) string {
	if len(offers) == 0 {
		return "## Offers\nNo participant produced an offer. Conclude accordingly; do not invent participants."
	}

	byID := make(map[string]*models.AgentParticipant, len(participants))
	for _, p := range participants {
		byID[p.AgentID] = p
	}

	var b strings.Builder
	b.WriteString("## Offers\n")
	for _, o := range offers {
		name := o.AgentID
		if p := byID[o.AgentID]; p != nil {
			name = fmt.Sprintf("%s (agent id: %s)", p.DisplayName, p.AgentID)
		}
		fmt.Fprintf(&b, "\n### %s — confidence %.2f", name, o.Confidence)
		if o.Declined {
			b.WriteString(" — DECLINED")
		}
		b.WriteString("\n")
		b.WriteString(o.Text)
		b.WriteString("\n")
		if len(o.Capabilities) > 0 {
			fmt.Fprintf(&b, "Applied capabilities: %s\n", strings.Join(o.Capabilities, ", "))
		}
		if len(o.Constraints) > 0 {
			fmt.Fprintf(&b, "Attached constraints: %s\n", strings.Join(o.Constraints, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderMaskedOffers renders the redacted per-participant summary used from
// round 2 onward: identity, state, and confidence, never the offer text.
func renderMaskedOffers(participants []*models.AgentParticipant) string {
	var b strings.Builder
	b.WriteString("## Participants (offers redacted)\n")
	b.WriteString(offerMaskNote)
	b.WriteString("\n")
	for _, p := range participants {
		fmt.Fprintf(&b, "\n- %s (agent id: %s) — %s", p.DisplayName, p.AgentID, p.State)
		if p.Confidence != nil {
			fmt.Fprintf(&b, ", confidence %.2f", *p.Confidence)
		}
	}
	return b.String()
}

// renderHistory renders the coordinator's prior turns: its own reasoning and
// the results of the tools it invoked.
func renderHistory(turns []*models.CoordinatorTurn) string {
	var b strings.Builder
	b.WriteString("## Your prior rounds\n")
	for _, turn := range turns {
		fmt.Fprintf(&b, "\n### Round %d\n", turn.Round)
		if turn.Reasoning != "" {
			b.WriteString("Reasoning: ")
			b.WriteString(turn.Reasoning)
			b.WriteString("\n")
		}
		for i, tc := range turn.ToolCalls {
			fmt.Fprintf(&b, "Tool call: %s(%s)\n", tc.Name, tc.Arguments)
			if i < len(turn.ToolResults) {
				res := turn.ToolResults[i]
				if res.IsError {
					fmt.Fprintf(&b, "Tool error: %s\n", res.Content)
				} else {
					fmt.Fprintf(&b, "Result: %s\n", res.Content)
				}
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
