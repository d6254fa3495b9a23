package skill

import (
	"context"
	"fmt"
	"strings"

	"github.com/parley-ai/parley/pkg/llm"
)

const subNegotiationSystemPrompt = `You moderate a scoped sub-negotiation between a subset of agents about one defined topic. You do not plan; you reduce their positions to a structured finding.

Respond with a single JSON object:
{
  "agreement": "what the participants agree on, relative to the topic",
  "disagreement": "where they conflict, or an empty string",
  "open_questions": ["point neither their offers nor the topic settles", ...]
}

Rules:
- Stay inside the topic; ignore parts of the offers that do not bear on it.
- Attribute positions by agent id where it matters.
- Output the JSON object and nothing else.`

// SubNegotiationSkill is the production SubNegotiator: one completion on the
// central client per discovery topic.
type SubNegotiationSkill struct {
	client llm.Client
}

var _ SubNegotiator = (*SubNegotiationSkill)(nil)

// NewSubNegotiationSkill creates the skill. Panics if client is nil.
func NewSubNegotiationSkill(client llm.Client) *SubNegotiationSkill {
	if client == nil {
		panic("skill.NewSubNegotiationSkill: client must not be nil")
	}
	return &SubNegotiationSkill{client: client}
}

// Negotiate implements SubNegotiator.
func (s *SubNegotiationSkill) Negotiate(ctx context.Context, in SubNegotiationInput) (*Finding, error) {
	if in.Topic == "" {
		return nil, fmt.Errorf("%w: sub-negotiation has no topic", ErrContract)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Topic\n%s\n\n", in.Topic)
	b.WriteString(renderOffers(in.Participants, in.Offers))

	reply, err := s.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: subNegotiationSystemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
	})
	if err != nil {
		return nil, fmt.Errorf("sub-negotiation %q: %w", in.Topic, err)
	}

	var finding Finding
	if err := decodeJSON("sub_negotiation", reply.Content, &finding); err != nil {
		return nil, err
	}
	if finding.Agreement == "" && finding.Disagreement == "" {
		return nil, fmt.Errorf("%w: sub-negotiation produced neither agreement nor disagreement", ErrContract)
	}
	return &finding, nil
}

// RenderFinding renders a finding as a tool-result text block. The invoking
// round's tool result carries this verbatim, which is how the finding enters
// the coordinator's next-round view.
func RenderFinding(f *Finding) string {
	var b strings.Builder
	b.WriteString("agreement: ")
	b.WriteString(f.Agreement)
	if f.Disagreement != "" {
		b.WriteString("\ndisagreement: ")
		b.WriteString(f.Disagreement)
	}
	for _, q := range f.OpenQuestions {
		b.WriteString("\nopen question: ")
		b.WriteString(q)
	}
	return b.String()
}
