package skill

import (
	"context"
	"errors"
	"fmt"

	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/models"
)

// ErrContract indicates parsed skill output that is missing required content.
var ErrContract = errors.New("skill contract violation")

const formulationSystemPrompt = `You are the intake formulator of a multi-agent negotiation engine.
Turn the requester's raw demand into a precise structured demand.

Respond with a single JSON object:
{
  "intent": "one sentence stating what the requester needs",
  "constraints": ["hard requirement", ...],
  "preferences": ["soft requirement", ...],
  "context": {"domain": "...", "budget": "...", ...},
  "enrichments": ["need the requester implied but did not state", ...]
}

Rules:
- "intent" is mandatory and must be a single sentence.
- Put only non-negotiable requirements in "constraints"; everything softer goes in "preferences".
- "context" keys are free-form but short (domain, budget, timeline, team_size, ...).
- Add an enrichment only when it clearly follows from the demand. Do not pad.
- Output the JSON object and nothing else.`

// Formulation is the production Formulator: one completion on the central
// client per call.
type Formulation struct {
	client llm.Client
}

var _ Formulator = (*Formulation)(nil)

// NewFormulation creates the skill. Panics if client is nil.
func NewFormulation(client llm.Client) *Formulation {
	if client == nil {
		panic("skill.NewFormulation: client must not be nil")
	}
	return &Formulation{client: client}
}

// Formulate implements Formulator.
func (f *Formulation) Formulate(ctx context.Context, in FormulationInput) (*models.FormulatedDemand, error) {
	if in.RawDemand == "" {
		return nil, fmt.Errorf("%w: raw demand is empty", ErrContract)
	}

	user := fmt.Sprintf("Requester: %s\n\nDemand:\n%s", in.Requester, in.RawDemand)
	resp, err := f.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: formulationSystemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: user}},
	})
	if err != nil {
		return nil, fmt.Errorf("formulation: %w", err)
	}

	var demand models.FormulatedDemand
	if err := decodeJSON("formulation", resp.Content, &demand); err != nil {
		return nil, err
	}
	if demand.Intent == "" {
		return nil, fmt.Errorf("%w: formulation returned no intent", ErrContract)
	}
	return &demand, nil
}
