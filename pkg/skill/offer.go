package skill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parley-ai/parley/pkg/channel"
	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/models"
)

const offerInstructions = `A requester has posted the demand below. Decide whether YOU can genuinely contribute, based strictly on your own capabilities and background.

Respond with a single JSON object:
{
  "offer_text": "what you concretely offer to do, or why you decline",
  "confidence": 0.0,
  "declined": false,
  "capabilities": ["capability of yours that applies", ...],
  "constraints": ["condition you attach to the offer", ...]
}

Rules:
- "confidence" is your honest fit estimate in [0,1].
- If your capabilities and background give you no relevant basis, set "declined": true with a low confidence and say so plainly. Never invent experience.
- Keep "capabilities" limited to ones you actually listed in your profile.
- Output the JSON object and nothing else.`

// offerPayload mirrors the JSON contract of an offer response.
type offerPayload struct {
	OfferText    string   `json:"offer_text"`
	Confidence   float64  `json:"confidence"`
	Declined     bool     `json:"declined"`
	Capabilities []string `json:"capabilities,omitempty"`
	Constraints  []string `json:"constraints,omitempty"`
}

// OfferSkill solicits one offer per call on the agent's own channel. The
// channel supplies the agent's persona; this skill supplies the demand and
// the response contract.
type OfferSkill struct {
	channel channel.Channel
}

var _ OfferSolicitor = (*OfferSkill)(nil)

// NewOfferSkill creates the skill. Panics if ch is nil.
func NewOfferSkill(ch channel.Channel) *OfferSkill {
	if ch == nil {
		panic("skill.NewOfferSkill: channel must not be nil")
	}
	return &OfferSkill{channel: ch}
}

// Solicit implements OfferSolicitor.
func (s *OfferSkill) Solicit(ctx context.Context, in OfferInput) (*models.Offer, error) {
	if in.Demand == nil {
		return nil, fmt.Errorf("%w: offer input has no demand", ErrContract)
	}

	user := renderDemand(in.Demand) + "\n\n" + offerInstructions
	reply, err := s.channel.Chat(ctx, in.AgentID, []llm.Message{
		{Role: llm.RoleUser, Content: user},
	})
	if err != nil {
		return nil, fmt.Errorf("offer from %s: %w", in.AgentID, err)
	}

	var payload offerPayload
	if err := decodeJSON("offer", reply, &payload); err != nil {
		return nil, err
	}
	if payload.OfferText == "" {
		return nil, fmt.Errorf("%w: offer from %s has no offer_text", ErrContract, in.AgentID)
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return nil, fmt.Errorf("%w: offer from %s has confidence %v outside [0,1]",
			ErrContract, in.AgentID, payload.Confidence)
	}

	return &models.Offer{
		AgentID:      in.AgentID,
		Text:         payload.OfferText,
		Confidence:   payload.Confidence,
		Declined:     payload.Declined,
		Capabilities: payload.Capabilities,
		Constraints:  payload.Constraints,
		ReceivedAt:   time.Now().UTC(),
	}, nil
}

// renderDemand renders a formulated demand as prompt text. Shared by the
// offer, coordinator, and sub-negotiation skills so every participant sees
// the same statement of the need.
func renderDemand(d *models.FormulatedDemand) string {
	var b strings.Builder
	b.WriteString("## Demand\n")
	b.WriteString(d.Intent)
	if len(d.Constraints) > 0 {
		b.WriteString("\n\nConstraints:\n")
		for _, c := range d.Constraints {
			b.WriteString("- ")
			b.WriteString(c)
			b.WriteString("\n")
		}
	}
	if len(d.Preferences) > 0 {
		b.WriteString("\nPreferences:\n")
		for _, p := range d.Preferences {
			b.WriteString("- ")
			b.WriteString(p)
			b.WriteString("\n")
		}
	}
	if len(d.Context) > 0 {
		b.WriteString("\nContext:\n")
		for _, k := range sortedKeys(d.Context) {
			fmt.Fprintf(&b, "- %s: %s\n", k, d.Context[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
