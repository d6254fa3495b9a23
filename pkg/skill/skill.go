// Package skill holds the four bounded prompt protocols of the negotiation
// engine: Formulation, Offer, Coordinator, and SubNegotiation. Every prompt
// and tool schema lives here; the engine only dispatches tool calls by name.
//
// Each skill is a function from a typed input to a typed result. Model
// output may arrive wrapped in code fences or surrounded by prose; parsing
// is permissive on framing and strict on content.
package skill

import (
	"context"

	"github.com/parley-ai/parley/pkg/models"
)

// FormulationInput is the input to one formulation call.
type FormulationInput struct {
	Requester string
	RawDemand string
}

// Formulator turns a raw demand into a structured one. One LLM call, once
// per session.
type Formulator interface {
	Formulate(ctx context.Context, in FormulationInput) (*models.FormulatedDemand, error)
}

// OfferInput is the input to one offer solicitation, scoped to one agent.
type OfferInput struct {
	Demand  *models.FormulatedDemand
	AgentID string
}

// OfferSolicitor asks one agent for an offer on that agent's own channel.
type OfferSolicitor interface {
	Solicit(ctx context.Context, in OfferInput) (*models.Offer, error)
}

// ToolMode selects which tool set a coordinator round runs under.
type ToolMode int

const (
	// ModeFull exposes all five tools. Round 1 only.
	ModeFull ToolMode = iota
	// ModeRestricted excludes discovery and recursion: the coordinator must
	// either question further or conclude. Rounds 2..M.
	ModeRestricted
	// ModeFinal exposes output_plan alone; used to force a conclusion when
	// the round budget is exhausted.
	ModeFinal
)

// CoordinatorInput is the input to one coordinator round.
//
// Offers carries the raw offers, but the skill only renders them verbatim in
// round 1; later rounds see a redacted summary plus the coordinator's own
// prior reasoning and tool results from History. That masking is this
// skill's responsibility, not the engine's.
type CoordinatorInput struct {
	Demand       *models.FormulatedDemand
	Participants []*models.AgentParticipant
	Offers       []*models.Offer
	History      []*models.CoordinatorTurn
	Round        int
	Mode         ToolMode
}

// CoordinatorResult is one reasoning turn: free-text reasoning plus the tool
// invocations the model requested. The terminal output_plan arrives as a
// tool call like any other; the engine recognises it by name.
type CoordinatorResult struct {
	Reasoning string
	ToolCalls []models.ToolInvocation
}

// Coordinator runs the central tool-use reasoning loop, one round per call.
type Coordinator interface {
	Round(ctx context.Context, in CoordinatorInput) (*CoordinatorResult, error)
}

// SubNegotiationInput scopes a discovery run to a topic and a participant
// subset.
type SubNegotiationInput struct {
	Topic        string
	Participants []*models.AgentParticipant
	Offers       []*models.Offer
}

// Finding is the structured outcome of a sub-negotiation.
type Finding struct {
	Agreement     string   `json:"agreement"`
	Disagreement  string   `json:"disagreement"`
	OpenQuestions []string `json:"open_questions,omitempty"`
}

// SubNegotiator resolves a scoped discovery topic over a participant subset.
type SubNegotiator interface {
	Negotiate(ctx context.Context, in SubNegotiationInput) (*Finding, error)
}
