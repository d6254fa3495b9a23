// Package events delivers typed negotiation milestones to in-process
// subscribers, tagged by negotiation id.
//
// Delivery policy: per-subscriber bounded buffer with drop-oldest on
// overflow. A slow subscriber never blocks publication; each dropped
// delivery is recorded in the owning session's trace chain. Subscribers may
// join mid-session and receive from that point forward.
package events

import (
	"time"

	"github.com/parley-ai/parley/pkg/models"
)

// EventType names one milestone. The set is closed.
type EventType string

const (
	EventFormulationReady     EventType = "formulation.ready"
	EventResonanceActivated   EventType = "resonance.activated"
	EventOfferReceived        EventType = "offer.received"
	EventBarrierComplete      EventType = "barrier.complete"
	EventCenterToolCall       EventType = "center.tool_call"
	EventPlanReady            EventType = "plan.ready"
	EventNegotiationCompleted EventType = "negotiation.completed"
	EventNegotiationError     EventType = "negotiation.error"
	EventNegotiationCancelled EventType = "negotiation.cancelled"
)

// Terminal reports whether the event type ends its session's stream.
func (t EventType) Terminal() bool {
	switch t {
	case EventNegotiationCompleted, EventNegotiationError, EventNegotiationCancelled:
		return true
	}
	return false
}

// Envelope is the uniform delivery envelope. Timestamp is UTC and renders
// as ISO-8601 in JSON.
type Envelope struct {
	Type          EventType `json:"event_type"`
	NegotiationID string    `json:"negotiation_id"`
	Timestamp     time.Time `json:"timestamp"`
	Data          any       `json:"data,omitempty"`
}

// ParticipantRank is one entry of the resonance.activated payload.
type ParticipantRank struct {
	AgentID     string             `json:"agent_id"`
	DisplayName string             `json:"display_name"`
	Score       float64            `json:"score"`
	Breakdown   map[string]float64 `json:"score_breakdown,omitempty"` // view-pair -> cosine
}

// OfferPayload is the offer.received payload.
type OfferPayload struct {
	AgentID    string  `json:"agent_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Declined   bool    `json:"declined"`
}

// BarrierPayload is the barrier.complete payload: how the selected
// participants settled.
type BarrierPayload struct {
	Offered  int `json:"offered"`
	TimedOut int `json:"timed_out"`
	Exited   int `json:"exited"`
}

// ToolCallPayload is the center.tool_call payload.
type ToolCallPayload struct {
	Round         int    `json:"round"`
	ToolName      string `json:"tool_name"`
	Arguments     string `json:"arguments"`
	ResultSummary string `json:"result_summary"`
}

// TerminalPayload is the payload of the three terminal event types.
type TerminalPayload struct {
	Outcome models.Outcome `json:"outcome"`
	Detail  string         `json:"detail,omitempty"`
}

// DropPayload is recorded in the trace chain when a slow subscriber loses
// deliveries.
type DropPayload struct {
	SubscriberID string    `json:"subscriber_id"`
	EventType    EventType `json:"event_type"`
}
