package models

import "time"

// Offer is one agent's structured response to a formulated demand.
// Immutable once received.
type Offer struct {
	AgentID      string    `json:"agent_id"`
	Text         string    `json:"text"`
	Confidence   float64   `json:"confidence"` // in [0,1]
	Declined     bool      `json:"declined"`
	Capabilities []string  `json:"capabilities,omitempty"` // capabilities the agent claims to apply here
	Constraints  []string  `json:"constraints,omitempty"`  // conditions the agent attaches
	ReceivedAt   time.Time `json:"received_at"`
}
