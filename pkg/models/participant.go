package models

// ParticipantState is the per-agent progress marker within one session.
type ParticipantState string

const (
	ParticipantPending  ParticipantState = "pending"
	ParticipantOffered  ParticipantState = "offered"
	ParticipantTimedOut ParticipantState = "timed_out"
	ParticipantExited   ParticipantState = "exited"
)

// Settled reports whether the participant reached a terminal per-agent state.
func (s ParticipantState) Settled() bool {
	return s != ParticipantPending
}

// AgentParticipant is an agent selected for a specific session.
//
// AgentID is the stable protocol identifier and the only field valid in
// equality comparisons. DisplayName is an opaque presentation string and may
// change between scenes; it never identifies an agent.
type AgentParticipant struct {
	AgentID        string             `json:"agent_id"`
	DisplayName    string             `json:"display_name"`
	Score          float64            `json:"score"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown,omitempty"` // view-pair → cosine
	State          ParticipantState   `json:"state"`
	Confidence     *float64           `json:"confidence,omitempty"` // set once the offer arrives
}
