package models

// PlanAssignment binds one participant to a role in the final plan.
type PlanAssignment struct {
	AgentID   string `json:"agent_id"`
	Role      string `json:"role"`
	Rationale string `json:"rationale,omitempty"`
}

// Plan is the coordinator's terminal output: a machine-readable resolution of
// the demand. Degraded marks plans synthesized under a forced conclusion
// (round budget exhausted or empty participant set).
type Plan struct {
	Summary       string           `json:"summary"`
	Assignments   []PlanAssignment `json:"assignments,omitempty"`
	Steps         []string         `json:"steps,omitempty"`
	OpenQuestions []string         `json:"open_questions,omitempty"`
	Degraded      bool             `json:"degraded,omitempty"`
}
