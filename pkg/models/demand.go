package models

// FormulatedDemand is the structured form of a requester's raw demand,
// produced by the formulation skill.
type FormulatedDemand struct {
	Intent      string            `json:"intent"`                // one-sentence statement of the need
	Constraints []string          `json:"constraints,omitempty"` // hard requirements
	Preferences []string          `json:"preferences,omitempty"` // soft requirements
	Context     map[string]string `json:"context,omitempty"`     // domain, budget, timeline, ...
	Enrichments []string          `json:"enrichments,omitempty"` // inferred needs not stated by the requester
}
