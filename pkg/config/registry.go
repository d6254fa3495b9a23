package config

import (
	"fmt"
	"sort"
	"sync"
)

// EndpointConfig points an externally hosted agent at its own completion
// endpoint. Only agents served by the external channel carry one.
type EndpointConfig struct {
	Provider  string `yaml:"provider,omitempty"` // openai-compatible by default
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// AgentProfile describes one candidate agent.
//
// AgentID is the stable protocol identifier; DisplayName is presentation
// only and never participates in lookups or comparisons.
type AgentProfile struct {
	AgentID      string          `yaml:"agent_id" json:"agent_id"`
	DisplayName  string          `yaml:"display_name" json:"display_name"`
	Capabilities []string        `yaml:"capabilities" json:"capabilities"`
	Context      string          `yaml:"context,omitempty" json:"context,omitempty"` // biographical background
	Endpoint     *EndpointConfig `yaml:"endpoint,omitempty" json:"-"`
}

// AgentRegistry holds agent profiles keyed by protocol id. It is the shared
// handle channels keep by reference: updates made after a channel is
// constructed are visible to that channel without resync. Reads dominate;
// guarded by an RWMutex.
type AgentRegistry struct {
	mu       sync.RWMutex
	profiles map[string]*AgentProfile
}

// NewAgentRegistry creates a registry from the loaded profile map.
func NewAgentRegistry(profiles map[string]*AgentProfile) *AgentRegistry {
	r := &AgentRegistry{profiles: make(map[string]*AgentProfile, len(profiles))}
	for id, p := range profiles {
		if p == nil {
			continue
		}
		cp := p.clone()
		if cp.AgentID == "" {
			cp.AgentID = id
		}
		r.profiles[cp.AgentID] = cp
	}
	return r
}

// Get returns the profile for the given protocol id.
func (r *AgentRegistry) Get(agentID string) (*AgentProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return p.clone(), nil
}

// Has reports whether the protocol id is registered.
func (r *AgentRegistry) Has(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.profiles[agentID]
	return ok
}

// Upsert adds or replaces a profile. The registry is shared by reference;
// holders observe the update on their next read.
func (r *AgentRegistry) Upsert(p *AgentProfile) error {
	if p == nil || p.AgentID == "" {
		return fmt.Errorf("%w: agent_id", ErrMissingRequiredField)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.AgentID] = p.clone()
	return nil
}

// Remove deletes a profile. Removing an unknown id is a no-op.
func (r *AgentRegistry) Remove(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, agentID)
}

// IDs returns all registered protocol ids in lexicographic order.
func (r *AgentRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Profiles returns copies of all profiles, ordered by protocol id.
func (r *AgentRegistry) Profiles() []*AgentProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*AgentProfile, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.profiles[id].clone())
	}
	return out
}

// Len returns the number of registered profiles.
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

func (p *AgentProfile) clone() *AgentProfile {
	c := *p
	if len(p.Capabilities) > 0 {
		c.Capabilities = make([]string, len(p.Capabilities))
		copy(c.Capabilities, p.Capabilities)
	}
	if p.Endpoint != nil {
		ep := *p.Endpoint
		c.Endpoint = &ep
	}
	return &c
}
