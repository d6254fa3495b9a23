package config

import (
	"fmt"
	"sort"

	"dario.cat/mergo"
)

// LLMProviderConfig describes one completion backend usable by a channel.
type LLMProviderConfig struct {
	Provider    string   `yaml:"provider"` // openai, anthropic, gemini, ollama, mistral, groq, deepseek
	Model       string   `yaml:"model"`
	APIKeyEnv   string   `yaml:"api_key_env,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
}

// ProviderDefaults hold values merged into every provider entry that leaves
// the corresponding field unset.
type ProviderDefaults struct {
	APIKeyEnv   string   `yaml:"api_key_env,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
}

// EmbeddingConfig describes the embedding backend behind the encoder.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	TimeoutMS int    `yaml:"timeout_ms,omitempty"`
}

// LLMProviderRegistry holds completion backends keyed by provider id.
// Immutable after load.
type LLMProviderRegistry struct {
	providers map[string]*LLMProviderConfig
}

// NewLLMProviderRegistry creates a registry, merging defaults into each entry.
func NewLLMProviderRegistry(providers map[string]*LLMProviderConfig, defaults *ProviderDefaults) (*LLMProviderRegistry, error) {
	r := &LLMProviderRegistry{providers: make(map[string]*LLMProviderConfig, len(providers))}
	for id, p := range providers {
		if p == nil {
			continue
		}
		merged := *p
		if defaults != nil {
			src := LLMProviderConfig{
				APIKeyEnv:   defaults.APIKeyEnv,
				Temperature: defaults.Temperature,
				MaxTokens:   defaults.MaxTokens,
			}
			if err := mergo.Merge(&merged, src); err != nil {
				return nil, fmt.Errorf("failed to merge provider defaults for %q: %w", id, err)
			}
		}
		r.providers[id] = &merged
	}
	return r, nil
}

// Get returns the provider config for the given id.
func (r *LLMProviderRegistry) Get(id string) (*LLMProviderConfig, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	return p, nil
}

// IDs returns all provider ids in lexicographic order.
func (r *LLMProviderRegistry) IDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of configured providers.
func (r *LLMProviderRegistry) Len() int {
	return len(r.providers)
}
