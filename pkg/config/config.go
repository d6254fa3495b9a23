// Package config loads and validates the negotiation configuration tree:
// the closed set of negotiation settings, the agent profile registry, and
// the completion/embedding backends the host wires into channels and the
// encoder.
package config

// Config is the root of all loaded configuration.
type Config struct {
	configDir string

	// Settings is the closed set of seven negotiation knobs.
	Settings *Settings

	// AgentRegistry is the shared profile registry. Channels hold it by
	// reference; post-load updates propagate to them.
	AgentRegistry *AgentRegistry

	// LLMProviders maps provider ids (e.g. "central") to completion backends.
	LLMProviders *LLMProviderRegistry

	// Embedding configures the encoder backend.
	Embedding *EmbeddingConfig
}

// ConfigDir returns the directory configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Stats summarises loaded configuration for startup logging.
type Stats struct {
	Agents       int
	LLMProviders int
}

// Stats returns counts of loaded components.
func (c *Config) Stats() Stats {
	return Stats{
		Agents:       c.AgentRegistry.Len(),
		LLMProviders: c.LLMProviders.Len(),
	}
}
