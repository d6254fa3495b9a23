package config

import "fmt"

// ConfigValidator validates loaded configuration with clear error messages.
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation, fail-fast on the first error.
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateSettings(); err != nil {
		return fmt.Errorf("settings validation failed: %w", err)
	}

	if err := v.validateAgents(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}

	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}

	if err := v.validateEmbedding(); err != nil {
		return fmt.Errorf("embedding validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateSettings() error {
	s := v.cfg.Settings
	if s == nil {
		return NewValidationError("settings", "", "", ErrMissingRequiredField)
	}
	if s.MaxCoordinatorRounds < 1 {
		return NewValidationError("settings", "", "max_coordinator_rounds", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if s.PerOfferTimeoutMS <= 0 {
		return NewValidationError("settings", "", "per_offer_timeout_ms", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if s.SessionWallClockMS <= 0 {
		return NewValidationError("settings", "", "session_wall_clock_ms", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if s.SelectionTopK < 1 {
		return NewValidationError("settings", "", "selection_top_k", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if s.SelectionThreshold < -1 || s.SelectionThreshold > 1 {
		return NewValidationError("settings", "", "selection_threshold", fmt.Errorf("%w: cosine threshold must be within [-1, 1]", ErrInvalidValue))
	}
	if s.RecursionMaxDepth < 0 {
		return NewValidationError("settings", "", "recursion_max_depth", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if s.EmbeddingDimension < 1 {
		return NewValidationError("settings", "", "embedding_dimension", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateAgents() error {
	for _, p := range v.cfg.AgentRegistry.Profiles() {
		if p.DisplayName == "" {
			return NewValidationError("agent", p.AgentID, "display_name", ErrMissingRequiredField)
		}
		if len(p.Capabilities) == 0 {
			return NewValidationError("agent", p.AgentID, "capabilities", fmt.Errorf("%w: at least one capability required", ErrInvalidValue))
		}
		if p.Endpoint != nil && p.Endpoint.BaseURL == "" {
			return NewValidationError("agent", p.AgentID, "endpoint.base_url", ErrMissingRequiredField)
		}
	}
	return nil
}

func (v *ConfigValidator) validateLLMProviders() error {
	for _, id := range v.cfg.LLMProviders.IDs() {
		p, err := v.cfg.LLMProviders.Get(id)
		if err != nil {
			return err
		}
		if p.Provider == "" {
			return NewValidationError("llm_provider", id, "provider", ErrMissingRequiredField)
		}
		if p.Model == "" {
			return NewValidationError("llm_provider", id, "model", ErrMissingRequiredField)
		}
		if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
			return NewValidationError("llm_provider", id, "temperature", fmt.Errorf("%w: must be within [0, 2]", ErrInvalidValue))
		}
		if p.MaxTokens != nil && *p.MaxTokens < 1 {
			return NewValidationError("llm_provider", id, "max_tokens", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
		}
	}
	return nil
}

func (v *ConfigValidator) validateEmbedding() error {
	e := v.cfg.Embedding
	if e == nil {
		return nil // encoder may be wired programmatically
	}
	if e.Provider == "" {
		return NewValidationError("embedding", "", "provider", ErrMissingRequiredField)
	}
	if e.Model == "" {
		return NewValidationError("embedding", "", "model", ErrMissingRequiredField)
	}
	if e.TimeoutMS < 0 {
		return NewValidationError("embedding", "", "timeout_ms", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	return nil
}
