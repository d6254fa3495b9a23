package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NegotiationYAMLConfig mirrors the negotiation.yaml file structure.
type NegotiationYAMLConfig struct {
	Settings *SettingsYAML            `yaml:"settings"`
	Agents   map[string]*AgentProfile `yaml:"agents"`
}

// LLMProvidersYAMLConfig mirrors the llm-providers.yaml file structure.
type LLMProvidersYAMLConfig struct {
	LLMProviders map[string]*LLMProviderConfig `yaml:"llm_providers"`
	Defaults     *ProviderDefaults             `yaml:"defaults"`
	Embedding    *EmbeddingConfig              `yaml:"embedding"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Load negotiation.yaml and llm-providers.yaml from configDir
//  2. Expand {{.ENV_VAR}} references
//  3. Resolve settings against built-in defaults
//  4. Build the agent and provider registries
//  5. Validate everything
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"agents", stats.Agents,
		"llm_providers", stats.LLMProviders,
		"selection_top_k", cfg.Settings.SelectionTopK,
		"max_coordinator_rounds", cfg.Settings.MaxCoordinatorRounds)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	negotiation, err := loader.loadNegotiationYAML()
	if err != nil {
		return nil, NewLoadError("negotiation.yaml", err)
	}

	providers, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	providerRegistry, err := NewLLMProviderRegistry(providers.LLMProviders, providers.Defaults)
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	return &Config{
		configDir:     configDir,
		Settings:      resolveSettings(negotiation.Settings),
		AgentRegistry: NewAgentRegistry(negotiation.Agents),
		LLMProviders:  providerRegistry,
		Embedding:     providers.Embedding,
	}, nil
}

func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func (l *configLoader) loadNegotiationYAML() (*NegotiationYAMLConfig, error) {
	config := NegotiationYAMLConfig{
		Agents: make(map[string]*AgentProfile),
	}
	if err := l.loadYAML("negotiation.yaml", &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (l *configLoader) loadLLMProvidersYAML() (*LLMProvidersYAMLConfig, error) {
	config := LLMProvidersYAMLConfig{
		LLMProviders: make(map[string]*LLMProviderConfig),
	}
	if err := l.loadYAML("llm-providers.yaml", &config); err != nil {
		return nil, err
	}
	return &config, nil
}
