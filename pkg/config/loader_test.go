package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestConfigDir(t *testing.T) string {
	t.Helper()
	configDir := t.TempDir()

	negotiationYAML := `
settings:
  max_coordinator_rounds: 3
  selection_top_k: 4
agents:
  alice:
    agent_id: alice
    display_name: Alice
    capabilities: ["project management", "agile coaching"]
    context: "Led delivery at two healthtech startups."
  bob:
    agent_id: bob
    display_name: Bob
    capabilities: ["machine learning", "mlops"]
    context: "Built clinical ML pipelines."
    endpoint:
      base_url: https://agents.example.com/bob/v1
      api_key_env: BOB_API_KEY
`
	providersYAML := `
defaults:
  api_key_env: OPENAI_API_KEY
  temperature: 0.2
llm_providers:
  central:
    provider: openai
    model: gpt-4o
  scratch:
    provider: ollama
    model: llama3
    base_url: http://localhost:11434
    temperature: 0.7
embedding:
  provider: openai
  model: text-embedding-3-small
  api_key_env: "{{.EMBEDDING_KEY_ENV}}"
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "negotiation.yaml"), []byte(negotiationYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte(providersYAML), 0644))
	return configDir
}

func TestInitialize(t *testing.T) {
	configDir := setupTestConfigDir(t)
	t.Setenv("EMBEDDING_KEY_ENV", "OPENAI_API_KEY")

	cfg, err := Initialize(context.Background(), configDir)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, configDir, cfg.ConfigDir())

	// Overridden settings win; untouched ones keep defaults.
	assert.Equal(t, 3, cfg.Settings.MaxCoordinatorRounds)
	assert.Equal(t, 4, cfg.Settings.SelectionTopK)
	assert.Equal(t, DefaultSelectionThreshold, cfg.Settings.SelectionThreshold)
	assert.Equal(t, DefaultEmbeddingDimension, cfg.Settings.EmbeddingDimension)

	// Agents loaded into the registry.
	require.NotNil(t, cfg.AgentRegistry)
	assert.True(t, cfg.AgentRegistry.Has("alice"))
	bob, err := cfg.AgentRegistry.Get("bob")
	require.NoError(t, err)
	require.NotNil(t, bob.Endpoint)
	assert.Equal(t, "https://agents.example.com/bob/v1", bob.Endpoint.BaseURL)

	// Provider defaults merged in.
	central, err := cfg.LLMProviders.Get("central")
	require.NoError(t, err)
	assert.Equal(t, "OPENAI_API_KEY", central.APIKeyEnv)
	require.NotNil(t, central.Temperature)
	assert.InDelta(t, 0.2, *central.Temperature, 1e-9)

	scratch, err := cfg.LLMProviders.Get("scratch")
	require.NoError(t, err)
	require.NotNil(t, scratch.Temperature)
	assert.InDelta(t, 0.7, *scratch.Temperature, 1e-9, "explicit value must not be overridden by defaults")

	// Env expansion applied before unmarshal.
	require.NotNil(t, cfg.Embedding)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedding.APIKeyEnv)

	stats := cfg.Stats()
	assert.Equal(t, 2, stats.Agents)
	assert.Equal(t, 2, stats.LLMProviders)
}

func TestInitializeConfigNotFound(t *testing.T) {
	_, err := Initialize(context.Background(), "/nonexistent/directory")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestInitializeInvalidYAML(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "negotiation.yaml"), []byte("settings: [broken"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644))

	_, err := Initialize(context.Background(), configDir)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitializeValidationFailure(t *testing.T) {
	configDir := t.TempDir()
	negotiationYAML := `
settings:
  selection_top_k: 0
agents: {}
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "negotiation.yaml"), []byte(negotiationYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644))

	_, err := Initialize(context.Background(), configDir)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "selection_top_k")
}

func TestResolveSettingsHonoursExplicitZeroThreshold(t *testing.T) {
	zero := 0.0
	s := resolveSettings(&SettingsYAML{SelectionThreshold: &zero})

	assert.Zero(t, s.SelectionThreshold, "explicit 0.0 is a value, not unset")
	assert.Equal(t, DefaultMaxCoordinatorRounds, s.MaxCoordinatorRounds)
}

func TestResolveSettingsNilUsesDefaults(t *testing.T) {
	s := resolveSettings(nil)

	assert.Equal(t, DefaultSettings(), s)
	assert.Equal(t, 30*1000, s.PerOfferTimeoutMS)
}
