package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/llm"
)

// ExternalChannel delegates each agent to its own hosted completion
// endpoint, declared on the agent's profile. Clients are built lazily per
// agent and rebuilt when the profile's endpoint changes, so registry updates
// take effect without reconstruction.
type ExternalChannel struct {
	registry *config.AgentRegistry

	mu      sync.Mutex
	clients map[string]*externalClient
}

type externalClient struct {
	endpoint config.EndpointConfig
	client   llm.Client
}

var _ Channel = (*ExternalChannel)(nil)

// NewExternalChannel creates a channel that routes each agent to the
// endpoint on its profile. Panics if registry is nil.
func NewExternalChannel(registry *config.AgentRegistry) *ExternalChannel {
	if registry == nil {
		panic("channel.NewExternalChannel: registry must not be nil")
	}
	return &ExternalChannel{
		registry: registry,
		clients:  make(map[string]*externalClient),
	}
}

// Chat implements Channel. The remote endpoint hosts the agent's own
// persona, so no system prompt is synthesised here; messages pass through
// unchanged.
func (c *ExternalChannel) Chat(ctx context.Context, agentID string, messages []llm.Message) (string, error) {
	profile, err := c.registry.Get(agentID)
	if err != nil {
		return "", err
	}
	if profile.Endpoint == nil {
		return "", fmt.Errorf("%w: %s", ErrNoEndpoint, agentID)
	}

	client, err := c.clientFor(agentID, profile.Endpoint)
	if err != nil {
		return "", err
	}

	resp, err := client.Complete(ctx, llm.CompletionRequest{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("channel: chat with %s: %w", agentID, err)
	}
	return resp.Content, nil
}

// Profile implements Channel.
func (c *ExternalChannel) Profile(agentID string) (*config.AgentProfile, error) {
	return c.registry.Get(agentID)
}

// Registry implements Channel.
func (c *ExternalChannel) Registry() *config.AgentRegistry {
	return c.registry
}

// clientFor returns the cached client for the agent, rebuilding it if the
// profile's endpoint config changed since the last call.
func (c *ExternalChannel) clientFor(agentID string, endpoint *config.EndpointConfig) (llm.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.clients[agentID]; ok && cached.endpoint == *endpoint {
		return cached.client, nil
	}

	client, err := llm.NewAnyLLMClient(&config.LLMProviderConfig{
		Provider:  endpoint.Provider,
		Model:     endpoint.Model,
		BaseURL:   endpoint.BaseURL,
		APIKeyEnv: endpoint.APIKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("channel: build endpoint client for %s: %w", agentID, err)
	}
	c.clients[agentID] = &externalClient{endpoint: *endpoint, client: client}
	return client, nil
}
