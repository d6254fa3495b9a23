package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/llm"
)

// DefaultChannel proxies every agent to a single central completion backend,
// synthesising a per-agent system prompt from the agent's current profile.
type DefaultChannel struct {
	client   llm.Client
	registry *config.AgentRegistry
}

var _ Channel = (*DefaultChannel)(nil)

// NewDefaultChannel creates a channel backed by one shared client. Panics if
// either collaborator is nil; channels are assembled once at startup.
func NewDefaultChannel(client llm.Client, registry *config.AgentRegistry) *DefaultChannel {
	if client == nil {
		panic("channel.NewDefaultChannel: client must not be nil")
	}
	if registry == nil {
		panic("channel.NewDefaultChannel: registry must not be nil")
	}
	return &DefaultChannel{client: client, registry: registry}
}

// Chat implements Channel.
func (c *DefaultChannel) Chat(ctx context.Context, agentID string, messages []llm.Message) (string, error) {
	profile, err := c.registry.Get(agentID)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: SystemPrompt(profile),
		Messages:     messages,
	})
	if err != nil {
		return "", fmt.Errorf("channel: chat with %s: %w", agentID, err)
	}
	return resp.Content, nil
}

// Profile implements Channel. The lookup hits the registry on every call, so
// updates after construction are always visible.
func (c *DefaultChannel) Profile(agentID string) (*config.AgentProfile, error) {
	return c.registry.Get(agentID)
}

// Registry implements Channel.
func (c *DefaultChannel) Registry() *config.AgentRegistry {
	return c.registry
}

// agentIDTag frames the protocol id inside synthesized system prompts.
// Scripted test clients route on this exact framing; keep in sync with
// pkg/llm/mock.
const agentIDTag = "(agent id: %s)"

// SystemPrompt renders the persona prompt for one agent profile. Exported so
// prompt-contract tests can assert against the exact text channels send.
func SystemPrompt(p *config.AgentProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s "+agentIDTag+", an autonomous agent in a multi-agent negotiation.\n",
		p.DisplayName, p.AgentID)
	if len(p.Capabilities) > 0 {
		b.WriteString("\nYour capabilities:\n")
		for _, cap := range p.Capabilities {
			b.WriteString("- ")
			b.WriteString(cap)
			b.WriteString("\n")
		}
	}
	if p.Context != "" {
		b.WriteString("\nYour background:\n")
		b.WriteString(p.Context)
		b.WriteString("\n")
	}
	b.WriteString("\nSpeak only for yourself. Ground every statement in the capabilities and background above; never invent experience you do not have.")
	return b.String()
}
