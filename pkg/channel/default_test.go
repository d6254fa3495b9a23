package channel

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/llm/mock"
)

func testRegistry() *config.AgentRegistry {
	return config.NewAgentRegistry(map[string]*config.AgentProfile{
		"alice": {
			AgentID:      "alice",
			DisplayName:  "Alice",
			Capabilities: []string{"project management", "agile coaching"},
			Context:      "Ten years leading software delivery teams.",
		},
	})
}

func TestDefaultChannelChat(t *testing.T) {
	registry := testRegistry()
	client := mock.NewScriptedClient()
	client.AddRouted("alice", mock.ScriptEntry{Text: "I can take this on."})

	ch := NewDefaultChannel(client, registry)

	reply, err := ch.Chat(context.Background(), "alice", []llm.Message{
		{Role: llm.RoleUser, Content: "Can you run this project?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "I can take this on.", reply)

	// The synthesized system prompt carries the persona, not the engine's.
	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].SystemPrompt, "Alice")
	assert.Contains(t, calls[0].SystemPrompt, "project management")
	assert.Contains(t, calls[0].SystemPrompt, "Ten years leading software delivery teams.")
}

func TestDefaultChannelChatUnknownAgent(t *testing.T) {
	ch := NewDefaultChannel(mock.NewScriptedClient(), testRegistry())

	_, err := ch.Chat(context.Background(), "nobody", nil)
	require.ErrorIs(t, err, config.ErrAgentNotFound)
}

// The scripted client routes offer calls by parsing the agent id tag out of
// the system prompt. Real prompt synthesis and the test double must agree on
// the exact framing, otherwise routed scripts silently fall through to the
// sequential queue.
func TestSystemPromptCarriesRoutingTag(t *testing.T) {
	profile := &config.AgentProfile{AgentID: "alice", DisplayName: "Alice"}
	prompt := SystemPrompt(profile)
	assert.Contains(t, prompt, mock.AgentMarker("alice"))
}

// Connectivity contract: the channel holds the registry by reference, so
// profile updates made after construction are visible without resync.
func TestDefaultChannelSeesRegistryUpdates(t *testing.T) {
	registry := testRegistry()
	ch := NewDefaultChannel(mock.NewScriptedClient(), registry)

	require.NoError(t, registry.Upsert(&config.AgentProfile{
		AgentID:     "bob",
		DisplayName: "Bob",
	}))

	p, err := ch.Profile("bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", p.DisplayName)

	// And updates to existing profiles propagate too.
	require.NoError(t, registry.Upsert(&config.AgentProfile{
		AgentID:      "alice",
		DisplayName:  "Alice",
		Capabilities: []string{"incident response"},
	}))
	p, err = ch.Profile("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"incident response"}, p.Capabilities)

	assert.Same(t, registry, ch.Registry())
}

func TestExternalChannelRequiresEndpoint(t *testing.T) {
	ch := NewExternalChannel(testRegistry())

	_, err := ch.Chat(context.Background(), "alice", []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
	})
	require.ErrorIs(t, err, ErrNoEndpoint)
}

func TestExternalChannelProfileByReference(t *testing.T) {
	registry := testRegistry()
	ch := NewExternalChannel(registry)

	registry.Remove("alice")
	_, err := ch.Profile("alice")
	require.ErrorIs(t, err, config.ErrAgentNotFound)
}

func TestNewDefaultChannelPanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewDefaultChannel(nil, testRegistry()) })
	assert.Panics(t, func() { NewDefaultChannel(mock.NewScriptedClient(), nil) })
	assert.True(t, strings.HasPrefix(SystemPrompt(&config.AgentProfile{AgentID: "x", DisplayName: "X"}), "You are X"))
}
