// Package channel abstracts one agent's conversational endpoint. The engine
// talks to every agent through the same two operations regardless of where
// the agent's model actually runs.
package channel

import (
	"context"
	"errors"

	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/llm"
)

// ErrNoEndpoint indicates an agent profile without endpoint config was given
// to a channel that requires one.
var ErrNoEndpoint = errors.New("channel: agent has no endpoint configured")

// Channel is one agent's conversational endpoint plus profile lookup.
//
// Profile data is exposed by reference to the shared registry: lookups go
// through the registry handle on every call, so registry updates made after
// the channel was constructed are visible without resync. Registry exposes
// the handle for assembly-time connectivity checks.
type Channel interface {
	// Chat runs a single-turn completion as the named agent.
	Chat(ctx context.Context, agentID string, messages []llm.Message) (string, error)

	// Profile returns the agent's current profile from the shared registry.
	Profile(agentID string) (*config.AgentProfile, error)

	// Registry returns the shared profile registry handle this channel holds.
	Registry() *config.AgentRegistry
}
