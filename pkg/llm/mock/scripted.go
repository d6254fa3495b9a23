// Package mock provides a scripted llm.Client for tests: sequential entries
// for calls whose order is deterministic (formulation, coordinator rounds)
// plus per-agent routing for parallel offer calls, where arrival order is
// not.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/parley-ai/parley/pkg/llm"
)

// agentMarker is the tag channels embed in synthesized system prompts.
// Routing parses it back out; doubles and real prompt builders must agree
// on this exact framing.
const agentMarker = "(agent id: "

// AgentMarker renders the routing tag for an agent id, for use by prompt
// builders and assertions alike.
func AgentMarker(agentID string) string {
	return agentMarker + agentID + ")"
}

// ScriptEntry defines a single scripted completion.
type ScriptEntry struct {
	// Response content (at most one of Text/ToolCalls/Err should be set).
	Text      string
	ToolCalls []llm.ToolCall
	Err       error

	// Test control.
	Delay               time.Duration   // sleep before responding; honours ctx deadline
	BlockUntilCancelled bool            // block until ctx is cancelled, then return ctx.Err()
	WaitCh              <-chan struct{} // block until closed, then respond normally
	OnBlock             chan<- struct{} // notified when a blocking path is entered
}

// ScriptedClient implements llm.Client with dual dispatch: routed entries
// keyed by agent id matched from the system prompt, sequential entries for
// everything else.
type ScriptedClient struct {
	mu         sync.Mutex
	sequential []ScriptEntry
	seqIndex   int
	routes     map[string][]ScriptEntry
	routeIndex map[string]int
	captured   []llm.CompletionRequest
}

var _ llm.Client = (*ScriptedClient)(nil)

// NewScriptedClient creates an empty scripted client.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{
		routes:     make(map[string][]ScriptEntry),
		routeIndex: make(map[string]int),
	}
}

// AddSequential appends entries consumed in order by non-routed calls.
func (c *ScriptedClient) AddSequential(entries ...ScriptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequential = append(c.sequential, entries...)
}

// AddRouted appends entries for one agent id, matched from the system prompt.
func (c *ScriptedClient) AddRouted(agentID string, entries ...ScriptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[agentID] = append(c.routes[agentID], entries...)
}

// Complete implements llm.Client.
func (c *ScriptedClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.mu.Lock()
	c.captured = append(c.captured, req)
	entry, err := c.nextEntry(req)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if entry.BlockUntilCancelled {
		if entry.OnBlock != nil {
			entry.OnBlock <- struct{}{}
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if entry.WaitCh != nil {
		if entry.OnBlock != nil {
			entry.OnBlock <- struct{}{}
		}
		select {
		case <-entry.WaitCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if entry.Delay > 0 {
		select {
		case <-time.After(entry.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if entry.Err != nil {
		return nil, entry.Err
	}

	return &llm.CompletionResponse{
		Content:   entry.Text,
		ToolCalls: entry.ToolCalls,
		Usage:     llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// CallCount returns the number of Complete calls made so far.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.captured)
}

// Calls returns a copy of all captured requests in call order.
func (c *ScriptedClient) Calls() []llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.CompletionRequest(nil), c.captured...)
}

// nextEntry selects the next script entry. Must be called with c.mu held.
func (c *ScriptedClient) nextEntry(req llm.CompletionRequest) (*ScriptEntry, error) {
	agentID := extractAgentID(req)

	if agentID != "" {
		if entries, ok := c.routes[agentID]; ok {
			idx := c.routeIndex[agentID]
			if idx < len(entries) {
				c.routeIndex[agentID] = idx + 1
				return &entries[idx], nil
			}
		}
	}

	if c.seqIndex < len(c.sequential) {
		entry := &c.sequential[c.seqIndex]
		c.seqIndex++
		return entry, nil
	}

	return nil, fmt.Errorf("ScriptedClient: no more entries (agent=%q, sequential=%d/%d)",
		agentID, c.seqIndex, len(c.sequential))
}

// extractAgentID pulls the routed agent id out of the system prompt's
// "(agent id: <id>)" tag.
func extractAgentID(req llm.CompletionRequest) string {
	content := req.SystemPrompt
	idx := strings.Index(content, agentMarker)
	if idx < 0 {
		return ""
	}
	rest := content[idx+len(agentMarker):]
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}
