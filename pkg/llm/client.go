// Package llm defines the completion client contract shared by agent
// channels and the coordinator. One Complete call is one model turn;
// tool-use responses surface as structured ToolCall values.
package llm

import "context"

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant turns that invoked tools
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool result turns
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolCall is one structured tool invocation returned by the model.
// Arguments is the raw JSON argument object.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition declares one callable tool to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema for the argument object
}

// CompletionRequest is the input to one model turn.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition // empty means a plain text turn
	Temperature  float64          // zero means backend default
	MaxTokens    int              // zero means backend default
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the output of one model turn. A response carries
// text, tool calls, or both.
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Client is a synchronous completion backend. Implementations must be safe
// for concurrent use; the engine issues parallel offer calls against a
// single client.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
