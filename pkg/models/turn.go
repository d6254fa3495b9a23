package models

// ToolInvocation records one tool call the coordinator made in a turn.
// Arguments is the raw JSON argument object as produced by the model.
type ToolInvocation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult records the engine's answer to one tool invocation. Tool-level
// failures (unknown agent, invalid subset) are results with IsError set, not
// session errors.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// CoordinatorTurn is one observable turn of the central reasoning loop.
// Turns are append-only and ordered by round index, starting at 1.
type CoordinatorTurn struct {
	Round       int              `json:"round"`
	Reasoning   string           `json:"reasoning"`
	ToolCalls   []ToolInvocation `json:"tool_calls,omitempty"`
	ToolResults []ToolResult     `json:"tool_results,omitempty"`
}
