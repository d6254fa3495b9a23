package skill

import (
	"encoding/json"
	"fmt"

	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/models"
)

// The coordinator's closed tool set. The engine dispatches these by name;
// their schemas are owned here and nowhere else.
const (
	ToolAskAgent                 = "ask_agent"
	ToolStartDiscovery           = "start_discovery"
	ToolRecurseOnGap             = "recurse_on_gap"
	ToolRequestUserClarification = "request_user_clarification"
	ToolOutputPlan               = "output_plan"
)

var askAgentTool = llm.ToolDefinition{
	Name:        ToolAskAgent,
	Description: "Ask one named participant a single follow-up question and get their answer.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_id": map[string]any{
				"type":        "string",
				"description": "Protocol id of the participant to question.",
			},
			"question": map[string]any{
				"type":        "string",
				"description": "The question to ask. Must not be empty.",
			},
		},
		"required": []string{"agent_id", "question"},
	},
}

var startDiscoveryTool = llm.ToolDefinition{
	Name:        ToolStartDiscovery,
	Description: "Run a scoped sub-negotiation over a subset of participants about one defined topic. The structured finding is returned to you.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": map[string]any{
				"type":        "string",
				"description": "The question the sub-negotiation must settle.",
			},
			"participant_ids": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Protocol ids of already-selected participants to include.",
			},
		},
		"required": []string{"topic", "participant_ids"},
	},
}

var recurseOnGapTool = llm.ToolDefinition{
	Name:        ToolRecurseOnGap,
	Description: "Mark an information gap and schedule a nested mini-formulation on it.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{
				"type":        "string",
				"description": "What is missing and why it blocks the plan.",
			},
		},
		"required": []string{"description"},
	},
}

var requestUserClarificationTool = llm.ToolDefinition{
	Name:        ToolRequestUserClarification,
	Description: "Raise a question to the requester. Delivery may be deferred; continue planning with stated assumptions.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The question for the requester.",
			},
		},
		"required": []string{"question"},
	},
}

var outputPlanTool = llm.ToolDefinition{
	Name:        ToolOutputPlan,
	Description: "Emit the final structured plan and end the negotiation.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "One-paragraph resolution of the demand.",
			},
			"assignments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"agent_id":  map[string]any{"type": "string"},
						"role":      map[string]any{"type": "string"},
						"rationale": map[string]any{"type": "string"},
					},
					"required": []string{"agent_id", "role"},
				},
				"description": "Which participant takes which role.",
			},
			"steps": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Ordered execution steps.",
			},
			"open_questions": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Unresolved points the requester should settle.",
			},
		},
		"required": []string{"summary"},
	},
}

// Tools returns the tool definitions for a round mode.
func Tools(mode ToolMode) []llm.ToolDefinition {
	switch mode {
	case ModeFull:
		return []llm.ToolDefinition{
			askAgentTool,
			startDiscoveryTool,
			recurseOnGapTool,
			requestUserClarificationTool,
			outputPlanTool,
		}
	case ModeRestricted:
		return []llm.ToolDefinition{
			askAgentTool,
			requestUserClarificationTool,
			outputPlanTool,
		}
	default:
		return []llm.ToolDefinition{outputPlanTool}
	}
}

// Allowed reports whether a tool may be invoked under a round mode.
func Allowed(mode ToolMode, toolName string) bool {
	for _, td := range Tools(mode) {
		if td.Name == toolName {
			return true
		}
	}
	return false
}

// AskAgentArgs are the arguments of one ask_agent invocation.
type AskAgentArgs struct {
	AgentID  string `json:"agent_id"`
	Question string `json:"question"`
}

// StartDiscoveryArgs are the arguments of one start_discovery invocation.
type StartDiscoveryArgs struct {
	Topic          string   `json:"topic"`
	ParticipantIDs []string `json:"participant_ids"`
}

// RecurseOnGapArgs are the arguments of one recurse_on_gap invocation.
type RecurseOnGapArgs struct {
	Description string `json:"description"`
}

// ClarificationArgs are the arguments of one request_user_clarification
// invocation.
type ClarificationArgs struct {
	Question string `json:"question"`
}

// ParseToolArgs unmarshals a tool call's raw JSON arguments into target.
func ParseToolArgs(call models.ToolInvocation, target any) error {
	if err := json.Unmarshal([]byte(call.Arguments), target); err != nil {
		return &ParseError{Skill: "coordinator", Raw: call.Arguments,
			Err: fmt.Errorf("bad %s arguments: %w", call.Name, err)}
	}
	return nil
}

// ParsePlan unmarshals output_plan arguments into a Plan and checks the
// contract. The plan schema is owned here with the tool definition.
func ParsePlan(arguments string) (*models.Plan, error) {
	var plan models.Plan
	if err := json.Unmarshal([]byte(arguments), &plan); err != nil {
		return nil, &ParseError{Skill: "coordinator", Raw: arguments,
			Err: fmt.Errorf("bad output_plan arguments: %w", err)}
	}
	if plan.Summary == "" {
		return nil, fmt.Errorf("%w: output_plan has no summary", ErrContract)
	}
	return &plan, nil
}
