package skill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/pkg/llm"
	"github.com/parley-ai/parley/pkg/llm/mock"
	"github.com/parley-ai/parley/pkg/models"
)

func coordinatorTestInput(round int, mode ToolMode) CoordinatorInput {
	conf := 0.85
	return CoordinatorInput{
		Demand: &models.FormulatedDemand{Intent: "Find a project manager."},
		Participants: []*models.AgentParticipant{
			{AgentID: "alice", DisplayName: "Alice", Score: 0.9, State: models.ParticipantOffered, Confidence: &conf},
			{AgentID: "bob", DisplayName: "Bob", Score: 0.7, State: models.ParticipantTimedOut},
		},
		Offers: []*models.Offer{
			{AgentID: "alice", Text: "I can lead delivery end to end.", Confidence: 0.85},
		},
		Round: round,
		Mode:  mode,
	}
}

func TestCoordinatorRoundOneSeesRawOffers(t *testing.T) {
	client := mock.NewScriptedClient()
	client.AddSequential(mock.ScriptEntry{
		Text: "Alice looks strong; checking availability.",
		ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: ToolAskAgent, Arguments: `{"agent_id": "alice", "question": "When can you start?"}`},
		},
	})

	result, err := NewCoordinatorSkill(client).Round(context.Background(), coordinatorTestInput(1, ModeFull))
	require.NoError(t, err)
	assert.Equal(t, "Alice looks strong; checking availability.", result.Reasoning)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, ToolAskAgent, result.ToolCalls[0].Name)

	calls := client.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Messages[0].Content
	assert.Contains(t, prompt, "I can lead delivery end to end.")
	assert.Len(t, calls[0].Tools, 5)
}

// Observation masking: from round 2 the prompt carries no raw offer text,
// only the redacted participant summary plus the coordinator's own history.
func TestCoordinatorLaterRoundsMaskOffers(t *testing.T) {
	client := mock.NewScriptedClient()
	client.AddSequential(mock.ScriptEntry{
		ToolCalls: []llm.ToolCall{
			{ID: "c2", Name: ToolOutputPlan, Arguments: `{"summary": "Alice runs it."}`},
		},
	})

	in := coordinatorTestInput(2, ModeRestricted)
	in.History = []*models.CoordinatorTurn{
		{
			Round:     1,
			Reasoning: "Alice looks strong; checking availability.",
			ToolCalls: []models.ToolInvocation{
				{ID: "c1", Name: ToolAskAgent, Arguments: `{"agent_id": "alice", "question": "When can you start?"}`},
			},
			ToolResults: []models.ToolResult{
				{CallID: "c1", Name: ToolAskAgent, Content: "I can start in March."},
			},
		},
	}

	_, err := NewCoordinatorSkill(client).Round(context.Background(), in)
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Messages[0].Content

	assert.NotContains(t, prompt, "I can lead delivery end to end.")
	assert.Contains(t, prompt, "offers redacted")
	assert.Contains(t, prompt, "alice")
	assert.Contains(t, prompt, "timed_out")

	// Own reasoning and tool results stay visible.
	assert.Contains(t, prompt, "Alice looks strong; checking availability.")
	assert.Contains(t, prompt, "I can start in March.")

	// Restricted rounds expose the restricted tool set.
	assert.Len(t, calls[0].Tools, 3)
	for _, td := range calls[0].Tools {
		assert.NotEqual(t, ToolStartDiscovery, td.Name)
		assert.NotEqual(t, ToolRecurseOnGap, td.Name)
	}
}

func TestCoordinatorDropsDisallowedToolCalls(t *testing.T) {
	client := mock.NewScriptedClient()
	client.AddSequential(mock.ScriptEntry{
		ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: ToolStartDiscovery, Arguments: `{"topic": "x", "participant_ids": ["alice"]}`},
			{ID: "c2", Name: ToolOutputPlan, Arguments: `{"summary": "done"}`},
		},
	})

	result, err := NewCoordinatorSkill(client).Round(context.Background(), coordinatorTestInput(2, ModeRestricted))
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, ToolOutputPlan, result.ToolCalls[0].Name)
}

func TestCoordinatorFinalModeIsOutputPlanOnly(t *testing.T) {
	client := mock.NewScriptedClient()
	client.AddSequential(mock.ScriptEntry{
		ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: ToolOutputPlan, Arguments: `{"summary": "best effort"}`},
		},
	})

	_, err := NewCoordinatorSkill(client).Round(context.Background(), coordinatorTestInput(3, ModeFinal))
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Tools, 1)
	assert.Equal(t, ToolOutputPlan, calls[0].Tools[0].Name)
	assert.Contains(t, calls[0].Messages[0].Content, "MUST invoke output_plan")
}

func TestParsePlan(t *testing.T) {
	plan, err := ParsePlan(`{
		"summary": "Alice leads, Bob builds the model.",
		"assignments": [{"agent_id": "alice", "role": "project manager"}],
		"steps": ["kickoff", "data audit"],
		"open_questions": ["budget ceiling"]
	}`)
	require.NoError(t, err)
	assert.Equal(t, "Alice leads, Bob builds the model.", plan.Summary)
	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "alice", plan.Assignments[0].AgentID)

	_, err = ParsePlan(`{"assignments": []}`)
	require.ErrorIs(t, err, ErrContract)

	_, err = ParsePlan(`not json`)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestToolSets(t *testing.T) {
	assert.Len(t, Tools(ModeFull), 5)
	assert.Len(t, Tools(ModeRestricted), 3)
	assert.Len(t, Tools(ModeFinal), 1)

	assert.True(t, Allowed(ModeFull, ToolRecurseOnGap))
	assert.False(t, Allowed(ModeRestricted, ToolRecurseOnGap))
	assert.False(t, Allowed(ModeFinal, ToolAskAgent))
	assert.True(t, Allowed(ModeFinal, ToolOutputPlan))
}
