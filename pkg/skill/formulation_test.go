package skill

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/pkg/llm/mock"
)

func TestFormulate(t *testing.T) {
	client := mock.NewScriptedClient()
	client.AddSequential(mock.ScriptEntry{Text: "```json\n" + `{
		"intent": "Find a project manager and an ML engineer for a healthcare startup.",
		"constraints": ["healthcare domain experience"],
		"preferences": ["startup background"],
		"context": {"domain": "healthcare"},
		"enrichments": ["regulatory compliance awareness"]
	}` + "\n```"})

	demand, err := NewFormulation(client).Formulate(context.Background(), FormulationInput{
		Requester: "requester-1",
		RawDemand: "Find a project manager and an ML engineer for a healthcare startup.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Find a project manager and an ML engineer for a healthcare startup.", demand.Intent)
	assert.Equal(t, []string{"healthcare domain experience"}, demand.Constraints)
	assert.Equal(t, "healthcare", demand.Context["domain"])

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[0].Content, "requester-1")
	assert.Contains(t, calls[0].Messages[0].Content, "healthcare startup")
}

func TestFormulateMissingIntent(t *testing.T) {
	client := mock.NewScriptedClient()
	client.AddSequential(mock.ScriptEntry{Text: `{"constraints": ["x"]}`})

	_, err := NewFormulation(client).Formulate(context.Background(), FormulationInput{
		Requester: "r", RawDemand: "demand",
	})
	require.ErrorIs(t, err, ErrContract)
}

func TestFormulateUnparseable(t *testing.T) {
	client := mock.NewScriptedClient()
	client.AddSequential(mock.ScriptEntry{Text: "I would rather chat about the weather."})

	_, err := NewFormulation(client).Formulate(context.Background(), FormulationInput{
		Requester: "r", RawDemand: "demand",
	})
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "I would rather chat about the weather.", perr.Raw)
}

func TestFormulateEmptyDemand(t *testing.T) {
	client := mock.NewScriptedClient()
	_, err := NewFormulation(client).Formulate(context.Background(), FormulationInput{Requester: "r"})
	require.ErrorIs(t, err, ErrContract)
	assert.Equal(t, 0, client.CallCount())
}

func TestFormulatePropagatesClientError(t *testing.T) {
	client := mock.NewScriptedClient()
	wantErr := errors.New("backend down")
	client.AddSequential(mock.ScriptEntry{Err: wantErr})

	_, err := NewFormulation(client).Formulate(context.Background(), FormulationInput{
		Requester: "r", RawDemand: "demand",
	})
	require.ErrorIs(t, err, wantErr)
}
