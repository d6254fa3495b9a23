package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/pkg/channel"
	"github.com/parley-ai/parley/pkg/config"
	encmock "github.com/parley-ai/parley/pkg/encoding/mock"
	"github.com/parley-ai/parley/pkg/engine"
	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/llm"
	llmmock "github.com/parley-ai/parley/pkg/llm/mock"
	"github.com/parley-ai/parley/pkg/models"
	"github.com/parley-ai/parley/pkg/resonance"
	"github.com/parley-ai/parley/pkg/skill"
)

const (
	formulationJSON = `{"intent":"stand up a metrics dashboard","constraints":["grafana"]}`
	offerJSON       = `{"offer_text":"I will build the dashboard","confidence":0.7}`
	planJSON        = `{"summary":"dev builds the dashboard","assignments":[{"agent_id":"dev","role":"builder"}]}`
)

type harness struct {
	client  *llmmock.ScriptedClient
	bus     *events.Bus
	manager *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	client := llmmock.NewScriptedClient()
	registry := config.NewAgentRegistry(map[string]*config.AgentProfile{
		"dev": {AgentID: "dev", DisplayName: "Dev", Capabilities: []string{"grafana metrics dashboard"}},
	})
	ch := channel.NewDefaultChannel(client, registry)
	bus := events.NewBus(64)
	settings := &config.Settings{
		MaxCoordinatorRounds: 2,
		PerOfferTimeoutMS:    2_000,
		SessionWallClockMS:   10_000,
		SelectionTopK:        5,
		SelectionThreshold:   0.01,
		RecursionMaxDepth:    1,
		EmbeddingDimension:   64,
	}
	eng := engine.New(engine.Deps{
		Settings:      settings,
		Registry:      registry,
		Channel:       ch,
		Matcher:       resonance.NewMatcher(encmock.NewEncoder(64), settings.SelectionTopK, settings.SelectionThreshold),
		Bus:           bus,
		Formulator:    skill.NewFormulation(client),
		Offers:        skill.NewOfferSkill(ch),
		Coordinator:   skill.NewCoordinatorSkill(client),
		SubNegotiator: skill.NewSubNegotiationSkill(client),
	})
	return &harness{client: client, bus: bus, manager: NewManager(eng)}
}

// scriptHappyPath loads one complete successful negotiation.
func (h *harness) scriptHappyPath() {
	h.client.AddSequential(llmmock.ScriptEntry{Text: formulationJSON})
	h.client.AddRouted("dev", llmmock.ScriptEntry{Text: offerJSON})
	h.client.AddSequential(llmmock.ScriptEntry{ToolCalls: []llm.ToolCall{
		{ID: "tc-1", Name: skill.ToolOutputPlan, Arguments: planJSON},
	}})
}

func TestNewManagerPanicsOnNilEngine(t *testing.T) {
	assert.Panics(t, func() { NewManager(nil) })
}

func TestCreateReturnsCreatedSnapshot(t *testing.T) {
	h := newHarness(t)

	snap := h.manager.Create("tester", "I need a dashboard")

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, models.StateCreated, snap.State)
	assert.Equal(t, "tester", snap.Requester)
	assert.Equal(t, "I need a dashboard", snap.RawDemand)
}

func TestRunDrivesSessionToCompletion(t *testing.T) {
	h := newHarness(t)
	h.scriptHappyPath()

	snap := h.manager.Create("tester", "I need a dashboard")
	final, err := h.manager.Run(context.Background(), snap.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StateCompleted, final.State)
	assert.Equal(t, models.OutcomeSuccess, final.Outcome)
	require.NotNil(t, final.Plan)
	assert.Equal(t, "dev builds the dashboard", final.Plan.Summary)
}

func TestStartIsAsyncAndWaitBlocks(t *testing.T) {
	h := newHarness(t)
	h.scriptHappyPath()

	snap := h.manager.Create("tester", "I need a dashboard")
	require.NoError(t, h.manager.Start(context.Background(), snap.ID))
	require.NoError(t, h.manager.Wait(snap.ID))

	final, err := h.manager.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, final.State)
	assert.Equal(t, models.OutcomeSuccess, final.Outcome)
}

// Snapshots must be safe to take while the engine goroutine mutates the
// session; run under -race this covers the observer path end to end.
func TestGetObservesRunningSession(t *testing.T) {
	h := newHarness(t)
	h.client.AddSequential(llmmock.ScriptEntry{Text: formulationJSON})
	h.client.AddRouted("dev", llmmock.ScriptEntry{Text: offerJSON, Delay: 50 * time.Millisecond})
	h.client.AddSequential(llmmock.ScriptEntry{ToolCalls: []llm.ToolCall{
		{ID: "tc-1", Name: skill.ToolOutputPlan, Arguments: planJSON},
	}})

	snap := h.manager.Create("tester", "I need a dashboard")
	require.NoError(t, h.manager.Start(context.Background(), snap.ID))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.manager.Wait(snap.ID)
	}()

	for polling := true; polling; {
		select {
		case <-done:
			polling = false
		default:
		}
		mid, err := h.manager.Get(snap.ID)
		require.NoError(t, err)
		for _, p := range mid.Participants {
			require.NotEmpty(t, p.AgentID)
		}
		for _, turn := range mid.Turns {
			// A result lands after its call; mid-run the counts may differ by one.
			require.LessOrEqual(t, len(turn.ToolResults), len(turn.ToolCalls))
		}
		require.Len(t, h.manager.List(), 1)
	}

	final, err := h.manager.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, final.State)
	assert.Equal(t, models.OutcomeSuccess, final.Outcome)
}

func TestStartTwiceFails(t *testing.T) {
	h := newHarness(t)
	h.scriptHappyPath()

	snap := h.manager.Create("tester", "I need a dashboard")
	require.NoError(t, h.manager.Start(context.Background(), snap.ID))

	err := h.manager.Start(context.Background(), snap.ID)
	assert.ErrorContains(t, err, "already started")
	require.NoError(t, h.manager.Wait(snap.ID))
}

func TestUnknownSessionOperationsFail(t *testing.T) {
	h := newHarness(t)

	assert.Error(t, h.manager.Start(context.Background(), "nope"))
	assert.Error(t, h.manager.Cancel("nope"))
	assert.Error(t, h.manager.Wait("nope"))
	assert.Error(t, h.manager.Remove("nope"))
	_, err := h.manager.Get("nope")
	assert.Error(t, err)
}

func TestCancelRunningSession(t *testing.T) {
	h := newHarness(t)
	blocked := make(chan struct{}, 1)
	h.client.AddSequential(llmmock.ScriptEntry{Text: formulationJSON})
	h.client.AddRouted("dev", llmmock.ScriptEntry{BlockUntilCancelled: true, OnBlock: blocked})

	snap := h.manager.Create("tester", "I need a dashboard")
	require.NoError(t, h.manager.Start(context.Background(), snap.ID))

	select {
	case <-blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("offer call never blocked")
	}
	require.NoError(t, h.manager.Cancel(snap.ID))
	require.NoError(t, h.manager.Wait(snap.ID))

	final, err := h.manager.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, final.State)
	assert.Equal(t, models.OutcomeCancelled, final.Outcome)
	assert.Nil(t, final.Plan)
}

func TestListAndRemove(t *testing.T) {
	h := newHarness(t)

	a := h.manager.Create("tester", "demand a")
	b := h.manager.Create("tester", "demand b")
	assert.Len(t, h.manager.List(), 2)

	require.NoError(t, h.manager.Remove(a.ID))
	remaining := h.manager.List()
	require.Len(t, remaining, 1)
	assert.Equal(t, b.ID, remaining[0].ID)
}
