// Package e2e drives complete negotiations through the real engine, session
// manager, and event bus, with only the model calls and the embedding
// backend replaced by deterministic doubles.
package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/parley-ai/parley/pkg/channel"
	"github.com/parley-ai/parley/pkg/config"
	encmock "github.com/parley-ai/parley/pkg/encoding/mock"
	"github.com/parley-ai/parley/pkg/engine"
	"github.com/parley-ai/parley/pkg/events"
	llmmock "github.com/parley-ai/parley/pkg/llm/mock"
	"github.com/parley-ai/parley/pkg/models"
	"github.com/parley-ai/parley/pkg/resonance"
	"github.com/parley-ai/parley/pkg/session"
	"github.com/parley-ai/parley/pkg/skill"
)

// Harness is one assembled negotiation stack. Script the client, then call
// Run (or Start/Cancel for cancellation flows).
type Harness struct {
	Client   *llmmock.ScriptedClient
	Registry *config.AgentRegistry
	Bus      *events.Bus
	Manager  *session.Manager
	Settings *config.Settings
}

// defaultSettings are tight enough that timeout scenarios finish quickly.
func defaultSettings() *config.Settings {
	return &config.Settings{
		MaxCoordinatorRounds: 2,
		PerOfferTimeoutMS:    500,
		SessionWallClockMS:   20_000,
		SelectionTopK:        5,
		SelectionThreshold:   0.05,
		RecursionMaxDepth:    1,
		EmbeddingDimension:   128,
	}
}

// fiveAgents is the standing e2e registry: three engineers who plausibly
// match software demands, plus two who match almost nothing technical.
func fiveAgents() map[string]*config.AgentProfile {
	return map[string]*config.AgentProfile{
		"alice": {
			AgentID:      "alice",
			DisplayName:  "Alice",
			Capabilities: []string{"machine learning pipelines", "python model training"},
			Context:      "ml engineer with healthcare data experience",
		},
		"bob": {
			AgentID:      "bob",
			DisplayName:  "Bob",
			Capabilities: []string{"machine learning infrastructure", "model deployment"},
		},
		"carol": {
			AgentID:      "carol",
			DisplayName:  "Carol",
			Capabilities: []string{"healthcare compliance", "clinical data engineering"},
		},
		"dave": {
			AgentID:      "dave",
			DisplayName:  "Dave",
			Capabilities: []string{"watercolor illustration", "gallery curation"},
		},
		"eve": {
			AgentID:      "eve",
			DisplayName:  "Eve",
			Capabilities: []string{"violin recitals", "orchestra conducting"},
		},
	}
}

// NewHarness assembles the full stack over a scripted client.
func NewHarness(t *testing.T, settings *config.Settings) *Harness {
	t.Helper()
	if settings == nil {
		settings = defaultSettings()
	}

	client := llmmock.NewScriptedClient()
	registry := config.NewAgentRegistry(fiveAgents())
	ch := channel.NewDefaultChannel(client, registry)
	bus := events.NewBus(events.DefaultBufferSize)
	eng := engine.New(engine.Deps{
		Settings:      settings,
		Registry:      registry,
		Channel:       ch,
		Matcher:       resonance.NewMatcher(encmock.NewEncoder(settings.EmbeddingDimension), settings.SelectionTopK, settings.SelectionThreshold),
		Bus:           bus,
		Formulator:    skill.NewFormulation(client),
		Offers:        skill.NewOfferSkill(ch),
		Coordinator:   skill.NewCoordinatorSkill(client),
		SubNegotiator: skill.NewSubNegotiationSkill(client),
	})
	return &Harness{
		Client:   client,
		Registry: registry,
		Bus:      bus,
		Manager:  session.NewManager(eng),
		Settings: settings,
	}
}

// Run drives one demand to its terminal event and returns the final session
// snapshot plus every event published for it, in delivery order.
func (h *Harness) Run(t *testing.T, rawDemand string) (models.NegotiationSession, []events.Envelope) {
	t.Helper()

	snap := h.Manager.Create("e2e-requester", rawDemand)
	sub := h.Bus.Subscribe(snap.ID)

	final, err := h.Manager.Run(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("run session: %v", err)
	}
	return final, drain(t, sub)
}

// drain collects the subscription until the terminal event closes it.
func drain(t *testing.T, sub *events.Subscription) []events.Envelope {
	t.Helper()

	var got []events.Envelope
	deadline := time.After(30 * time.Second)
	for {
		select {
		case env, ok := <-sub.Events():
			if !ok {
				return got
			}
			got = append(got, env)
		case <-deadline:
			t.Fatalf("event stream never terminated; got %d events", len(got))
		}
	}
}

func eventTypes(envs []events.Envelope) []events.EventType {
	out := make([]events.EventType, len(envs))
	for i, e := range envs {
		out[i] = e.Type
	}
	return out
}

func countType(envs []events.Envelope, et events.EventType) int {
	n := 0
	for _, e := range envs {
		if e.Type == et {
			n++
		}
	}
	return n
}

// checkStreamInvariants asserts the properties every terminated stream must
// hold: exactly one terminal event, in final position, and a gap-free trace.
func checkStreamInvariants(t *testing.T, sess models.NegotiationSession, envs []events.Envelope) {
	t.Helper()

	if len(envs) == 0 {
		t.Fatal("no events published")
	}
	terminals := 0
	for _, e := range envs {
		if e.Type.Terminal() {
			terminals++
		}
		if e.NegotiationID != sess.ID {
			t.Errorf("event %s tagged with foreign negotiation id %s", e.Type, e.NegotiationID)
		}
	}
	if terminals != 1 {
		t.Errorf("want exactly 1 terminal event, got %d", terminals)
	}
	if !envs[len(envs)-1].Type.Terminal() {
		t.Errorf("stream did not end on a terminal event: %s", envs[len(envs)-1].Type)
	}

	if sess.State != models.StateCompleted {
		t.Errorf("session ended in state %s", sess.State)
	}
	for i, entry := range sess.Trace.Entries() {
		if entry.Seq != i {
			t.Errorf("trace gap at index %d: seq %d", i, entry.Seq)
		}
	}
}
