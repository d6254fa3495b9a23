// Package engine drives negotiation sessions: the lifecycle state machine,
// the parallel offer fan-out and barrier, the bounded coordinator loop with
// tool dispatch, and the per-session trace chain.
//
// The engine owns no prompts and no tool schemas; those live in pkg/skill.
// One engine drives many sessions; each session is mutated only by the
// goroutine running it.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/parley-ai/parley/pkg/channel"
	"github.com/parley-ai/parley/pkg/config"
	"github.com/parley-ai/parley/pkg/events"
	"github.com/parley-ai/parley/pkg/models"
	"github.com/parley-ai/parley/pkg/resonance"
	"github.com/parley-ai/parley/pkg/skill"
)

// Deps are the engine's collaborators. All of them are mandatory: an engine
// with no coordinator skill (or any other hole) is a programmer error, not
// a runtime condition.
type Deps struct {
	Settings      *config.Settings
	Registry      *config.AgentRegistry
	Channel       channel.Channel
	Matcher       *resonance.Matcher
	Bus           *events.Bus
	Formulator    skill.Formulator
	Offers        skill.OfferSolicitor
	Coordinator   skill.Coordinator
	SubNegotiator skill.SubNegotiator
}

// Engine is the negotiation orchestrator.
type Engine struct {
	settings      *config.Settings
	registry      *config.AgentRegistry
	channel       channel.Channel
	matcher       *resonance.Matcher
	bus           *events.Bus
	formulator    skill.Formulator
	offers        skill.OfferSolicitor
	coordinator   skill.Coordinator
	subNegotiator skill.SubNegotiator
}

// New assembles an engine. Panics on any missing collaborator and on a
// channel whose registry handle differs from the engine's: profile data is
// shared by reference, and a copied registry would silently break the
// connectivity contract.
func New(deps Deps) *Engine {
	switch {
	case deps.Settings == nil:
		panic("engine.New: settings must not be nil")
	case deps.Registry == nil:
		panic("engine.New: registry must not be nil")
	case deps.Channel == nil:
		panic("engine.New: channel must not be nil")
	case deps.Matcher == nil:
		panic("engine.New: matcher must not be nil")
	case deps.Bus == nil:
		panic("engine.New: bus must not be nil")
	case deps.Formulator == nil:
		panic("engine.New: formulator must not be nil")
	case deps.Offers == nil:
		panic("engine.New: offer solicitor must not be nil")
	case deps.Coordinator == nil:
		panic("engine.New: coordinator skill must not be nil")
	case deps.SubNegotiator == nil:
		panic("engine.New: sub-negotiator must not be nil")
	}
	if deps.Channel.Registry() != deps.Registry {
		panic("engine.New: channel holds a different profile registry than the engine")
	}
	return &Engine{
		settings:      deps.Settings,
		registry:      deps.Registry,
		channel:       deps.Channel,
		matcher:       deps.Matcher,
		bus:           deps.Bus,
		formulator:    deps.Formulator,
		offers:        deps.Offers,
		coordinator:   deps.Coordinator,
		subNegotiator: deps.SubNegotiator,
	}
}

// publish emits one event for the session. The session's trace chain
// receives drop accounting for slow subscribers.
func (e *Engine) publish(sess *models.NegotiationSession, t events.EventType, data any) {
	e.bus.Publish(events.Envelope{
		Type:          t,
		NegotiationID: sess.ID,
		Timestamp:     time.Now().UTC(),
		Data:          data,
	}, sess.Trace)
}

// transition advances the session state. An illegal edge is an internal
// invariant violation and fails the session.
func (e *Engine) transition(sess *models.NegotiationSession, next models.SessionState) error {
	if !sess.State.CanTransition(next) {
		return &Error{
			Kind: KindInternalInvariant,
			Op:   "transition",
			Err:  fmt.Errorf("illegal transition %s -> %s", sess.State, next),
		}
	}
	slog.Debug("Session state transition",
		"negotiation_id", sess.ID, "from", sess.State, "to", next)
	sess.Update(func() {
		sess.State = next
		sess.UpdatedAt = time.Now().UTC()
	})
	return nil
}
