package models

import (
	"sync"
	"sync/atomic"
	"time"
)

// SessionState identifies where a negotiation session is in its lifecycle.
type SessionState string

const (
	StateCreated        SessionState = "CREATED"
	StateFormulating    SessionState = "FORMULATING"
	StateFormulated     SessionState = "FORMULATED"
	StateEncoding       SessionState = "ENCODING"
	StateOffering       SessionState = "OFFERING"
	StateBarrierWaiting SessionState = "BARRIER_WAITING"
	StateSynthesising   SessionState = "SYNTHESISING"
	StateCompleted      SessionState = "COMPLETED"
)

// sessionTransitions is the forward edge set of the lifecycle DAG.
// Every non-terminal state may additionally jump straight to COMPLETED
// (cancellation or unrecoverable error), which CanTransition allows.
var sessionTransitions = map[SessionState]SessionState{
	StateCreated:        StateFormulating,
	StateFormulating:    StateFormulated,
	StateFormulated:     StateEncoding,
	StateEncoding:       StateOffering,
	StateOffering:       StateBarrierWaiting,
	StateBarrierWaiting: StateSynthesising,
	StateSynthesising:   StateCompleted,
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s SessionState) CanTransition(next SessionState) bool {
	if s == StateCompleted {
		return false
	}
	if next == StateCompleted {
		return true
	}
	return sessionTransitions[s] == next
}

// Terminal reports whether the state ends the session.
func (s SessionState) Terminal() bool {
	return s == StateCompleted
}

// Outcome distinguishes how a completed session ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeError     Outcome = "error"
	OutcomeCancelled Outcome = "cancelled"
)

// NegotiationSession is the unit of work: one requester demand negotiated
// against a registry of candidate agents. The engine goroutine driving the
// session is its sole mutator; external callers only submit input or cancel.
// Observers receive read-only snapshots, which may be taken while the run is
// in flight: the driving goroutine wraps every mutation in Update, and
// Snapshot reads under the same lock.
type NegotiationSession struct {
	ID             string              `json:"id"`
	Requester      string              `json:"requester"`
	RawDemand      string              `json:"raw_demand"`
	Demand         *FormulatedDemand   `json:"demand,omitempty"`
	Participants   []*AgentParticipant `json:"participants,omitempty"`
	Offers         []*Offer            `json:"offers,omitempty"`
	Turns          []*CoordinatorTurn  `json:"turns,omitempty"`
	Plan           *Plan               `json:"plan,omitempty"`
	Clarifications []string            `json:"clarifications,omitempty"` // deferred requester questions
	State          SessionState        `json:"state"`
	Outcome        Outcome             `json:"outcome,omitempty"`
	ErrorDetail    string              `json:"error_detail,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`

	Trace *TraceChain `json:"-"`

	mu        *sync.RWMutex
	cancelled int32
}

// NewSession creates a session in CREATED state with a fresh trace chain.
func NewSession(id, requester, rawDemand string) *NegotiationSession {
	now := time.Now().UTC()
	return &NegotiationSession{
		ID:        id,
		Requester: requester,
		RawDemand: rawDemand,
		State:     StateCreated,
		CreatedAt: now,
		UpdatedAt: now,
		Trace:     NewTraceChain(id),
		mu:        new(sync.RWMutex),
	}
}

// Update runs fn while holding the session's write lock. The goroutine
// driving the session wraps every mutation in Update, including appends to
// the tool-call records of a turn already in Turns, so concurrent Snapshot
// calls observe consistent state. fn must not call Snapshot or Update.
func (s *NegotiationSession) Update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Cancel flips the cancellation flag. Safe to call from any goroutine and
// more than once.
func (s *NegotiationSession) Cancel() {
	atomic.StoreInt32(&s.cancelled, 1)
}

// Cancelled reports whether an external cancel has been requested.
func (s *NegotiationSession) Cancelled() bool {
	return atomic.LoadInt32(&s.cancelled) == 1
}

// Participant returns the selected participant with the given protocol id,
// or nil if the agent was not selected for this session.
func (s *NegotiationSession) Participant(agentID string) *AgentParticipant {
	for _, p := range s.Participants {
		if p.AgentID == agentID {
			return p
		}
	}
	return nil
}

// Snapshot returns a read-only copy of the session, safe to take while the
// driving goroutine is still mutating it. Fields are read under the session
// lock; participants and turns are copied record by record because the
// engine keeps writing to them after append (participant state, tool calls),
// while offers, the demand, and the plan are immutable once set and shared.
func (s *NegotiationSession) Snapshot() NegotiationSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := NegotiationSession{
		ID:          s.ID,
		Requester:   s.Requester,
		RawDemand:   s.RawDemand,
		Demand:      s.Demand,
		Plan:        s.Plan,
		State:       s.State,
		Outcome:     s.Outcome,
		ErrorDetail: s.ErrorDetail,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Trace:       s.Trace,
		mu:          new(sync.RWMutex),
		cancelled:   atomic.LoadInt32(&s.cancelled),
	}
	snap.Participants = make([]*AgentParticipant, len(s.Participants))
	for i, p := range s.Participants {
		cp := *p
		snap.Participants[i] = &cp
	}
	snap.Offers = append([]*Offer(nil), s.Offers...)
	snap.Turns = make([]*CoordinatorTurn, len(s.Turns))
	for i, turn := range s.Turns {
		ct := *turn
		ct.ToolCalls = append([]ToolInvocation(nil), turn.ToolCalls...)
		ct.ToolResults = append([]ToolResult(nil), turn.ToolResults...)
		snap.Turns[i] = &ct
	}
	snap.Clarifications = append([]string(nil), s.Clarifications...)
	return snap
}
