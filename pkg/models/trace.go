package models

import (
	"sync"
	"time"
)

// TraceKind classifies a trace-chain entry.
type TraceKind string

const (
	TraceFormulated        TraceKind = "formulated"
	TraceResonanceComputed TraceKind = "resonance_computed"
	TraceOfferReceived     TraceKind = "offer_received"
	TraceCoordinatorRound  TraceKind = "coordinator_round"
	TracePlanEmitted       TraceKind = "plan_emitted"
	TraceError             TraceKind = "error"

	// TraceEventsDropped records deliveries lost to a slow subscriber under
	// the bus's drop-oldest policy.
	TraceEventsDropped TraceKind = "events_dropped"
)

// TraceEntry is one line of the audit log.
type TraceEntry struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Kind      TraceKind `json:"kind"`
	Payload   any       `json:"payload,omitempty"`
}

// TraceChain is the append-only audit log of one session: what the system did
// and why, in order. Sequence numbers start at 0 and are gap-free; entries are
// never rewritten. Safe for concurrent use; the engine and the event bus
// both append.
type TraceChain struct {
	mu        sync.RWMutex
	sessionID string
	entries   []TraceEntry
}

// NewTraceChain creates an empty trace chain for a session.
func NewTraceChain(sessionID string) *TraceChain {
	return &TraceChain{sessionID: sessionID}
}

// SessionID returns the owning session's id.
func (t *TraceChain) SessionID() string {
	return t.sessionID
}

// Append adds an entry with the next sequence number and returns it.
func (t *TraceChain) Append(kind TraceKind, payload any) TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := TraceEntry{
		Seq:       len(t.entries),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Payload:   payload,
	}
	t.entries = append(t.entries, entry)
	return entry
}

// Entries returns a copy of all entries in sequence order.
func (t *TraceChain) Entries() []TraceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]TraceEntry(nil), t.entries...)
}

// Len returns the number of entries.
func (t *TraceChain) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
