package events

import "github.com/parley-ai/parley/pkg/models"

// traceKindEvents maps trace kinds back to the event type they mirror.
// coordinator_round and events_dropped entries have no single event
// counterpart and are skipped.
var traceKindEvents = map[models.TraceKind]EventType{
	models.TraceFormulated:        EventFormulationReady,
	models.TraceResonanceComputed: EventResonanceActivated,
	models.TraceOfferReceived:     EventOfferReceived,
	models.TracePlanEmitted:       EventPlanReady,
	models.TraceError:             EventNegotiationError,
}

// ReplayTrace re-derives an event stream from a session's trace chain, for
// observers that joined after the fact. The reconstruction keeps trace
// order and original timestamps. It is a best-effort audit view, not a
// byte-for-byte replay: per-tool-call and barrier events are represented by
// their coordinator_round trace entries, which ReplayTrace skips.
func ReplayTrace(trace *models.TraceChain) []Envelope {
	entries := trace.Entries()
	out := make([]Envelope, 0, len(entries))
	for _, e := range entries {
		eventType, ok := traceKindEvents[e.Kind]
		if !ok {
			continue
		}
		out = append(out, Envelope{
			Type:          eventType,
			NegotiationID: trace.SessionID(),
			Timestamp:     e.Timestamp,
			Data:          e.Payload,
		})
	}
	return out
}
