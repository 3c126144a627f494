package orchestrator

// EventKind classifies orchestrator notifications.
type EventKind string

const (
	EventStatusChanged    EventKind = "status_changed"
	EventSessionFinalized EventKind = "session_finalized"
)

// Event is one observer notification. Delivery is best-effort over a bounded
// channel: a slow or absent consumer costs dropped events, never a blocked
// state machine.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"sessionId"`
	Status    string    `json:"status"`
	Segments  int       `json:"segments,omitempty"`
}

// Notifications exposes the bounded event stream. The channel is closed by
// Close.
func (o *Orchestrator) Notifications() <-chan Event {
	return o.notifications
}

// notify sends under the orchestrator mutex so a send can never race the
// channel close in Close. Events after close are dropped like a full buffer.
func (o *Orchestrator) notify(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.notifications <- ev:
	default:
		o.logger.Debug().
			Str("kind", string(ev.Kind)).
			Str("sessionId", ev.SessionID).
			Msg("Notification dropped, buffer full")
	}
}
