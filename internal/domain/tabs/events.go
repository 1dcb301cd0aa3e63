package tabs

// EventType classifies tab lifecycle events.
type EventType string

const (
	EventCreated   EventType = "created"
	EventClosed    EventType = "closed"
	EventActivated EventType = "activated"
	EventMoved     EventType = "moved"
	EventUpdated   EventType = "updated"
)

// Event is one tab state change, published to sinks after the manager's
// mutation completes. Tab is a snapshot taken at publication time.
type Event struct {
	Type EventType `json:"type"`
	Tab  Tab       `json:"tab"`

	// From and To carry positions for EventMoved.
	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`
}

// Sink receives tab events. Sinks are invoked outside the manager's lock, in
// registration order; a sink may call back into the manager.
type Sink interface {
	OnTabEvent(event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) OnTabEvent(event Event) { f(event) }

// fanout dispatches one event to every registered sink, skipping nils.
type fanout struct {
	sinks []Sink
}

func (f *fanout) publish(events []Event) {
	for _, event := range events {
		for _, sink := range f.sinks {
			if sink == nil {
				continue
			}
			sink.OnTabEvent(event)
		}
	}
}
