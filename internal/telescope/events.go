package telescope

import "time"

// EventType identifies a connection lifecycle event.
type EventType string

const (
	// EventConnected fires when a slot's transport reaches Connected.
	EventConnected EventType = "telescope_connected"

	// EventDisconnected fires when a connected slot loses its link,
	// fails, or is stopped.
	EventDisconnected EventType = "telescope_disconnected"
)

// Event is a connection edge observed by the communication loop.
type Event struct {
	Type EventType `json:"type"`
	Slot int       `json:"slot"`
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// Notifier receives connection events. Notify is called with the
// registry mutex held and must not block; consumers that can lag
// (sockets, databases) buffer internally and drop with a warning.
type Notifier interface {
	Notify(e Event)
}

// Sampler receives position samples for connected slots, rate-limited
// by the configured sample interval. Same non-blocking contract as
// Notifier.
type Sampler interface {
	Sample(slot int, name string, s PositionSample)
}
