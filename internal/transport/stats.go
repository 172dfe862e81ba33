package transport

import "time"

// Stats holds operational counters for a transport.
type Stats struct {
	// FramesRx counts position reports received.
	FramesRx uint64 `json:"frames_rx"`

	// UnknownFrames counts well-framed messages of unhandled types.
	UnknownFrames uint64 `json:"unknown_frames"`

	// GotosTx counts slew commands transmitted.
	GotosTx uint64 `json:"gotos_tx"`

	// Reconnects counts successful re-establishments after a drop.
	Reconnects uint64 `json:"reconnects"`

	// LastActivity is the last time data moved in either direction.
	LastActivity time.Time `json:"last_activity"`
}

// StatsProvider is implemented by transports that keep counters.
// Status surfaces feature-detect it with a type assertion.
type StatsProvider interface {
	Stats() Stats
}
