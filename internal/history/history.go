package history

import (
	"context"
	"time"
)

// Event kinds stored in the history table. Connection kinds mirror the
// registry's event types; command kinds are written by the control
// surfaces when they issue a goto or sync.
const (
	KindConnected    = "telescope_connected"
	KindDisconnected = "telescope_disconnected"
	KindGoto         = "goto"
	KindSync         = "sync"
)

// Entry represents a single recorded event.
//
// Detail carries kind-specific payload (for commands, the requested
// coordinates) and is stored as JSON.
type Entry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// EventID is the public identifier, generated when empty.
	EventID string `json:"event_id"`

	// Slot is the registry slot the event belongs to.
	Slot int `json:"slot"`

	// Kind is one of the Kind* values.
	Kind string `json:"kind"`

	// Name is the telescope display name at the time of the event.
	Name string `json:"name,omitempty"`

	// Detail is the kind-specific payload.
	Detail map[string]any `json:"detail,omitempty"`

	// CreatedAt is the event timestamp (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which history entries to return.
type Filter struct {
	Slot  int    // optional: 0 returns all slots
	Kind  string // optional: filter by event kind
	Limit int    // default 50, max 200
}

// Repository stores and retrieves event history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record persists an entry, generating EventID and CreatedAt when
	// empty.
	Record(ctx context.Context, e *Entry) error

	// List returns entries matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]Entry, error)

	// Prune deletes entries older than the given duration and reports
	// how many rows were removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
