package telescope

import "errors"

// Registry errors. The boolean operation surface folds these to
// true/false; the error-returning siblings expose them so the API can
// map failures to precise status codes.
var (
	// ErrInvalidSlot indicates a slot number outside [MinSlot, MaxSlot].
	ErrInvalidSlot = errors.New("telescope: invalid slot")

	// ErrNoDescription indicates a start on a slot with nothing stored.
	ErrNoDescription = errors.New("telescope: no description stored")

	// ErrAlreadyActive indicates a start on a slot with a live transport.
	ErrAlreadyActive = errors.New("telescope: slot already active")

	// ErrNotActive indicates a command for a slot with no connected
	// transport.
	ErrNotActive = errors.New("telescope: slot not active")

	// ErrStopUnconfirmed indicates a stop whose owned process could not
	// be confirmed dead within the grace period. Bookkeeping is removed
	// regardless.
	ErrStopUnconfirmed = errors.New("telescope: stop not confirmed")

	// ErrPersistence indicates a failed save of the persisted documents.
	ErrPersistence = errors.New("telescope: persistence failed")
)
