package protocol

import "errors"

var (
	// ErrFraming indicates a malformed frame: a length prefix below the
	// header size, above MaxFrameSize, or a payload that does not match
	// its declared length. The stream is desynchronised and the
	// connection must be dropped.
	ErrFraming = errors.New("protocol: malformed frame")

	// ErrUnknownType indicates a well-framed message of a type this
	// implementation does not handle. Callers skip the frame and keep
	// the connection.
	ErrUnknownType = errors.New("protocol: unknown message type")
)
