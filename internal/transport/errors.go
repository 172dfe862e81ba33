package transport

import "errors"

// Sentinel errors for transport construction and operation.
var (
	// ErrUnknownKind indicates a connection kind the factory cannot
	// construct.
	ErrUnknownKind = errors.New("unknown connection kind")

	// ErrSpawnFailure indicates the device server process could not be
	// launched or never became ready.
	ErrSpawnFailure = errors.New("device server spawn failed")

	// ErrConnectFailure indicates the socket, serial port or HTTP
	// endpoint could not be established within the bounded timeout.
	ErrConnectFailure = errors.New("connection failed")

	// ErrUnsupported indicates an operation the transport variant does
	// not implement, such as sync on a socket transport.
	ErrUnsupported = errors.New("operation not supported by this transport")

	// ErrClosed indicates use of a transport after Close.
	ErrClosed = errors.New("transport closed")
)
