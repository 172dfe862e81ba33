// Package telescope is the slot registry at the centre of the daemon:
// up to nine numbered slots, each holding a stored device description
// and, when started, a live transport channel. A single mutex
// serializes every operation with the communication loop tick, so one
// goroutine at a time touches any transport.
//
// Descriptions persist as JSON documents that survive malformed
// content by degrading to an empty registry, and connection events and
// position telemetry fan out through the Notifier and Sampler seams.
package telescope
