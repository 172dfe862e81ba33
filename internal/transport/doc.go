// Package transport implements the live communication channels to
// telescopes: direct TCP to a running device server, spawned local
// servers bridged over loopback, direct serial, ASCOM Alpaca HTTP and
// an in-process simulated mount.
//
// A transport belongs to exactly one slot and is driven by the
// registry's communication tick. Communicate performs one bounded
// exchange per tick; nothing in the package blocks the tick beyond a
// small read or write deadline. Construction failures roll back
// cleanly: no spawned process or half-open socket survives a factory
// error.
package transport
