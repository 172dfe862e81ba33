// Package history persists per-slot connection events and issued
// commands to SQLite, giving operators a local audit trail that
// survives restarts and works without a time-series database.
package history
