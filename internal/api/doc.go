// Package api implements the HTTP REST API and WebSocket server for
// Skybridge Core.
//
// This package provides:
//   - REST endpoints for the telescope slot registry (descriptions,
//     lifecycle, goto/sync), the device model catalog and event history
//   - WebSocket hub for real-time connection and position broadcasts
//   - Static bearer token authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between frontends (planetarium software,
// observatory dashboards) and the slot registry. Commands go straight
// into the registry; connection events and position samples flow back
// through the registry's notifier/sampler seams into the WebSocket hub.
//
// # Security
//
// Authentication is a single static bearer token (config
// api.auth_token). An empty token leaves the API open, the expected
// mode on a trusted observatory LAN. WebSocket connections use
// single-use tickets to prevent token leakage in URLs.
//
// # Graceful Degradation
//
// The server operates without history or catalog wiring: the affected
// endpoints return service unavailable or empty lists while slot
// control keeps working.
package api
