// Package websocket streams session lifecycle events to WebSocket clients.
//
// Clients connect to /api/v1/events, optionally with ?session=<id> to follow
// a single session. Each text frame holds one or more newline separated JSON
// messages.
package websocket
