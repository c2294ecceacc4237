// Package relink maintains a single logical WebSocket connection over an
// unreliable transport.
//
// A Conn:
//   - Reconnects automatically after a drop, with randomized backoff
//   - Correlates requests with asynchronous responses via opaque keys
//   - Emits lifecycle events (connect, disconnect, message, verify)
//   - Sends periodic liveness probes while connected
//
// In-flight requests are failed on disconnect, never replayed.
package relink
