// Package session owns the telemetry connection lifecycle.
//
// Ownership boundary:
// - dialing the endpoint and holding the single live connection
// - lifecycle events (open, message, error, close) delivered in order
// - fixed-interval reconnect after every close
// - fire-and-forget sends while the connection is open
//
// State machine:
// - Disconnected -> Connecting -> Open -> Closing -> Disconnected
//
// - a failed dial reports an error event, then a close event; the close
//   schedules the next attempt.
//
// Listener callbacks run on one dispatch goroutine. Callbacks may call Send
// but must not call Close.
package session
