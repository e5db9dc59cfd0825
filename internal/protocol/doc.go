// Package protocol owns the telemetry wire contract.
//
// Ownership boundary:
// - request encoding into length-prefixed frames
// - response decoding into a closed set of message variants
// - discriminant policy (unknown kinds decode to Unknown, never fail)
//
// Frame primitives live in protocol/frame; connection lifecycle lives in
// protocol/session.
package protocol
