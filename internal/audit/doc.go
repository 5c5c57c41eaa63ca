// Package audit implements async event dispatching for security-relevant
// session transitions.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, log, Redis stream, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: write-once record with kind, timestamp, user and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; that responsibility belongs to the Session.
//
// # What this package must NOT do
//
//   - Propagate sink failures or panics to the emitter.
//   - Import goSession or any sibling internal package.
package audit
