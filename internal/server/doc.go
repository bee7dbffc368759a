// Package server implements the notification relay: a TCP (and optionally
// WebSocket) listener that runs one Session per connection on top of a
// shared Registry.
//
// # Architecture
//
//   - Server: accepts connections and starts a Session for each
//   - Session: owns one connection's protocol state, with a read loop that
//     dispatches commands and a write loop that drains an ordered queue
//   - Registry: the set of live sessions, the notification id counter and
//     the fan-out of notification frames to consuming sessions
//
// # Locking
//
// The Registry lock only guards its session set. Broadcast copies the set,
// releases the lock and then queues frames without blocking, taking each
// recipient's own lock to read its login and consume flag. A full queue drops
// that one delivery.
//
// # Lifecycle
//
// A session is registered by Start and unregistered exactly once by Stop,
// which the read loop runs on EOF, read errors, QUIT and dispatch panics. A
// failing write closes the connection, which ends the read loop.
package server
