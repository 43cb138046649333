// Package firmware implements the socket client that streams compiled
// commands to the plotter and manages the acknowledgment protocol.
//
// # Architecture
//
// One Client drives one job: it dials the firmware, performs the wire
// handshake, and runs a single event loop that pulls dispatchable commands
// from the pen state machine, writes them as frames, and applies incoming
// acknowledgments back to the machine. A receive goroutine per connection
// feeds acknowledgments into the loop; everything else happens on the loop
// goroutine, so there is no shared mutable protocol state.
//
// # Flow control and recovery
//
// At most one window of commands may be outstanding; the window size comes
// from the firmware's handshake reply, optionally capped by Options.Window.
// The oldest outstanding command is watched against an acknowledgment
// deadline: the first expiry retransmits the same frame once, the second
// marks the connection Degraded and starts reconnecting with exponential
// backoff. After a bounded number of failed attempts the connection is
// Failed and the job is over. On a successful reconnect the state machine
// replays from the first unacknowledged sequence number.
//
// Cancellation is cooperative: the loop checks its context before every
// dispatch, and on cancellation writes a best-effort pen-up and home before
// closing, so the pen is never left down on the paper.
package firmware
