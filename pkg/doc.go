// Package pkg provides the core libraries for the penplot machine driver.
//
// # Overview
//
// Penplot drives a hanging-V pen plotter: two motors at the top corners of
// a board shorten and lengthen belts to swing a pen carriage across a page.
// The pkg directory is organized along the driver's data flow:
//
//  1. [method] - Drawing methods that produce canonical paths
//  2. [path], [device] - Path model and the motion command compiler
//  3. [machine], [wire], [firmware] - Pen state machine and the socket protocol
//  4. [job] - Orchestration from request to terminal state
//  5. [hardware], [preview], [config], [cache] - Rig math and supporting services
//
// # Architecture
//
// The typical flow of one drawing:
//
//	Drawing method (lines, hatch, stipple, vector)
//	         ↓
//	    [path] canonical path (pen-up moves, pen-down lines)
//	         ↓
//	    [device] compiler (transform, bounds check, short-run merge)
//	         ↓
//	    [machine] pen state machine (ordering, pen gating, resync)
//	         ↓
//	    [firmware] socket client (framing, acks, reconnection)
//	         ↓
//	    TCP socket to the machine
//
// # Quick Start
//
// Compile a drawing and stream it to a machine:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/penplot/pkg/firmware"
//	    "github.com/matzehuels/penplot/pkg/job"
//	    "github.com/matzehuels/penplot/pkg/method"
//	    "github.com/matzehuels/penplot/pkg/method/builtin"
//	)
//
//	ctrl := job.NewController(job.Options{
//	    Registry: builtin.Registry(),
//	    Dialer:   firmware.TCPDialer("192.168.1.50:7878"),
//	})
//	j, err := ctrl.Start(context.Background(), job.Request{
//	    Method: "lines",
//	    Params: method.Params{"spacing": 5.0},
//	})
//	if err != nil {
//	    // compile or handshake failure, nothing was drawn
//	}
//	<-j.Done()
//
// # Main Packages
//
// [method] - The drawing-method contract and its typed parameter map.
// Concrete methods live in subpackages; [method/builtin] lists the catalog.
//
// [path] - The canonical path model: ordered pen-up and pen-down segments
// with finite millimetre coordinates, plus a builder and a fingerprint used
// as the compile cache key.
//
// [device] - Lowers a canonical path into the motion command stream:
// placement transform, drawable-area validation, and merging of sub-step
// collinear runs.
//
// [machine] - The pen state machine. Owns dispatch order, gates motion
// behind unacknowledged pen transitions, and replays from the last
// acknowledged command after a reconnect.
//
// [wire] - Binary framing: length-prefixed frames with CRC-16 checksums,
// fixed-size acks, the hello handshake, and the pause/resume/end control
// bytes.
//
// [firmware] - The socket client that streams frames under a command
// window, retransmits on ack timeout, and reconnects with backoff. Also
// hosts the protocol simulator used by tests and the simulate command.
//
// [job] - One-drawing-at-a-time orchestration with terminal events,
// pause/resume, and cooperative cancellation that parks the pen.
//
// [hardware] - Belt geometry for the hanging-V rig: cartesian/belt-length
// conversion, step math, and rig dimension validation.
//
// [preview] - SVG rendering of a compiled stream and draw-time estimation.
//
// [config] - TOML machine profiles with defaults-then-overlay loading.
//
// [cache] - Compile memoization keyed by path fingerprint and compile
// options.
package pkg
