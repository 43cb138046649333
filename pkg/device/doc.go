// Package device defines the device-level command model and the motion
// command compiler.
//
// The compiler is a deterministic, pure transformation: canonical path ×
// transform → ordered command sequence. Compiling the same path with the
// same transform and options always yields an identical command slice, which
// is what makes resumable streaming after a reconnect (and compile caching)
// sound: the replay source can be rebuilt from scratch and still line up
// with the sequence numbers the firmware has already acknowledged.
//
// # Compilation
//
// Compilation happens entirely before any command reaches the socket:
//
//  1. Apply the affine transform to every endpoint and reject the whole job
//     with OUT_OF_BOUNDS if any endpoint leaves the drawable area.
//  2. Merge consecutive same-direction pen-down line segments shorter than
//     the minimum step, preserving the exact final endpoint of each run.
//  3. Emit pen commands only on pen-state transitions, never redundantly.
//  4. Assign contiguous sequence numbers starting at 0.
package device
