// Package path defines the canonical, device-independent representation of a
// drawing: an ordered sequence of segments with pen-up/pen-down semantics.
//
// A [Path] is immutable once constructed. Drawing methods produce paths
// (usually through a [Builder]), the compiler in pkg/device consumes them, and
// the preview package reads them without affecting device state.
//
// # Invariants
//
// Every valid path starts with a MoveTo segment with the pen raised; a
// drawing never begins with ink on the page. Pen state only changes at
// segment boundaries, never mid-segment. Construction validates these
// invariants and fails with a MALFORMED_PATH error otherwise.
package path
