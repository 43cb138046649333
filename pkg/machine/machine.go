// Package machine implements the pen state machine that sequences compiled
// commands onto the transport while keeping a truthful record of the
// physical pen.
//
// # Architecture
//
// The machine owns the dispatch program for one job: a homing prologue
// followed by the compiled command stream, re-stamped so wire sequence
// numbers are contiguous from zero. Two loops drive it from outside: the
// send loop pulls commands with Next and the receive loop applies firmware
// confirmations with Ack. The machine itself never blocks; when nothing is
// dispatchable, Next reports false and callers wait on Changes.
//
// # State
//
// PenContext records position, pen flag and the last acknowledged sequence
// number. It is updated only when an acknowledgment arrives, never when a
// command is sent, so after a reconnect the machine can replay from
// LastAcked+1 knowing everything before it physically happened and nothing
// after it is certain.
package machine

import (
	"sync"

	"github.com/matzehuels/penplot/pkg/device"
)

// State is the machine's lifecycle phase.
type State string

// Machine states.
const (
	StateIdle      State = "idle"
	StateHoming    State = "homing"
	StateReady     State = "ready"
	StateDrawing   State = "drawing"
	StatePaused    State = "paused"
	StateResyncing State = "resyncing"
	StateCompleted State = "completed"
)

// PenContext is the machine's record of physical pen state. LastAcked is -1
// until the first acknowledgment arrives.
type PenContext struct {
	X, Y      float64
	PenDown   bool
	LastAcked int64
}

// Machine sequences one job's commands and tracks acknowledgment progress.
// All methods are safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	state   State
	pen     PenContext
	program []device.Command
	cursor  int   // next program index to dispatch
	penGate int64 // seq of the newest dispatched unacked pen transition, -1 none
	notify  chan struct{}
	homed   chan struct{}
	isHomed bool

	// wasPaused remembers an operator pause across a degraded connection
	// so a reconnect does not silently resume motion.
	wasPaused bool
}

// New builds a machine for a compiled command stream. The stream is
// prefixed with a homing command and every command is re-stamped so the
// dispatch sequence runs contiguously from zero.
func New(compiled []device.Command) *Machine {
	program := make([]device.Command, 0, len(compiled)+1)
	program = append(program, device.Command{Seq: 0, Op: device.OpHome})
	for i, cmd := range compiled {
		cmd.Seq = uint32(i + 1)
		program = append(program, cmd)
	}
	return &Machine{
		state:   StateIdle,
		pen:     PenContext{LastAcked: -1},
		program: program,
		penGate: -1,
		notify:  make(chan struct{}, 1),
		homed:   make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Context returns a snapshot of the pen record.
func (m *Machine) Context() PenContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pen
}

// Progress reports dispatched and acknowledged counts against the total
// program length.
func (m *Machine) Progress() (sent, acked, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor, int(m.pen.LastAcked + 1), len(m.program)
}

// Homed is closed once the homing command has been acknowledged. Job start
// blocks on it before reporting the machine ready.
func (m *Machine) Homed() <-chan struct{} {
	return m.homed
}

// Changes signals whenever an acknowledgment or state transition may have
// made a previously blocked Next dispatchable. The channel has a one-slot
// buffer; waiters should re-check Next after each receive.
func (m *Machine) Changes() <-chan struct{} {
	return m.notify
}

func (m *Machine) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Next yields the next dispatchable command. It reports false when the
// machine is paused, resyncing, completed, waiting on the homing
// acknowledgment, or when motion is gated behind an unacknowledged pen
// transition.
func (m *Machine) Next() (device.Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateIdle:
		m.state = StateHoming
	case StateHoming:
		// Job start blocks until homing is acknowledged.
		return device.Command{}, false
	case StateReady:
		m.state = StateDrawing
	case StateDrawing:
	default:
		return device.Command{}, false
	}

	if m.cursor >= len(m.program) {
		return device.Command{}, false
	}
	cmd := m.program[m.cursor]
	if cmd.Op == device.OpMove && m.penGate > m.pen.LastAcked {
		// A pen transition is in flight; motion depending on it waits.
		return device.Command{}, false
	}
	if cmd.Op != device.OpMove {
		m.penGate = int64(cmd.Seq)
	}
	m.cursor++
	return cmd, true
}

// Ack applies a firmware acknowledgment. Acknowledgments are applied
// strictly in sequence order; duplicates and out-of-order arrivals are
// ignored and leave PenContext untouched. It reports whether the
// acknowledgment was applied.
func (m *Machine) Ack(seq uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.pen.LastAcked + 1
	if int64(seq) != next || int(seq) >= m.cursor {
		return false
	}

	cmd := m.program[seq]
	switch cmd.Op {
	case device.OpMove:
		m.pen.X, m.pen.Y = cmd.X, cmd.Y
	case device.OpPenUp:
		m.pen.PenDown = false
	case device.OpPenDown:
		m.pen.PenDown = true
	case device.OpHome:
		m.pen.X, m.pen.Y = 0, 0
		m.pen.PenDown = false
	}
	m.pen.LastAcked = int64(seq)

	if m.state == StateHoming {
		m.state = StateReady
		if !m.isHomed {
			m.isHomed = true
			close(m.homed)
		}
	}
	if m.pen.LastAcked == int64(len(m.program)-1) {
		m.state = StateCompleted
	}
	m.signal()
	return true
}

// Pause stops further dispatch without dropping queued commands. Commands
// already in flight still get acknowledged. Pausing while the connection
// is resyncing takes effect once the reconnect lands.
func (m *Machine) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateDrawing, StateReady:
		m.state = StatePaused
	case StateResyncing:
		m.wasPaused = true
	}
}

// Resume re-enables dispatch after a pause. A resume requested while the
// connection is resyncing lifts the pause that would otherwise be restored
// after the reconnect.
func (m *Machine) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StatePaused:
		m.state = StateDrawing
		m.signal()
	case StateResyncing:
		m.wasPaused = false
	}
}

// Degrade records a degraded connection. Dispatch rolls back to the first
// unacknowledged command; nothing replays until Resynced is called. An
// operator pause in effect survives the degrade.
func (m *Machine) Degrade() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateCompleted {
		return
	}
	m.wasPaused = m.state == StatePaused
	m.state = StateResyncing
	m.cursor = int(m.pen.LastAcked + 1)
	m.penGate = -1
}

// Resynced re-enters the dispatch states after a reconnect. Replay starts
// at LastAcked+1: acknowledged motion is never re-delivered, everything
// after it is sent at least once. A machine paused when the connection
// degraded comes back paused.
func (m *Machine) Resynced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateResyncing {
		return
	}
	switch {
	case m.pen.LastAcked < 0:
		m.state = StateIdle
	case m.wasPaused:
		m.state = StatePaused
		m.wasPaused = false
	default:
		m.state = StateReady
	}
	m.signal()
}

// Cancel terminates the job and returns the safety epilogue that parks the
// pen: a pen-up followed by a home, stamped with fresh sequence numbers.
// After Cancel no further program commands dispatch.
func (m *Machine) Cancel() []device.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateCompleted {
		return nil
	}
	m.state = StateCompleted
	next := uint32(len(m.program))
	return []device.Command{
		{Seq: next, Op: device.OpPenUp},
		{Seq: next + 1, Op: device.OpHome},
	}
}

// Done reports whether every program command has been acknowledged or the
// job was cancelled.
func (m *Machine) Done() bool {
	return m.State() == StateCompleted
}
