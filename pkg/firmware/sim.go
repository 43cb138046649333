package firmware

import (
	"bufio"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/hardware"
	"github.com/matzehuels/penplot/pkg/wire"
)

// Simulator is a software plotter endpoint. It speaks the full wire
// protocol, acknowledging every command, so jobs can be exercised end to
// end without hardware. The CLI's simulate mode and the package tests both
// run against it.
type Simulator struct {
	// Window is the command window advertised in the handshake.
	Window int

	// MaxSpeed is the advertised speed limit in mm/s.
	MaxSpeed float64

	// Delay is an artificial per-command execution time. Zero acknowledges
	// immediately; a real pen obviously does not.
	Delay time.Duration

	// Rig enables a belt-space replay of incoming moves: each move is
	// executed as whole motor steps on two virtual belts, the way the real
	// firmware does, and the reached position is logged at debug level.
	// The zero value disables the replay.
	Rig hardware.Dimensions

	Logger *log.Logger

	active atomic.Int32
}

func (s *Simulator) info() wire.MachineInfo {
	window := s.Window
	if window <= 0 {
		window = 8
	}
	speed := s.MaxSpeed
	if speed <= 0 {
		speed = 200
	}
	return wire.MachineInfo{ProtocolVersion: wire.ProtocolVersion, Window: window, MaxSpeed: speed}
}

// carriage replays motor motion in belt space. Moves are quantized to
// whole steps per belt, so the reached position carries the same rounding
// the physical machine has.
type carriage struct {
	rig   hardware.Dimensions
	belts hardware.Belts
}

func newCarriage(rig hardware.Dimensions) *carriage {
	x, y := rig.ToMachine(0, 0)
	return &carriage{rig: rig, belts: hardware.NewBeltsAt(x, y, rig.MotorInterspace)}
}

// moveTo winds the belts toward a page coordinate and returns the page
// position actually reached after step rounding.
func (cr *carriage) moveTo(x, y float64) (float64, float64) {
	mx, my := cr.rig.ToMachine(x, y)
	left, right := hardware.CartesianToBelt(mx, my, cr.rig.MotorInterspace)
	cr.belts.MoveSteps(
		hardware.MMToSteps(left-cr.belts.Left),
		hardware.MMToSteps(right-cr.belts.Right),
	)
	px, py := cr.belts.Cartesian()
	return cr.rig.ToPage(px, py)
}

func (s *Simulator) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// Serve accepts connections until the listener closes. Only one connection
// draws at a time; concurrent dials get the busy handshake reply, matching
// the single-job rule of the real firmware.
func (s *Simulator) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.ServeConn(conn)
	}
}

// ServeConn drives the protocol on a single connection and closes it when
// the stream ends.
func (s *Simulator) ServeConn(conn net.Conn) {
	defer conn.Close()

	busy := s.active.Add(1) > 1
	defer s.active.Add(-1)

	if err := wire.AcceptHello(conn, s.info(), busy); err != nil || busy {
		return
	}
	s.logger().Debug("simulator accepted connection", "remote", conn.RemoteAddr())

	var car *carriage
	if s.Rig.MotorInterspace > 0 {
		car = newCarriage(s.Rig)
	}

	r := bufio.NewReader(conn)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case wire.CtrlPause, wire.CtrlResume:
			// The driver stops dispatching while paused; frames already in
			// flight still execute and get acknowledged below.
			s.logger().Debug("simulator control", "byte", b)
			continue
		case wire.CtrlEnd:
			s.logger().Debug("simulator stream ended")
			return
		}
		r.UnreadByte()

		raw, err := wire.ReadFrame(r)
		if err != nil {
			return
		}
		cmd, err := wire.DecodeFrame(raw)
		if err != nil {
			// A corrupt frame on a real machine is refused, not executed.
			conn.Write(wire.EncodeAck(wire.Ack{Status: wire.AckError, Code: 0x01}))
			continue
		}

		if car != nil {
			switch cmd.Op {
			case device.OpMove:
				x, y := car.moveTo(cmd.X, cmd.Y)
				s.logger().Debug("simulator carriage",
					"seq", cmd.Seq, "x", fmt.Sprintf("%.2f", x), "y", fmt.Sprintf("%.2f", y))
			case device.OpHome:
				car = newCarriage(s.Rig)
			}
		}
		if s.Delay > 0 {
			time.Sleep(s.Delay)
		}
		if _, err := conn.Write(wire.EncodeAck(wire.Ack{Seq: cmd.Seq, Status: wire.AckOK})); err != nil {
			return
		}
	}
}
