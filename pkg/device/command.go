package device

import "fmt"

// Opcode identifies a device instruction.
type Opcode uint8

// Device opcodes. The numeric values are part of the wire protocol and must
// match the firmware's accepted command set.
const (
	OpMove    Opcode = 0x01
	OpPenUp   Opcode = 0x02
	OpPenDown Opcode = 0x03
	OpHome    Opcode = 0x04
)

// String returns the opcode mnemonic.
func (op Opcode) String() string {
	switch op {
	case OpMove:
		return "Move"
	case OpPenUp:
		return "PenUp"
	case OpPenDown:
		return "PenDown"
	case OpHome:
		return "Home"
	default:
		return fmt.Sprintf("Opcode(0x%02x)", uint8(op))
	}
}

// Command is a single device-level instruction. Seq is unique and contiguous
// within a job; firmware executes commands strictly in sequence order.
//
// X, Y and Speed are only meaningful for OpMove: target position in
// millimetres and pen speed in millimetres per second.
type Command struct {
	Seq   uint32
	Op    Opcode
	X     float64
	Y     float64
	Speed float64
}

// String formats the command for logs.
func (c Command) String() string {
	if c.Op == OpMove {
		return fmt.Sprintf("#%d Move(%.2f, %.2f) @%.0fmm/s", c.Seq, c.X, c.Y, c.Speed)
	}
	return fmt.Sprintf("#%d %s", c.Seq, c.Op)
}
