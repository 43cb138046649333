package wire

import (
	"encoding/binary"
	"io"

	"github.com/matzehuels/penplot/pkg/errors"
)

// ProtocolVersion is the framing version this driver speaks.
const ProtocolVersion = 1

// helloMagic opens every connection so the firmware can reject strangers
// that happen to dial its port.
const helloMagic = 0xA5

// Handshake reply status bytes.
const (
	helloAccept = 0x01
	helloBusy   = 0x00
)

// helloReplySize is the firmware handshake reply length:
// status + version uint16 + window uint16 + max speed uint16.
const helloReplySize = 7

// MachineInfo is the configuration the firmware reports during the
// handshake. It overrides profile defaults: the machine knows its own
// command window and speed limit better than any local config file.
type MachineInfo struct {
	ProtocolVersion uint16
	Window          int     // max unacknowledged commands outstanding
	MaxSpeed        float64 // mm/s
}

// Hello performs the client side of the handshake on an established
// connection: send the greeting, read the machine's reply.
//
// A busy reply maps to MACHINE_IN_USE; a version mismatch or malformed
// reply maps to HANDSHAKE.
func Hello(rw io.ReadWriter) (MachineInfo, error) {
	if _, err := rw.Write([]byte{helloMagic, ProtocolVersion}); err != nil {
		return MachineInfo{}, errors.Wrap(errors.ErrCodeTransport, err, "sending hello")
	}

	buf := make([]byte, helloReplySize)
	if _, err := io.ReadFull(rw, buf); err != nil {
		return MachineInfo{}, errors.Wrap(errors.ErrCodeHandshake, err, "reading hello reply")
	}

	switch buf[0] {
	case helloAccept:
	case helloBusy:
		return MachineInfo{}, errors.New(errors.ErrCodeMachineInUse,
			"the machine is already executing a job")
	default:
		return MachineInfo{}, errors.New(errors.ErrCodeHandshake,
			"unexpected hello reply status 0x%02x", buf[0])
	}

	info := MachineInfo{
		ProtocolVersion: binary.BigEndian.Uint16(buf[1:3]),
		Window:          int(binary.BigEndian.Uint16(buf[3:5])),
		MaxSpeed:        float64(binary.BigEndian.Uint16(buf[5:7])) / speedScale,
	}
	if info.ProtocolVersion != ProtocolVersion {
		return MachineInfo{}, errors.New(errors.ErrCodeHandshake,
			"firmware speaks protocol v%d, driver speaks v%d", info.ProtocolVersion, ProtocolVersion)
	}
	if info.Window < 1 {
		return MachineInfo{}, errors.New(errors.ErrCodeHandshake,
			"firmware reported a zero command window")
	}
	return info, nil
}

// AcceptHello performs the firmware side of the handshake. Used by the
// firmware stub in tests and by anyone writing a software plotter endpoint.
func AcceptHello(rw io.ReadWriter, info MachineInfo, busy bool) error {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(rw, buf); err != nil {
		return err
	}
	if buf[0] != helloMagic {
		return errors.New(errors.ErrCodeHandshake, "bad hello magic 0x%02x", buf[0])
	}

	reply := make([]byte, 0, helloReplySize)
	if busy {
		reply = append(reply, helloBusy, 0, 0, 0, 0, 0, 0)
	} else {
		reply = append(reply, helloAccept)
		reply = binary.BigEndian.AppendUint16(reply, info.ProtocolVersion)
		reply = binary.BigEndian.AppendUint16(reply, uint16(info.Window))
		reply = binary.BigEndian.AppendUint16(reply, uint16(info.MaxSpeed*speedScale))
	}
	_, err := rw.Write(reply)
	return err
}

// Control packets are single bytes outside the sequenced command stream.
// Pause and resume take effect between commands; end closes the job.
const (
	CtrlPause  = 0x10
	CtrlResume = 0x11
	CtrlEnd    = 0x12
)

// WriteControl sends a control byte.
func WriteControl(w io.Writer, ctrl byte) error {
	_, err := w.Write([]byte{ctrl})
	return err
}
