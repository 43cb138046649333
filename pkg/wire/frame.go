package wire

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/errors"
)

// Payload sizes per opcode.
const (
	movePayloadLen = 11 // opcode + x int32 + y int32 + speed uint16
	barePayloadLen = 1  // opcode only
)

// frameOverhead is the fixed byte count around the payload:
// seq uint32 + len uint8 + crc uint16.
const frameOverhead = 7

// Coordinate and speed quantization factors.
const (
	coordScale = 100 // hundredths of a millimetre
	speedScale = 10  // tenths of a millimetre per second
)

// EncodeFrame serializes a command into a wire frame.
func EncodeFrame(cmd device.Command) []byte {
	payload := encodePayload(cmd)

	frame := make([]byte, 0, frameOverhead+len(payload))
	frame = binary.BigEndian.AppendUint32(frame, cmd.Seq)
	frame = append(frame, byte(len(payload)))
	frame = append(frame, payload...)
	frame = binary.BigEndian.AppendUint16(frame, Checksum(frame))
	return frame
}

func encodePayload(cmd device.Command) []byte {
	if cmd.Op != device.OpMove {
		return []byte{byte(cmd.Op)}
	}
	payload := make([]byte, 0, movePayloadLen)
	payload = append(payload, byte(cmd.Op))
	payload = binary.BigEndian.AppendUint32(payload, uint32(int32(math.Round(cmd.X*coordScale))))
	payload = binary.BigEndian.AppendUint32(payload, uint32(int32(math.Round(cmd.Y*coordScale))))
	payload = binary.BigEndian.AppendUint16(payload, uint16(math.Round(cmd.Speed*speedScale)))
	return payload
}

// DecodeFrame parses a wire frame back into a command. It verifies the
// checksum and the payload length, returning FRAME_CORRUPT on mismatch.
//
// The command stream decoder is used by the firmware stub in tests and by
// anything replaying a captured stream; the driver itself only encodes.
func DecodeFrame(frame []byte) (device.Command, error) {
	if len(frame) < frameOverhead {
		return device.Command{}, errors.New(errors.ErrCodeFrameCorrupt,
			"frame too short: %d bytes", len(frame))
	}

	body := frame[:len(frame)-2]
	want := binary.BigEndian.Uint16(frame[len(frame)-2:])
	if got := Checksum(body); got != want {
		return device.Command{}, errors.New(errors.ErrCodeFrameCorrupt,
			"checksum mismatch: computed 0x%04x, frame carries 0x%04x", got, want)
	}

	payloadLen := int(frame[4])
	if payloadLen != len(frame)-frameOverhead {
		return device.Command{}, errors.New(errors.ErrCodeFrameCorrupt,
			"length byte %d does not match payload size %d", payloadLen, len(frame)-frameOverhead)
	}

	cmd := device.Command{
		Seq: binary.BigEndian.Uint32(frame[:4]),
		Op:  device.Opcode(frame[5]),
	}
	switch cmd.Op {
	case device.OpMove:
		if payloadLen != movePayloadLen {
			return device.Command{}, errors.New(errors.ErrCodeFrameCorrupt,
				"move payload is %d bytes, want %d", payloadLen, movePayloadLen)
		}
		cmd.X = float64(int32(binary.BigEndian.Uint32(frame[6:10]))) / coordScale
		cmd.Y = float64(int32(binary.BigEndian.Uint32(frame[10:14]))) / coordScale
		cmd.Speed = float64(binary.BigEndian.Uint16(frame[14:16])) / speedScale
	case device.OpPenUp, device.OpPenDown, device.OpHome:
		if payloadLen != barePayloadLen {
			return device.Command{}, errors.New(errors.ErrCodeFrameCorrupt,
				"%s payload is %d bytes, want %d", cmd.Op, payloadLen, barePayloadLen)
		}
	default:
		return device.Command{}, errors.New(errors.ErrCodeFrameCorrupt,
			"unknown opcode 0x%02x", frame[5])
	}
	return cmd, nil
}

// ReadFrame reads one complete frame from r, using the length byte to size
// the read. Used by firmware stubs in tests.
func ReadFrame(r io.Reader) ([]byte, error) {
	head := make([]byte, 5)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	rest := make([]byte, int(head[4])+2)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	return append(head, rest...), nil
}
