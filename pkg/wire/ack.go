package wire

import (
	"encoding/binary"
	"io"
)

// AckStatus is the firmware's verdict on a command.
type AckStatus uint8

// Acknowledgment statuses.
const (
	AckOK    AckStatus = 0x00
	AckError AckStatus = 0x01
)

// AckSize is the fixed acknowledgment length in bytes.
const AckSize = 6

// Ack is the firmware's confirmation that the command at Seq was received
// and executed. Code carries a firmware-specific error detail when Status
// is AckError.
type Ack struct {
	Seq    uint32
	Status AckStatus
	Code   uint8
}

// OK reports whether the acknowledgment is a success.
func (a Ack) OK() bool { return a.Status == AckOK }

// EncodeAck serializes an acknowledgment. Used by firmware stubs in tests.
func EncodeAck(a Ack) []byte {
	buf := make([]byte, AckSize)
	binary.BigEndian.PutUint32(buf[:4], a.Seq)
	buf[4] = byte(a.Status)
	buf[5] = a.Code
	return buf
}

// DecodeAck parses a six-byte acknowledgment.
func DecodeAck(buf []byte) Ack {
	return Ack{
		Seq:    binary.BigEndian.Uint32(buf[:4]),
		Status: AckStatus(buf[4]),
		Code:   buf[5],
	}
}

// ReadAck reads one acknowledgment from r.
func ReadAck(r io.Reader) (Ack, error) {
	buf := make([]byte, AckSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Ack{}, err
	}
	return DecodeAck(buf), nil
}
