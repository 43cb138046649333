package wire

import (
	"bytes"
	"net"
	"testing"

	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/errors"
)

func TestFrameRoundTrip(t *testing.T) {
	commands := []device.Command{
		{Seq: 0, Op: device.OpPenDown},
		{Seq: 1, Op: device.OpMove, X: 10, Y: 0, Speed: 40},
		{Seq: 2, Op: device.OpMove, X: 10.25, Y: -3.17, Speed: 120},
		{Seq: 3, Op: device.OpPenUp},
		{Seq: 4, Op: device.OpHome},
		{Seq: 4294967295, Op: device.OpMove, X: -0.01, Y: 0.01, Speed: 0.1},
	}
	for _, want := range commands {
		frame := EncodeFrame(want)
		got, err := DecodeFrame(frame)
		if err != nil {
			t.Fatalf("DecodeFrame(%v): %v", want, err)
		}
		if got != want {
			t.Errorf("round trip changed command: got %v, want %v", got, want)
		}
	}
}

func TestFrameSizes(t *testing.T) {
	move := EncodeFrame(device.Command{Seq: 7, Op: device.OpMove, X: 1, Y: 2, Speed: 40})
	if len(move) != frameOverhead+movePayloadLen {
		t.Errorf("move frame is %d bytes, want %d", len(move), frameOverhead+movePayloadLen)
	}
	pen := EncodeFrame(device.Command{Seq: 8, Op: device.OpPenUp})
	if len(pen) != frameOverhead+barePayloadLen {
		t.Errorf("pen frame is %d bytes, want %d", len(pen), frameOverhead+barePayloadLen)
	}
}

func TestDecodeFrameCorruption(t *testing.T) {
	frame := EncodeFrame(device.Command{Seq: 5, Op: device.OpMove, X: 10, Y: 20, Speed: 40})

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"flipped payload byte", func(f []byte) []byte {
			f[8] ^= 0x40
			return f
		}},
		{"flipped checksum byte", func(f []byte) []byte {
			f[len(f)-1] ^= 0x01
			return f
		}},
		{"truncated", func(f []byte) []byte {
			return f[:4]
		}},
		{"length byte mismatch", func(f []byte) []byte {
			f[4] = 3
			f[len(f)-2] = 0 // keep only the length check tripping, not the crc
			body := f[:len(f)-2]
			crc := Checksum(body)
			f[len(f)-2] = byte(crc >> 8)
			f[len(f)-1] = byte(crc)
			return f
		}},
		{"unknown opcode", func(f []byte) []byte {
			f[5] = 0x7F
			body := f[:len(f)-2]
			crc := Checksum(body)
			f[len(f)-2] = byte(crc >> 8)
			f[len(f)-1] = byte(crc)
			return f
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := tt.mutate(append([]byte(nil), frame...))
			_, err := DecodeFrame(mutated)
			if !errors.Is(err, errors.ErrCodeFrameCorrupt) {
				t.Errorf("expected FRAME_CORRUPT, got %v", err)
			}
		})
	}
}

func TestReadFrame(t *testing.T) {
	var buf bytes.Buffer
	want := []device.Command{
		{Seq: 0, Op: device.OpPenDown},
		{Seq: 1, Op: device.OpMove, X: 5, Y: 5, Speed: 40},
	}
	for _, cmd := range want {
		buf.Write(EncodeFrame(cmd))
	}
	for _, cmd := range want {
		raw, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		got, err := DecodeFrame(raw)
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		if got != cmd {
			t.Errorf("got %v, want %v", got, cmd)
		}
	}
}

func TestAckRoundTrip(t *testing.T) {
	acks := []Ack{
		{Seq: 0, Status: AckOK},
		{Seq: 99, Status: AckError, Code: 0x21},
	}
	var buf bytes.Buffer
	for _, a := range acks {
		buf.Write(EncodeAck(a))
	}
	for _, want := range acks {
		got, err := ReadAck(&buf)
		if err != nil {
			t.Fatalf("ReadAck: %v", err)
		}
		if got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	if acks[0].OK() == false || acks[1].OK() == true {
		t.Error("OK() disagrees with status")
	}
}

func TestChecksumKnownVector(t *testing.T) {
	// CRC-16/CCITT-FALSE of "123456789" is the standard check value.
	if got := Checksum([]byte("123456789")); got != 0x29B1 {
		t.Errorf("Checksum = 0x%04X, want 0x29B1", got)
	}
}

func TestHandshake(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	want := MachineInfo{ProtocolVersion: ProtocolVersion, Window: 8, MaxSpeed: 150}
	done := make(chan error, 1)
	go func() {
		done <- AcceptHello(server, want, false)
	}()

	got, err := Hello(client)
	if err != nil {
		t.Fatalf("Hello: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if err := <-done; err != nil {
		t.Fatalf("AcceptHello: %v", err)
	}
}

func TestHandshakeBusy(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go AcceptHello(server, MachineInfo{ProtocolVersion: ProtocolVersion, Window: 8}, true)

	_, err := Hello(client)
	if !errors.Is(err, errors.ErrCodeMachineInUse) {
		t.Errorf("expected MACHINE_IN_USE, got %v", err)
	}
}

func TestHandshakeVersionMismatch(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go AcceptHello(server, MachineInfo{ProtocolVersion: ProtocolVersion + 1, Window: 8}, false)

	_, err := Hello(client)
	if !errors.Is(err, errors.ErrCodeHandshake) {
		t.Errorf("expected HANDSHAKE, got %v", err)
	}
}
