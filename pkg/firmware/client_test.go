package firmware

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/machine"
	"github.com/matzehuels/penplot/pkg/wire"
)

// stubFirmware is a software plotter endpoint: it answers the handshake,
// parses frames, and acknowledges them, with knobs for withholding acks and
// dropping the connection.
type stubFirmware struct {
	window     int
	busy       bool
	closeAfter int // close the connection after this many acks

	// noAck withholds the acknowledgment for a frame; nth counts deliveries
	// of the same sequence number starting at 1.
	noAck func(cmd device.Command, nth int) bool

	mu       sync.Mutex
	frames   []device.Command
	controls []byte
}

func (s *stubFirmware) serve(conn net.Conn) {
	defer conn.Close()
	info := wire.MachineInfo{ProtocolVersion: wire.ProtocolVersion, Window: s.window, MaxSpeed: 200}
	if err := wire.AcceptHello(conn, info, s.busy); err != nil || s.busy {
		return
	}

	r := bufio.NewReader(conn)
	acked := 0
	counts := make(map[uint32]int)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		if b == wire.CtrlPause || b == wire.CtrlResume || b == wire.CtrlEnd {
			s.mu.Lock()
			s.controls = append(s.controls, b)
			s.mu.Unlock()
			continue
		}
		r.UnreadByte()

		raw, err := wire.ReadFrame(r)
		if err != nil {
			return
		}
		cmd, err := wire.DecodeFrame(raw)
		if err != nil {
			return
		}
		counts[cmd.Seq]++
		s.mu.Lock()
		s.frames = append(s.frames, cmd)
		s.mu.Unlock()

		if s.noAck != nil && s.noAck(cmd, counts[cmd.Seq]) {
			continue
		}
		if _, err := conn.Write(wire.EncodeAck(wire.Ack{Seq: cmd.Seq, Status: wire.AckOK})); err != nil {
			return
		}
		acked++
		if s.closeAfter > 0 && acked >= s.closeAfter {
			return
		}
	}
}

func (s *stubFirmware) seen() []device.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]device.Command(nil), s.frames...)
}

func (s *stubFirmware) seenControls() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.controls...)
}

// dialSeq returns a Dialer that hands out one pipe per stub in order, then
// refuses further connections.
func dialSeq(stubs ...*stubFirmware) Dialer {
	var next atomic.Int32
	return func(ctx context.Context) (net.Conn, error) {
		i := int(next.Add(1)) - 1
		if i >= len(stubs) {
			return nil, fmt.Errorf("connection refused")
		}
		client, server := net.Pipe()
		go stubs[i].serve(server)
		return client, nil
	}
}

func quietOpts() Options {
	return Options{
		AckTimeout:        100 * time.Millisecond,
		ReconnectAttempts: 2,
		ReconnectDelay:    time.Millisecond,
		Logger:            log.New(io.Discard),
	}
}

func compiledSquareEdge() []device.Command {
	return []device.Command{
		{Seq: 0, Op: device.OpPenDown},
		{Seq: 1, Op: device.OpMove, X: 10, Y: 0, Speed: 40},
		{Seq: 2, Op: device.OpMove, X: 10, Y: 10, Speed: 40},
		{Seq: 3, Op: device.OpPenUp},
	}
}

func TestRunCompletesJob(t *testing.T) {
	stub := &stubFirmware{window: 4}
	c := New(dialSeq(stub), quietOpts())
	m := machine.New(compiledSquareEdge())

	if err := c.Run(context.Background(), m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !m.Done() {
		t.Error("machine not completed after Run")
	}

	frames := stub.seen()
	if len(frames) != 5 {
		t.Fatalf("stub saw %d frames, want 5", len(frames))
	}
	for i, cmd := range frames {
		if cmd.Seq != uint32(i) {
			t.Errorf("frame %d has seq %d, want contiguous from 0", i, cmd.Seq)
		}
	}
	if frames[0].Op != device.OpHome {
		t.Errorf("first frame is %s, want home", frames[0].Op)
	}
	if ctrls := stub.seenControls(); len(ctrls) != 1 || ctrls[0] != wire.CtrlEnd {
		t.Errorf("controls = %v, want single end byte", ctrls)
	}
	if pen := m.Context(); pen.PenDown || pen.LastAcked != 4 {
		t.Errorf("pen context %+v, want pen up with LastAcked 4", pen)
	}
}

func TestWindowBackpressure(t *testing.T) {
	// Pen transitions get acknowledged so dispatch reaches the motion
	// commands; move acks are withheld so the window fills and stays full.
	stub := &stubFirmware{
		window: 2,
		noAck: func(cmd device.Command, nth int) bool {
			return cmd.Op == device.OpMove
		},
	}
	opts := quietOpts()
	opts.AckTimeout = 5 * time.Second // keep the recovery ladder out of this test
	c := New(dialSeq(stub), opts)
	m := machine.New(compiledSquareEdge())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, m) }()

	// home, pen-down, then both moves fill the window of 2; the trailing
	// pen-up must not dispatch while the window is full.
	deadline := time.Now().Add(time.Second)
	for len(stub.seen()) < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if n := len(stub.seen()); n != 4 {
		t.Errorf("stub saw %d frames with a full window, want exactly 4", n)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, errors.ErrCodeJobCancelled) {
			t.Errorf("Run error = %v, want JOB_CANCELLED", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not finish after cancel")
	}
}

func TestRetransmitThenDegraded(t *testing.T) {
	// The stub acknowledges homing, then goes silent on seq 1.
	stub := &stubFirmware{
		window: 4,
		noAck: func(cmd device.Command, nth int) bool {
			return cmd.Seq >= 1
		},
	}
	opts := quietOpts()
	opts.AckTimeout = 30 * time.Millisecond
	c := New(dialSeq(stub), opts) // redial refused: only one stub
	m := machine.New(compiledSquareEdge())

	err := c.Run(context.Background(), m)
	if !errors.Is(err, errors.ErrCodeAckTimeout) {
		t.Fatalf("Run error = %v, want ACK_TIMEOUT", err)
	}
	if c.State() != ConnFailed {
		t.Errorf("state = %s, want failed", c.State())
	}

	// Exactly one retransmission of seq 1: the original delivery plus one.
	var deliveries int
	for _, cmd := range stub.seen() {
		if cmd.Seq == 1 {
			deliveries++
		}
	}
	if deliveries != 2 {
		t.Errorf("seq 1 delivered %d times, want exactly 2", deliveries)
	}
}

func TestCancelParksPen(t *testing.T) {
	// Ack homing, then hold everything so the job hangs mid-stream.
	stub := &stubFirmware{
		window: 4,
		noAck: func(cmd device.Command, nth int) bool {
			return cmd.Seq >= 1 && cmd.Op == device.OpPenDown
		},
	}
	opts := quietOpts()
	opts.AckTimeout = 5 * time.Second
	c := New(dialSeq(stub), opts)
	m := machine.New(compiledSquareEdge())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, m) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if frames := stub.seen(); len(frames) >= 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	var err error
	select {
	case err = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !errors.Is(err, errors.ErrCodeJobCancelled) {
		t.Fatalf("Run error = %v, want JOB_CANCELLED", err)
	}

	// The last two frames on the wire are the safety epilogue.
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		frames := stub.seen()
		n := len(frames)
		if n >= 2 && frames[n-2].Op == device.OpPenUp && frames[n-1].Op == device.OpHome {
			return
		}
		time.Sleep(time.Millisecond)
	}
	frames := stub.seen()
	t.Fatalf("no pen-up/home epilogue; frames = %v", frames)
}

func TestReconnectResumesFromLastAcked(t *testing.T) {
	// First connection dies after acknowledging homing and pen-down.
	first := &stubFirmware{window: 4, closeAfter: 2}
	second := &stubFirmware{window: 4}
	c := New(dialSeq(first, second), quietOpts())
	m := machine.New(compiledSquareEdge())

	if err := c.Run(context.Background(), m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !m.Done() {
		t.Error("machine not completed after reconnect")
	}

	frames := second.seen()
	if len(frames) == 0 {
		t.Fatal("second connection saw no frames")
	}
	if frames[0].Seq != 2 {
		t.Errorf("replay started at seq %d, want 2 (first unacknowledged)", frames[0].Seq)
	}
}

func TestReconnectAdoptsNewWindow(t *testing.T) {
	// First connection advertises a window of 4 and dies after two acks;
	// the replacement advertises 1 and withholds acks, so only a single
	// command may be outstanding on it.
	first := &stubFirmware{window: 4, closeAfter: 2}
	second := &stubFirmware{
		window: 1,
		noAck:  func(device.Command, int) bool { return true },
	}
	opts := quietOpts()
	opts.AckTimeout = 5 * time.Second
	c := New(dialSeq(first, second), opts)
	m := machine.New(compiledSquareEdge())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, m) }()

	deadline := time.Now().Add(time.Second)
	for len(second.seen()) < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if n := len(second.seen()); n != 1 {
		t.Errorf("second connection saw %d frames with a window of 1, want exactly 1", n)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not finish after cancel")
	}
}

func TestFillWindowStopsOnCancel(t *testing.T) {
	stub := &stubFirmware{window: 4}
	c := New(dialSeq(stub), quietOpts())
	m := machine.New(compiledSquareEdge())

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.close(ConnClosed)
	cancel()

	if err := c.fillWindow(ctx, m, 4); err != nil {
		t.Fatalf("fillWindow: %v", err)
	}
	if sent, _, _ := m.Progress(); sent != 0 {
		t.Errorf("dispatched %d commands after cancellation, want 0", sent)
	}
	if n := len(stub.seen()); n != 0 {
		t.Errorf("stub saw %d frames after cancellation, want 0", n)
	}
}

func TestBusyMachineRejectsJob(t *testing.T) {
	stub := &stubFirmware{window: 4, busy: true}
	c := New(dialSeq(stub), quietOpts())
	m := machine.New(compiledSquareEdge())

	err := c.Run(context.Background(), m)
	if !errors.Is(err, errors.ErrCodeMachineInUse) {
		t.Fatalf("Run error = %v, want MACHINE_IN_USE", err)
	}
	if c.State() != ConnFailed {
		t.Errorf("state = %s, want failed", c.State())
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	if opts.AckTimeout != DefaultAckTimeout {
		t.Errorf("AckTimeout = %v, want %v", opts.AckTimeout, DefaultAckTimeout)
	}
	if opts.ReconnectAttempts != DefaultReconnectAttempts {
		t.Errorf("ReconnectAttempts = %d, want %d", opts.ReconnectAttempts, DefaultReconnectAttempts)
	}
	if opts.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("ReconnectDelay = %v, want %v", opts.ReconnectDelay, DefaultReconnectDelay)
	}
	if opts.Logger == nil {
		t.Error("Logger not defaulted")
	}
}
