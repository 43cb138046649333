package firmware

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/machine"
	"github.com/matzehuels/penplot/pkg/observability"
	"github.com/matzehuels/penplot/pkg/wire"
)

// ConnectionState describes the transport's health.
type ConnectionState string

// Connection states.
const (
	ConnIdle      ConnectionState = "idle"
	ConnConnected ConnectionState = "connected"
	ConnDegraded  ConnectionState = "degraded"
	ConnFailed    ConnectionState = "failed"
	ConnClosed    ConnectionState = "closed"
)

// Dialer opens a connection to the firmware. Tests substitute net.Pipe.
type Dialer func(ctx context.Context) (net.Conn, error)

// TCPDialer returns a Dialer for a TCP address.
func TCPDialer(addr string) Dialer {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
}

// Defaults for Options zero values.
const (
	DefaultAckTimeout        = 2 * time.Second
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = 500 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	// Window caps outstanding unacknowledged commands. Zero means use the
	// window the firmware reports in its handshake reply.
	Window int

	// AckTimeout is how long a command may stay unacknowledged before the
	// recovery ladder starts.
	AckTimeout time.Duration

	// ReconnectAttempts bounds reconnection tries after a Degraded event;
	// ReconnectDelay is the initial backoff, doubling each attempt.
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.AckTimeout <= 0 {
		o.AckTimeout = DefaultAckTimeout
	}
	if o.ReconnectAttempts <= 0 {
		o.ReconnectAttempts = DefaultReconnectAttempts
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// inflight is one dispatched, unacknowledged command.
type inflight struct {
	cmd      device.Command
	frame    []byte
	sentAt   time.Time
	deadline time.Time
	resent   bool
}

type ackEvent struct {
	ack wire.Ack
	err error
}

// Client streams one job's commands over a firmware connection.
type Client struct {
	dial Dialer
	opts Options
	log  *log.Logger

	mu    sync.Mutex
	state ConnectionState
	info  wire.MachineInfo
	conn  net.Conn
	wmu   sync.Mutex // serializes conn writes (event loop vs. Control)

	acks chan ackEvent
	stop chan struct{} // closed when the current connection is abandoned

	outstanding []inflight
}

// New builds a Client. The dialer is invoked on Run and again on every
// reconnection attempt.
func New(dial Dialer, opts Options) *Client {
	return &Client{
		dial:  dial,
		opts:  opts.withDefaults(),
		log:   opts.withDefaults().Logger,
		state: ConnIdle,
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Info returns the machine configuration from the last successful
// handshake. Zero before the first connection.
func (c *Client) Info() wire.MachineInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// Control sends a control byte outside the sequenced command stream.
func (c *Client) Control(ctrl byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New(errors.ErrCodeTransport, "not connected")
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := wire.WriteControl(conn, ctrl); err != nil {
		return errors.Wrap(errors.ErrCodeTransport, err, "sending control 0x%02x", ctrl)
	}
	return nil
}

// Run streams the machine's program until every command is acknowledged,
// the context is cancelled, or the connection fails beyond recovery.
// It blocks; callers run it on its own goroutine and watch the machine for
// progress.
func (c *Client) Run(ctx context.Context, m *machine.Machine) error {
	if err := c.connect(ctx); err != nil {
		c.setState(ConnFailed)
		return err
	}
	defer c.close(ConnClosed)

	c.log.Debug("streaming started", "window", c.window(), "timeout", c.opts.AckTimeout)

	for {
		if err := ctx.Err(); err != nil {
			return c.cancelJob(m)
		}
		if m.Done() && len(c.outstanding) == 0 {
			c.wmu.Lock()
			wire.WriteControl(c.conn, wire.CtrlEnd)
			c.wmu.Unlock()
			return nil
		}

		// Re-read the window every pass; a reconnected firmware may
		// advertise a smaller one than the connection before it.
		if err := c.fillWindow(ctx, m, c.window()); err != nil {
			if err := c.recover(ctx, m, err); err != nil {
				return err
			}
			continue
		}

		if err := c.waitEvent(ctx, m); err != nil {
			if ctx.Err() != nil {
				return c.cancelJob(m)
			}
			if errors.Is(err, errors.ErrCodeTransport) || errors.Is(err, errors.ErrCodeAckTimeout) {
				if err := c.recover(ctx, m, err); err != nil {
					return err
				}
				continue
			}
			return err
		}
	}
}

// fillWindow dispatches commands until the window is full, the machine has
// nothing dispatchable, or the context is cancelled. Cancellation is
// checked before every dispatch so at most the command already in flight
// reaches the wire after it.
func (c *Client) fillWindow(ctx context.Context, m *machine.Machine, window int) error {
	for len(c.outstanding) < window {
		if err := ctx.Err(); err != nil {
			return nil
		}
		cmd, ok := m.Next()
		if !ok {
			return nil
		}
		if err := c.send(cmd); err != nil {
			return err
		}
		observability.Stream().OnDispatch(ctx, cmd.Seq, cmd.Op.String())
	}
	return nil
}

func (c *Client) send(cmd device.Command) error {
	frame := wire.EncodeFrame(cmd)
	now := time.Now()
	c.wmu.Lock()
	_, err := c.conn.Write(frame)
	c.wmu.Unlock()
	if err != nil {
		return errors.Wrap(errors.ErrCodeTransport, err, "writing frame %d", cmd.Seq)
	}
	c.outstanding = append(c.outstanding, inflight{
		cmd:      cmd,
		frame:    frame,
		sentAt:   now,
		deadline: now.Add(c.opts.AckTimeout),
	})
	return nil
}

// waitEvent blocks until an acknowledgment arrives, the oldest outstanding
// command times out, the machine signals a change, or the context is
// cancelled.
func (c *Client) waitEvent(ctx context.Context, m *machine.Machine) error {
	var expiry <-chan time.Time
	if len(c.outstanding) > 0 {
		d := time.Until(c.outstanding[0].deadline)
		if d < 0 {
			d = 0
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		expiry = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()

	case ev := <-c.acks:
		if ev.err != nil {
			return errors.Wrap(errors.ErrCodeTransport, ev.err, "reading acknowledgment")
		}
		return c.handleAck(ctx, m, ev.ack)

	case <-expiry:
		return c.handleTimeout(ctx)

	case <-m.Changes():
		// Pause, resume, or an already-applied ack; re-check dispatch.
		return nil
	}
}

func (c *Client) handleAck(ctx context.Context, m *machine.Machine, ack wire.Ack) error {
	if !ack.OK() {
		return errors.New(errors.ErrCodeTransport,
			"firmware rejected command %d with code 0x%02x", ack.Seq, ack.Code)
	}
	if len(c.outstanding) > 0 && c.outstanding[0].cmd.Seq == ack.Seq {
		observability.Stream().OnAck(ctx, ack.Seq, time.Since(c.outstanding[0].sentAt))
		c.outstanding = c.outstanding[1:]
	}
	m.Ack(ack.Seq)
	return nil
}

// handleTimeout walks the recovery ladder for the oldest outstanding
// command: one retransmission with the same sequence number, then a
// degraded connection.
func (c *Client) handleTimeout(ctx context.Context) error {
	if len(c.outstanding) == 0 {
		return nil
	}
	oldest := &c.outstanding[0]
	if time.Now().Before(oldest.deadline) {
		return nil
	}
	if !oldest.resent {
		c.log.Warn("ack overdue, retransmitting", "seq", oldest.cmd.Seq)
		observability.Stream().OnRetransmit(ctx, oldest.cmd.Seq)
		c.wmu.Lock()
		_, err := c.conn.Write(oldest.frame)
		c.wmu.Unlock()
		if err != nil {
			return errors.Wrap(errors.ErrCodeTransport, err, "retransmitting frame %d", oldest.cmd.Seq)
		}
		oldest.resent = true
		oldest.deadline = time.Now().Add(c.opts.AckTimeout)
		return nil
	}
	return errors.New(errors.ErrCodeAckTimeout,
		"command %d unacknowledged after retransmission", oldest.cmd.Seq)
}

// recover handles a Degraded connection: roll the machine back to the first
// unacknowledged command, then reconnect with exponential backoff. The
// cause is returned, marked terminal, when every attempt fails.
func (c *Client) recover(ctx context.Context, m *machine.Machine, cause error) error {
	c.log.Warn("connection degraded", "cause", cause)
	observability.Stream().OnDegraded(ctx, m.Context().LastAcked)
	c.close(ConnDegraded)
	m.Degrade()

	delay := c.opts.ReconnectDelay
	for attempt := 1; attempt <= c.opts.ReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return c.cancelJob(m)
		case <-time.After(delay):
		}
		err := c.connect(ctx)
		observability.Stream().OnReconnect(ctx, attempt, err)
		if err == nil {
			c.log.Info("reconnected", "attempt", attempt, "resume_from", m.Context().LastAcked+1)
			m.Resynced()
			return nil
		}
		c.log.Warn("reconnect failed", "attempt", attempt, "err", err)
		delay *= 2
	}

	c.setState(ConnFailed)
	return errors.Wrap(errors.GetCode(cause), cause,
		"connection failed after %d reconnect attempts", c.opts.ReconnectAttempts)
}

// cancelJob parks the pen with a best-effort pen-up and home, closes the
// connection, and reports the job cancelled. No further program commands
// are dispatched afterwards.
func (c *Client) cancelJob(m *machine.Machine) error {
	epilogue := m.Cancel()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil && len(epilogue) > 0 {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.wmu.Lock()
		for _, cmd := range epilogue {
			if _, err := conn.Write(wire.EncodeFrame(cmd)); err != nil {
				break
			}
		}
		wire.WriteControl(conn, wire.CtrlEnd)
		c.wmu.Unlock()
	}
	c.close(ConnClosed)
	return errors.New(errors.ErrCodeJobCancelled, "job cancelled")
}

// connect dials, performs the handshake, and starts the receive loop.
func (c *Client) connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeTransport, err, "dialing firmware")
	}
	info, err := wire.Hello(conn)
	if err != nil {
		conn.Close()
		return err
	}

	acks := make(chan ackEvent)
	stop := make(chan struct{})
	go recvLoop(conn, acks, stop)

	c.mu.Lock()
	c.conn = conn
	c.info = info
	c.state = ConnConnected
	c.acks = acks
	c.stop = stop
	c.mu.Unlock()
	c.outstanding = nil
	return nil
}

// recvLoop reads acknowledgments until the connection errors or is
// abandoned.
func recvLoop(conn net.Conn, acks chan<- ackEvent, stop <-chan struct{}) {
	for {
		ack, err := wire.ReadAck(conn)
		select {
		case acks <- ackEvent{ack: ack, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) close(state ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	// Failed is terminal; a later cleanup must not mask it.
	if c.state != ConnFailed {
		c.state = state
	}
}

func (c *Client) setState(state ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func (c *Client) window() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.Window > 0 && c.opts.Window < c.info.Window {
		return c.opts.Window
	}
	return c.info.Window
}
