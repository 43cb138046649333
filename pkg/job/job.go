// Package job orchestrates one drawing from request to terminal state:
// produce a canonical path from a drawing method, compile it, and stream
// the commands through the pen state machine and firmware client.
//
// One physical machine draws one job at a time; starting a second job
// while one is active fails with JOB_IN_PROGRESS. Every started job ends
// with exactly one terminal event: Completed, Cancelled, or Failed. On any
// non-completed outcome the pen is left up and parked.
package job

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/penplot/pkg/cache"
	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/firmware"
	"github.com/matzehuels/penplot/pkg/machine"
	"github.com/matzehuels/penplot/pkg/method"
	"github.com/matzehuels/penplot/pkg/observability"
	"github.com/matzehuels/penplot/pkg/path"
	"github.com/matzehuels/penplot/pkg/wire"
)

// Status is a job's lifecycle phase.
type Status string

// Job statuses. The last three are terminal.
const (
	StatusPending   Status = "pending"
	StatusCompiling Status = "compiling"
	StatusHoming    Status = "homing"
	StatusStreaming Status = "streaming"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Progress counts commands through the pipeline. Acked increases
// monotonically and never exceeds Sent.
type Progress struct {
	Sent  int `json:"sent"`
	Acked int `json:"acked"`
	Total int `json:"total"`
}

// Event reports a job reaching a terminal state.
type Event struct {
	JobID  string
	Status Status
	Err    error
}

// Request describes one drawing.
type Request struct {
	Method    string
	Params    method.Params
	Transform device.Transform
	Compile   device.Options
}

// Job is a handle on one drawing in flight or finished.
type Job struct {
	ID      string
	Method  string
	started time.Time

	mu     sync.Mutex
	status Status
	err    error

	pth      *path.Path
	commands []device.Command

	m      *machine.Machine
	client *firmware.Client
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}
}

// Status returns the job's current phase.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Err returns the terminal error, nil while running or completed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Progress reports command counts. All zero before compilation finishes.
func (j *Job) Progress() Progress {
	j.mu.Lock()
	m := j.m
	total := len(j.commands)
	j.mu.Unlock()
	if m == nil {
		return Progress{Total: total}
	}
	sent, acked, total := m.Progress()
	return Progress{Sent: sent, Acked: acked, Total: total}
}

// Events delivers exactly one terminal event, then closes.
func (j *Job) Events() <-chan Event {
	return j.events
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Pen returns the last acknowledged physical pen state.
func (j *Job) Pen() machine.PenContext {
	j.mu.Lock()
	m := j.m
	j.mu.Unlock()
	if m == nil {
		return machine.PenContext{LastAcked: -1}
	}
	return m.Context()
}

// Connection returns the transport state.
func (j *Job) Connection() firmware.ConnectionState {
	j.mu.Lock()
	c := j.client
	j.mu.Unlock()
	if c == nil {
		return firmware.ConnIdle
	}
	return c.State()
}

// Path exposes the canonical path read-only for preview rendering.
func (j *Job) Path() *path.Path {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pth
}

// Commands exposes the compiled stream read-only for preview rendering.
func (j *Job) Commands() []device.Command {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]device.Command(nil), j.commands...)
}

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

// Options configures a Controller.
type Options struct {
	Registry *method.Registry
	Dialer   firmware.Dialer
	Firmware firmware.Options

	// Cache memoizes compiled command streams by path fingerprint. Nil
	// disables caching.
	Cache cache.Cache
	Keyer cache.Keyer

	Logger *log.Logger
}

// Controller owns the single-job-per-machine rule and the public job
// surface consumed by the CLI and the local API.
type Controller struct {
	opts Options
	log  *log.Logger

	mu     sync.Mutex
	active *Job
	jobs   map[string]*Job
}

// NewController builds a controller. Registry and Dialer are required;
// everything else has working defaults.
func NewController(opts Options) *Controller {
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Controller{
		opts: opts,
		log:  opts.Logger,
		jobs: make(map[string]*Job),
	}
}

// Start compiles and begins streaming a drawing. It blocks until the
// machine has homed, so a returned job is physically under way. Compile
// failures (unknown method, malformed path, out of bounds) surface here
// before any command reaches the socket.
func (c *Controller) Start(ctx context.Context, req Request) (*Job, error) {
	j := &Job{
		ID:      uuid.NewString(),
		Method:  req.Method,
		started: time.Now(),
		status:  StatusPending,
		events:  make(chan Event, 1),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	if c.active != nil && !c.active.Status().Terminal() {
		c.mu.Unlock()
		return nil, errors.New(errors.ErrCodeJobInProgress,
			"job %s is still %s", c.active.ID, c.active.Status())
	}
	c.active = j
	c.jobs[j.ID] = j
	c.mu.Unlock()

	j.setStatus(StatusCompiling)
	cmds, p, err := c.compile(ctx, req)
	if err != nil {
		c.finalize(j, err)
		return nil, err
	}

	m := machine.New(cmds)
	client := firmware.New(c.opts.Dialer, c.opts.Firmware)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	j.mu.Lock()
	j.pth = p
	j.commands = cmds
	j.m = m
	j.client = client
	j.cancel = cancel
	j.mu.Unlock()

	j.setStatus(StatusHoming)
	observability.Job().OnJobStart(runCtx, j.ID, j.Method, len(cmds)+1)
	c.log.Info("job started", "id", j.ID, "method", j.Method, "commands", len(cmds))

	go func() {
		err := client.Run(runCtx, m)
		c.finalize(j, err)
	}()

	// Job start blocks until the homing command is acknowledged.
	select {
	case <-m.Homed():
		j.setStatus(StatusStreaming)
		return j, nil
	case <-j.done:
		return j, j.Err()
	case <-ctx.Done():
		cancel()
		<-j.done
		return j, j.Err()
	}
}

// compile produces the canonical path and lowers it, consulting the
// compile cache on both sides.
func (c *Controller) compile(ctx context.Context, req Request) ([]device.Command, *path.Path, error) {
	p, err := c.opts.Registry.Produce(ctx, req.Method, req.Params)
	if err != nil {
		return nil, nil, err
	}

	opts := req.Compile
	key := c.opts.Keyer.CompileKey(p.Fingerprint(), cache.CompileKeyOpts{
		Transform:   req.Transform,
		AreaWidth:   opts.Area.Width,
		AreaHeight:  opts.Area.Height,
		MinStep:     opts.MinStep,
		DrawSpeed:   opts.DrawSpeed,
		TravelSpeed: opts.TravelSpeed,
	})
	if data, hit, err := c.opts.Cache.Get(ctx, key); err == nil && hit {
		var cmds []device.Command
		if json.Unmarshal(data, &cmds) == nil {
			observability.Cache().OnCacheHit(ctx, "compile")
			return cmds, p, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, "compile")

	cmds, err := device.Compile(p, req.Transform, opts)
	if err != nil {
		return nil, nil, err
	}
	if data, err := json.Marshal(cmds); err == nil {
		if err := c.opts.Cache.Set(ctx, key, data, cache.TTLCompile); err == nil {
			observability.Cache().OnCacheSet(ctx, "compile", len(data))
		}
	}
	return cmds, p, nil
}

// finalize records the terminal state and emits the job's one event.
func (c *Controller) finalize(j *Job, err error) {
	status := StatusCompleted
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrCodeJobCancelled):
		status = StatusCancelled
	default:
		status = StatusFailed
	}

	j.mu.Lock()
	j.status = status
	if status == StatusFailed {
		j.err = err
	}
	j.mu.Unlock()

	prog := j.Progress()
	observability.Job().OnJobEnd(context.Background(), j.ID, string(status), prog.Acked, time.Since(j.started))
	if status == StatusFailed {
		c.log.Error("job failed", "id", j.ID, "err", err)
	} else {
		c.log.Info("job finished", "id", j.ID, "status", status, "acked", prog.Acked)
	}

	j.events <- Event{JobID: j.ID, Status: status, Err: j.Err()}
	close(j.events)
	close(j.done)
}

// Get looks up a job by handle.
func (c *Controller) Get(id string) (*Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[id]
	return j, ok
}

// Active returns the current non-terminal job, or nil.
func (c *Controller) Active() *Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && !c.active.Status().Terminal() {
		return c.active
	}
	return nil
}

// Pause suspends dispatch for a streaming job. Queued commands are kept,
// and commands already in flight still complete.
func (c *Controller) Pause(id string) error {
	j, err := c.lookup(id)
	if err != nil {
		return err
	}
	if j.Status() != StatusStreaming {
		return errors.New(errors.ErrCodeInvalidInput, "job %s is %s, not streaming", id, j.Status())
	}
	j.m.Pause()
	if err := j.client.Control(wire.CtrlPause); err != nil {
		c.log.Warn("pause control not delivered", "id", id, "err", err)
	}
	j.setStatus(StatusPaused)
	return nil
}

// Resume restarts dispatch for a paused job.
func (c *Controller) Resume(id string) error {
	j, err := c.lookup(id)
	if err != nil {
		return err
	}
	if j.Status() != StatusPaused {
		return errors.New(errors.ErrCodeInvalidInput, "job %s is %s, not paused", id, j.Status())
	}
	j.m.Resume()
	if err := j.client.Control(wire.CtrlResume); err != nil {
		c.log.Warn("resume control not delivered", "id", id, "err", err)
	}
	j.setStatus(StatusStreaming)
	return nil
}

// Cancel requests cooperative cancellation. The firmware client parks the
// pen before closing; the Cancelled event follows once it has.
func (c *Controller) Cancel(id string) error {
	j, err := c.lookup(id)
	if err != nil {
		return err
	}
	if j.Status().Terminal() {
		return nil
	}
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel == nil {
		return errors.New(errors.ErrCodeInvalidInput, "job %s has not started streaming", id)
	}
	cancel()
	return nil
}

// Progress reports command counts for a job.
func (c *Controller) Progress(id string) (Progress, error) {
	j, err := c.lookup(id)
	if err != nil {
		return Progress{}, err
	}
	return j.Progress(), nil
}

func (c *Controller) lookup(id string) (*Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown job %q", id)
	}
	return j, nil
}
