package run

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/pipeline"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/proc"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/runlog"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/status"
)

// annotation source for lines the controller itself injects into the
// displayed stream (errors the state machine absorbs)
const controllerSource = "stabiom"

// Hooks receive poll loop events, used for metrics. All callbacks are
// optional and invoked with the controller mutex held; keep them cheap.
type Hooks struct {
	Tick     func()
	Lines    func(n int)
	Finished func(model.RunState)
}

// Controller drives one run at a time. See the package documentation
// for the state machine and ownership rules.
type Controller struct {
	runner   model.Runner
	pollEach time.Duration
	hooks    Hooks

	mx        sync.Mutex
	state     model.RunState
	req       model.RunRequest
	handle    *proc.Handle
	offsets   runlog.Offsets
	buf       *runlog.Buffer
	startedAt time.Time
	stoppedAt time.Time
	termErr   error
	done      chan struct{}
}

// NewController builds an idle controller. runner locates the external
// pipeline binary; pollEach is the poll cadence (0 means the default).
func NewController(runner model.Runner, pollEach time.Duration) *Controller {
	if pollEach <= 0 {
		pollEach = model.DefaultPollEach
	}
	return &Controller{
		runner:   runner,
		pollEach: pollEach,
		state:    model.StateIdle,
		buf:      runlog.NewBuffer(),
		done:     make(chan struct{}),
	}
}

// SetHooks must be called before Execute.
func (c *Controller) SetHooks(h Hooks) {
	c.mx.Lock()
	c.hooks = h
	c.mx.Unlock()
}

// Submit records a validated request and moves idle -> ready. The
// offset table and log buffer of any previous run are replaced.
func (c *Controller) Submit(req model.RunRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid run request: %w", err)
	}

	c.mx.Lock()
	defer c.mx.Unlock()
	if c.state != model.StateIdle {
		return fmt.Errorf("%w: state %s", model.ErrRunInProgress, c.state)
	}

	c.req = req
	c.offsets = runlog.Offsets{}
	c.buf = runlog.NewBuffer()
	c.startedAt = time.Time{}
	c.stoppedAt = time.Time{}
	c.termErr = nil
	c.done = make(chan struct{})
	c.state = model.StateReady
	return nil
}

// MarkFailed forces the failed terminal state without starting a
// process. The configuration layer uses it when validation ahead of
// the run already failed; the controller then simply never launches.
// Once a process exists the poll loop owns the state, so MarkFailed
// is a no-op past Ready: failing a live run would abandon the process
// unkilled. Use Cancel for that.
func (c *Controller) MarkFailed(reason string) {
	c.mx.Lock()
	defer c.mx.Unlock()
	switch c.state {
	case model.StateIdle, model.StateReady:
	default:
		return
	}
	c.annotate("run failed before start: " + reason)
	c.finishState(model.StateFailed)
}

// Execute launches the runner and moves ready -> running. A launch
// failure moves directly to failed and is returned. The poll loop runs
// until a terminal state or until ctx is cancelled, which tears the
// run down as a best-effort cancel.
func (c *Controller) Execute(ctx context.Context) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.state != model.StateReady {
		return fmt.Errorf("%w: state %s", model.ErrRunNotActive, c.state)
	}

	path, args, workdir := pipeline.Command(c.runner, c.req)
	handle, err := proc.Start(ctx, path, args, workdir)
	if err != nil {
		c.annotate("launch failed: " + err.Error())
		c.finishState(model.StateFailed)
		return err
	}

	c.handle = handle
	c.startedAt = time.Now()
	c.state = model.StateRunning
	slog.InfoContext(ctx, "run started",
		"run_id", c.req.RunID, "kind", c.req.Kind, "pid", handle.Pid())

	go c.pollLoop(ctx)
	return nil
}

func (c *Controller) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pollEach)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.Cancel(); err != nil {
				slog.WarnContext(ctx, "teardown cancel", "error", err)
			}
			return
		case <-ticker.C:
			if c.tick(ctx) {
				return
			}
		}
	}
}

// tick performs one poll cycle and reports whether the loop is done.
// It holds the mutex for the whole cycle so Cancel cannot interleave:
// "terminate, then a tick observes not-alive and reclassifies as
// failed" is impossible.
func (c *Controller) tick(ctx context.Context) bool {
	c.mx.Lock()
	defer c.mx.Unlock()

	if c.state != model.StateRunning {
		return true
	}
	if c.hooks.Tick != nil {
		c.hooks.Tick()
	}

	c.drain(ctx)

	if c.handle.Alive() {
		return false
	}

	// the runner is gone: one final drain catches lines written
	// between the previous poll and exit
	c.drain(ctx)

	code, ok := c.handle.ExitCode()
	if ok {
		c.annotate(fmt.Sprintf("runner exited with code %d", code))
	} else {
		c.annotate("runner exited, exit code unavailable")
	}
	if status.ClassifyExit(code, ok) == model.StatusCompleted {
		c.finishState(model.StateCompleted)
	} else {
		c.finishState(model.StateFailed)
	}
	slog.InfoContext(ctx, "run finished",
		"run_id", c.req.RunID, "state", c.state, "exit_code", code, "elapsed", c.stoppedAt.Sub(c.startedAt))
	return true
}

// drain polls every log source once and appends the new lines. Called
// with the mutex held.
func (c *Controller) drain(ctx context.Context) {
	lines, err := runlog.Poll(ctx, c.req.RunDir, c.req.Kind, c.offsets)
	if err != nil {
		// unknown kind cannot happen past Submit validation; still,
		// absorbed errors stay visible in the stream
		c.annotate("log poll failed: " + err.Error())
		return
	}
	c.buf.Append(lines...)
	if c.hooks.Lines != nil && len(lines) > 0 {
		c.hooks.Lines(len(lines))
	}
}

// Cancel terminates the run. The state moves to cancelled before the
// kill so no later tick can reclassify the run; if killing the process
// tree fails the state stays cancelled and the error is returned as a
// warning for the caller.
func (c *Controller) Cancel() error {
	c.mx.Lock()
	defer c.mx.Unlock()

	switch c.state {
	case model.StateReady:
		c.annotate("run cancelled before start")
		c.finishState(model.StateCancelled)
		return nil
	case model.StateRunning:
	default:
		return fmt.Errorf("%w: state %s", model.ErrRunNotActive, c.state)
	}

	c.annotate("run cancelled by user")
	c.finishState(model.StateCancelled)

	if err := c.handle.TerminateTree(); err != nil {
		c.termErr = err
		c.annotate("terminating process tree failed: " + err.Error())
		return err
	}
	return nil
}

// Reset returns a finished controller to idle so a new request can be
// submitted. The last run's buffer stays readable until the next
// Submit replaces it.
func (c *Controller) Reset() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if !c.state.Terminal() {
		return fmt.Errorf("%w: state %s", model.ErrRunInProgress, c.state)
	}
	c.state = model.StateIdle
	c.handle = nil
	return nil
}

// finishState records a terminal state. Called with the mutex held.
func (c *Controller) finishState(s model.RunState) {
	c.state = s
	c.stoppedAt = time.Now()
	if c.hooks.Finished != nil {
		c.hooks.Finished(s)
	}
	close(c.done)
}

func (c *Controller) annotate(text string) {
	c.buf.Append(model.LogLine{
		Time:   time.Now(),
		Source: controllerSource,
		Text:   text,
	})
}

// State returns the authoritative run state.
func (c *Controller) State() model.RunState {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.state
}

// Request returns the active (or last) run request.
func (c *Controller) Request() model.RunRequest {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.req
}

// Elapsed is the wall clock time since running began: still growing
// while the run is live, frozen once it stops, zero before launch.
func (c *Controller) Elapsed() time.Duration {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.startedAt.IsZero() {
		return 0
	}
	if c.stoppedAt.IsZero() {
		return time.Since(c.startedAt)
	}
	return c.stoppedAt.Sub(c.startedAt)
}

// TerminationWarning reports the kill failure of a cancelled run, if
// any.
func (c *Controller) TerminationWarning() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.termErr
}

// Snapshot copies the full accumulated log buffer.
func (c *Controller) Snapshot() []model.LogLine {
	c.mx.Lock()
	buf := c.buf
	c.mx.Unlock()
	return buf.Snapshot()
}

// Since copies only the lines appended at index i and later.
func (c *Controller) Since(i int) []model.LogLine {
	c.mx.Lock()
	buf := c.buf
	c.mx.Unlock()
	return buf.Since(i)
}

// LogLen is the current buffer length, for delta reads.
func (c *Controller) LogLen() int {
	c.mx.Lock()
	buf := c.buf
	c.mx.Unlock()
	return buf.Len()
}

// Done is closed when the run reaches a terminal state. It is replaced
// on every Submit, so grab it after submitting.
func (c *Controller) Done() <-chan struct{} {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.done
}
