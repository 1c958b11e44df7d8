// Package proc starts the external pipeline runner and supervises its
// lifetime. Liveness and exit code queries never block; the process
// tree is killed as a whole on termination because the runner forks
// further subprocesses and containers.
package proc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// LaunchError means the runner could not be spawned at all. It is
// fatal for the run and never retried.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// TerminationError means killing the process tree failed. The run is
// still treated as cancelled; the error is surfaced as a warning.
type TerminationError struct {
	Pid int
	Err error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("terminating process tree of pid %d: %v", e.Pid, e.Err)
}

func (e *TerminationError) Unwrap() error { return e.Err }

// Handle owns one spawned runner process. It is consumed after the
// process exits or is terminated; a new run needs a fresh Start.
type Handle struct {
	cmd *exec.Cmd

	mx      sync.Mutex
	state   *os.ProcessState
	waitErr error
	done    chan struct{}
}

// Start spawns path with args in workdir (empty means the current
// directory) and begins waiting on it in a background goroutine. A
// missing executable or spawn failure returns a *LaunchError.
func Start(ctx context.Context, path string, args []string, workdir string) (*Handle, error) {
	if _, err := exec.LookPath(path); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = workdir
	// the runner reports through its log files, not stdio
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	setProcGroup(cmd)

	h := &Handle{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}
	slog.DebugContext(ctx, "runner started", "path", path, "pid", cmd.Process.Pid)

	go h.wait()
	return h, nil
}

func (h *Handle) wait() {
	err := h.cmd.Wait()

	h.mx.Lock()
	h.state = h.cmd.ProcessState
	h.waitErr = err
	h.mx.Unlock()
	close(h.done)
}

// Pid of the top level runner process.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Alive reports whether the process has not yet been reaped. It never
// blocks and is safe to call every poll tick.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the process exit code once the process is gone.
// The second return is false while the process is still alive or when
// no exit code is available (e.g. killed by signal on some platforms).
func (h *Handle) ExitCode() (int, bool) {
	select {
	case <-h.done:
	default:
		return 0, false
	}

	h.mx.Lock()
	defer h.mx.Unlock()
	if h.state == nil {
		return 0, false
	}
	code := h.state.ExitCode()
	if code < 0 {
		return 0, false
	}
	return code, true
}

// Done is closed when the process has been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// TerminateTree kills the process and all of its descendants. Killing
// only the top level process is not enough: orphaned pipeline stages
// would keep consuming resources after cancellation. A process that
// already exited terminates with a nil error.
func (h *Handle) TerminateTree() error {
	if !h.Alive() {
		return nil
	}
	if err := killTree(h.cmd.Process.Pid); err != nil {
		if !h.Alive() {
			// lost the race against natural exit
			return nil
		}
		return &TerminationError{Pid: h.cmd.Process.Pid, Err: err}
	}
	return nil
}
