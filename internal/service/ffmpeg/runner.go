// Package ffmpeg wraps the ffmpeg binary used to pull audio out of video uploads.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// ErrRunnerClosed is returned for commands started after TerminateAll.
var ErrRunnerClosed = errors.New("command runner closed")

// CommandRunner runs external commands. Tests substitute a fake.
type CommandRunner interface {
	// Run executes a command. A non-zero exit is reported as *ExitError.
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExitError is a failed command together with what it wrote to stderr.
type ExitError struct {
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, strings.TrimSpace(e.Stderr))
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExecCommandRunner is the os/exec implementation. It remembers every
// process it has started until that process exits.
type ExecCommandRunner struct {
	mu     sync.Mutex
	procs  map[*os.Process]struct{}
	closed bool
}

// NewExecCommandRunner creates a runner with an empty process table.
func NewExecCommandRunner() *ExecCommandRunner {
	return &ExecCommandRunner{procs: make(map[*os.Process]struct{})}
}

// Run executes a command, capturing stderr.
func (r *ExecCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	if err := r.start(cmd); err != nil {
		return err
	}
	err := cmd.Wait()
	r.forget(cmd.Process)

	if err != nil {
		return &ExitError{Err: err, Stderr: stderr.String()}
	}
	return nil
}

// Output executes a command and returns its stdout.
func (r *ExecCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := r.start(cmd); err != nil {
		return nil, err
	}
	err := cmd.Wait()
	r.forget(cmd.Process)

	if err != nil {
		return stdout.Bytes(), &ExitError{Err: err, Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}

func (r *ExecCommandRunner) start(cmd *exec.Cmd) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRunnerClosed
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	if r.procs == nil {
		r.procs = make(map[*os.Process]struct{})
	}
	r.procs[cmd.Process] = struct{}{}
	return nil
}

func (r *ExecCommandRunner) forget(p *os.Process) {
	r.mu.Lock()
	delete(r.procs, p)
	r.mu.Unlock()
}

// Running returns the number of processes that have not exited yet.
func (r *ExecCommandRunner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// TerminateAll kills every running process and refuses new ones.
// It returns how many processes were signalled.
func (r *ExecCommandRunner) TerminateAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	n := 0
	for p := range r.procs {
		if err := p.Kill(); err == nil {
			n++
		}
	}
	return n
}
