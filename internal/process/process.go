// Package process abstracts starting and stopping the worker's OS process so
// the supervisor can be driven by an in-memory fake in tests.
package process

import (
	"context"
	"io"
	"strings"
	"time"
)

// Spec describes one process launch.
type Spec struct {
	Exe  string
	Args []string
	// Env entries are appended to the parent environment ("KEY=value").
	Env []string
	Dir string
	// Stdout and Stderr receive the child's output streams. They must be
	// safe to call from a goroutine owned by the launcher.
	Stdout io.Writer
	Stderr io.Writer
}

// Invocation renders the command line for logs and error messages.
func (s Spec) Invocation() string {
	return strings.Join(append([]string{s.Exe}, s.Args...), " ")
}

// Process is a started worker process.
type Process interface {
	Pid() int
	// Stdin is the write end of the child's standard input.
	Stdin() io.WriteCloser
	// Wait blocks until the process exited and its output streams drained.
	// It is called exactly once.
	Wait() error
	// Terminate asks the process to exit (SIGTERM where supported).
	Terminate() error
	// Kill forcibly ends the process.
	Kill() error
}

// Launcher starts processes.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (Process, error)
}

// Stop asks p to terminate and kills it when exited is not closed within
// grace. A non-positive grace kills immediately. It returns once exited is
// closed or a further grace period after the kill has passed.
func Stop(p Process, exited <-chan struct{}, grace time.Duration) {
	if p == nil {
		return
	}
	if grace > 0 {
		if err := p.Terminate(); err == nil {
			t := time.NewTimer(grace)
			defer t.Stop()
			select {
			case <-exited:
				return
			case <-t.C:
			}
		}
	}
	_ = p.Kill()
	if grace <= 0 {
		grace = killWait
	}
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-exited:
	case <-t.C:
	}
}

// killWait bounds how long Stop waits for a killed process to be reaped.
const killWait = 2 * time.Second
