// Package processtest provides an in-memory process.Launcher whose "worker"
// is scripted by the test: it reads request lines from the bridge and
// writes whatever envelopes the test wants back.
package processtest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"

	"lamivi/internal/process"
	"lamivi/internal/protocol"
)

// ErrTerminated is the exit error of a fake stopped via Terminate or Kill.
var ErrTerminated = errors.New("signal: terminated")

// Launcher starts Workers. Script, when set, runs in its own goroutine for
// every launch; otherwise workers idle until the test drives them.
type Launcher struct {
	// Script drives each launched worker. It may be nil.
	Script func(w *Worker)
	// LaunchErr, when set and returning non-nil, fails the launch.
	LaunchErr func(spec process.Spec) error

	mu      sync.Mutex
	specs   []process.Spec
	workers []*Worker
	nextPid atomic.Int64
	started chan *Worker
}

// NewLauncher returns a Launcher running script for every worker.
func NewLauncher(script func(w *Worker)) *Launcher {
	return &Launcher{Script: script, started: make(chan *Worker, 64)}
}

// Launch implements process.Launcher.
func (l *Launcher) Launch(ctx context.Context, spec process.Spec) (process.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.specs = append(l.specs, spec)
	l.mu.Unlock()
	if l.LaunchErr != nil {
		if err := l.LaunchErr(spec); err != nil {
			return nil, err
		}
	}
	w := newWorker(spec, int(l.nextPid.Add(1))+1000)
	l.mu.Lock()
	l.workers = append(l.workers, w)
	l.mu.Unlock()
	if l.started != nil {
		select {
		case l.started <- w:
		default:
		}
	}
	if l.Script != nil {
		go l.Script(w)
	}
	return w, nil
}

// Launches returns the number of Launch calls so far.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.specs)
}

// Specs returns a copy of every launched Spec.
func (l *Launcher) Specs() []process.Spec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]process.Spec(nil), l.specs...)
}

// Workers returns every successfully launched worker.
func (l *Launcher) Workers() []*Worker {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Worker(nil), l.workers...)
}

// Started delivers workers as they launch.
func (l *Launcher) Started() <-chan *Worker { return l.started }

// Worker is a fake process. Its methods are safe for concurrent use.
type Worker struct {
	Spec process.Spec

	pid    int
	stdinR *io.PipeReader
	stdinW *io.PipeWriter
	lines  *bufio.Reader

	outMu sync.Mutex

	exitOnce sync.Once
	exited   chan struct{}
	exitErr  error
}

func newWorker(spec process.Spec, pid int) *Worker {
	r, w := io.Pipe()
	return &Worker{
		Spec:   spec,
		pid:    pid,
		stdinR: r,
		stdinW: w,
		lines:  bufio.NewReaderSize(r, 1<<20),
		exited: make(chan struct{}),
	}
}

// Env returns the value of key in the launch environment.
func (w *Worker) Env(key string) string {
	prefix := key + "="
	for _, kv := range w.Spec.Env {
		if len(kv) >= len(prefix) && kv[:len(prefix)] == prefix {
			return kv[len(prefix):]
		}
	}
	return ""
}

// SendReady writes a handshake. device "" encodes as null.
func (w *Worker) SendReady(device, requested string, cuda *bool, warning string) error {
	r := protocol.Ready{Type: protocol.TypeReady, RequestedDevice: requested, CUDAAvailable: cuda}
	if device != "" {
		r.Device = &device
	}
	if warning != "" {
		r.Warning = &warning
	}
	return w.Send(r)
}

// Send encodes v as one line on stdout.
func (w *Worker) Send(v any) error {
	b, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	return w.WriteStdout(b)
}

// WriteStdout writes raw bytes to stdout.
func (w *Worker) WriteStdout(b []byte) error {
	select {
	case <-w.exited:
		return io.ErrClosedPipe
	default:
	}
	w.outMu.Lock()
	defer w.outMu.Unlock()
	if w.Spec.Stdout == nil {
		return nil
	}
	_, err := w.Spec.Stdout.Write(b)
	return err
}

// WriteStderr writes s to the diagnostic stream.
func (w *Worker) WriteStderr(s string) {
	if w.Spec.Stderr != nil {
		_, _ = io.WriteString(w.Spec.Stderr, s)
	}
}

// ReadRequest blocks for the next request line written by the bridge.
func (w *Worker) ReadRequest() (protocol.Request, error) {
	var req protocol.Request
	line, err := w.lines.ReadBytes('\n')
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(line, &req); err != nil {
		return req, fmt.Errorf("bad request line %q: %w", line, err)
	}
	return req, nil
}

// Exit ends the fake process with err as its Wait result.
func (w *Worker) Exit(err error) {
	w.exitOnce.Do(func() {
		w.exitErr = err
		close(w.exited)
		_ = w.stdinR.CloseWithError(io.ErrClosedPipe)
	})
}

// Exited is closed once the worker exited.
func (w *Worker) Exited() <-chan struct{} { return w.exited }

func (w *Worker) Pid() int              { return w.pid }
func (w *Worker) Stdin() io.WriteCloser { return w.stdinW }

func (w *Worker) Wait() error {
	<-w.exited
	return w.exitErr
}

func (w *Worker) Terminate() error {
	w.Exit(ErrTerminated)
	return nil
}

func (w *Worker) Kill() error {
	w.Exit(ErrTerminated)
	return nil
}
