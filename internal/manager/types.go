package manager

import (
	"sync"
	"time"

	"lamivi/internal/process"
	"lamivi/internal/protocol"
	"lamivi/internal/resolver"
	"lamivi/pkg/types"
)

// inbound is one decoded stdout line, or the reason it could not be decoded.
type inbound struct {
	env protocol.Envelope
	err error
}

// workerHandle is one launched worker process. Only the coordinating
// goroutine (or, before adoption, the spawn goroutine that launched it)
// reads from inbound.
type workerHandle struct {
	proc       process.Process
	pid        int
	candidate  resolver.Candidate
	invocation string
	device     types.Device
	stderr     *process.Tail
	started    time.Time

	inbound chan inbound
	// exited is closed once Wait returned; exitErr is set before.
	exited  chan struct{}
	exitErr error

	// done is closed when the bridge lets go of the handle; pending
	// deliveries are dropped from then on.
	done     chan struct{}
	doneOnce sync.Once

	writeMu sync.Mutex
}

func newWorkerHandle(c resolver.Candidate, invocation string, device types.Device, tailBytes int) *workerHandle {
	return &workerHandle{
		candidate:  c,
		invocation: invocation,
		device:     device,
		stderr:     process.NewTail(tailBytes),
		inbound:    make(chan inbound, 16),
		exited:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *workerHandle) deliver(msg inbound) {
	select {
	case h.inbound <- msg:
	case <-h.done:
	}
}

// watch reaps the process. It must run exactly once per launched handle.
func (h *workerHandle) watch() {
	h.exitErr = h.proc.Wait()
	close(h.exited)
}

func (h *workerHandle) release() {
	h.doneOnce.Do(func() { close(h.done) })
}

// write sends one encoded line. Lines never interleave.
func (h *workerHandle) write(line []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	select {
	case <-h.done:
		return &workerCrashError{reason: "worker stopped before the request was written"}
	default:
	}
	_, err := h.proc.Stdin().Write(line)
	return err
}

// hasExited reports whether the process is gone.
func (h *workerHandle) hasExited() bool {
	select {
	case <-h.exited:
		return true
	default:
		return false
	}
}

// callResult is the single terminal outcome of a pending call.
type callResult struct {
	outputB64 string
	err       error
}

// pendingCall is a request awaiting its response.
type pendingCall struct {
	id      string
	reply   chan callResult
	timer   *time.Timer
	started time.Time
}

// Messages into the coordinating goroutine.
type (
	ensureReq struct {
		reply chan error
	}
	callReq struct {
		id    string
		line  []byte
		reply chan callResult
	}
	abandonReq struct {
		id  string
		err error
	}
	modeReq struct {
		device types.Device
		reply  chan error
	}
	spawnResult struct {
		device types.Device
		h      *workerHandle
		ready  protocol.Ready
		err    error
	}
)

// bridgeState is owned by the coordinating goroutine; nothing else touches it.
type bridgeState struct {
	h         *workerHandle
	ready     bool
	requested types.Device
	device    *string
	cuda      *bool
	lastError *string
	warning   *string
	state     types.WorkerState

	pending map[string]*pendingCall

	spawning bool
	waiters  []chan error
	// lastStop is closed once the previously retired worker is gone, so the
	// next spawn does not overlap it.
	lastStop <-chan struct{}

	spawns  uint64
	crashes uint64
}
