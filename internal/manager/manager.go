package manager

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lamivi/internal/process"
	"lamivi/internal/resolver"
	"lamivi/pkg/types"
)

// Manager bridges callers to a single inpainting worker process.
type Manager struct {
	cfg  ManagerConfig
	log  zerolog.Logger
	pub  EventPublisher
	proc process.Launcher

	ctx    context.Context
	cancel context.CancelFunc
	// loopDone is closed once the coordinating goroutine returned.
	loopDone chan struct{}
	// bg tracks spawn and stop goroutines so Close can wait for them.
	bg sync.WaitGroup

	ensureCh  chan ensureReq
	callCh    chan callReq
	abandonCh chan abandonReq
	timeoutCh chan string
	modeCh    chan modeReq
	spawnCh   chan spawnResult

	st     bridgeState
	health atomic.Pointer[types.Health]

	closeOnce sync.Once
}

func newManager(cfg ManagerConfig) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "manager").Logger(),
		pub:       cfg.Publisher,
		proc:      cfg.Launcher,
		ctx:       ctx,
		cancel:    cancel,
		loopDone:  make(chan struct{}),
		ensureCh:  make(chan ensureReq),
		callCh:    make(chan callReq),
		abandonCh: make(chan abandonReq),
		timeoutCh: make(chan string),
		modeCh:    make(chan modeReq),
		spawnCh:   make(chan spawnResult),
	}
	m.st = bridgeState{
		requested: cfg.Device,
		state:     types.StateIdle,
		pending:   make(map[string]*pendingCall),
	}
	m.publishHealth()
	return m
}

// Start pre-warms the worker when warmup is set. Errors are logged and
// recorded in Health; the next request retries.
func (m *Manager) Start(ctx context.Context, warmup bool) {
	if !warmup {
		return
	}
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if err := m.EnsureReady(ctx); err != nil {
			m.log.Warn().Err(err).Msg("worker warmup failed")
		}
	}()
}

// Close stops the worker, rejects every pending call and waiter with
// ErrClosed and waits for background goroutines. It is idempotent.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		<-m.loopDone
		m.bg.Wait()
	})
	return nil
}

// Candidates returns the interpreter candidates the next spawn would try.
func (m *Manager) Candidates() []resolver.Candidate {
	return m.cfg.Candidates()
}

// send hands v to the coordinating goroutine.
func send[T any](m *Manager, ctx context.Context, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return ErrClosed
	}
}

// await waits for a reply from the coordinating goroutine. A reply that
// raced loop shutdown still wins.
func await[T any](m *Manager, ctx context.Context, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-m.loopDone:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	}
}

func (m *Manager) emit(lvl zerolog.Level, name string, pid int, fields map[string]any) {
	ev := m.log.WithLevel(lvl).Str("event", name)
	if pid > 0 {
		ev = ev.Int("pid", pid)
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(name)
	m.pub.Publish(Event{Name: name, PID: pid, Fields: fields})
}

func newCorrelationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func scriptDir(script string) string {
	if script == "" {
		return ""
	}
	return filepath.Dir(script)
}
