package manager

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lamivi/internal/process"
	"lamivi/internal/protocol"
	"lamivi/pkg/types"
)

// run is the coordinating goroutine. It owns m.st.
func (m *Manager) run() {
	defer close(m.loopDone)
	for {
		var in <-chan inbound
		var exited <-chan struct{}
		if h := m.st.h; h != nil {
			in, exited = h.inbound, h.exited
		}
		select {
		case <-m.ctx.Done():
			m.shutdown()
			return
		case req := <-m.ensureCh:
			m.onEnsure(req)
		case req := <-m.callCh:
			m.onCall(req)
		case req := <-m.abandonCh:
			m.resolve(req.id, callResult{err: req.err}, outcomeFor(req.err))
		case id := <-m.timeoutCh:
			if p, ok := m.st.pending[id]; ok {
				m.resolve(id, callResult{err: &requestTimeoutError{id: id, timeout: m.cfg.RequestTimeout}}, "timeout")
				m.log.Warn().Str("id", id).Dur("elapsed", time.Since(p.started)).Msg("request timed out")
			}
		case req := <-m.modeCh:
			m.onMode(req)
		case res := <-m.spawnCh:
			m.onSpawnResult(res)
		case msg := <-in:
			m.onInbound(msg)
		case <-exited:
			h := m.st.h
			for drained := false; !drained; {
				select {
				case msg := <-h.inbound:
					m.onInbound(msg)
				default:
					drained = true
				}
			}
			m.onCrash(h)
		}
		m.publishHealth()
	}
}

func (m *Manager) onEnsure(req ensureReq) {
	if m.st.ready && m.st.h != nil {
		req.reply <- nil
		return
	}
	m.st.waiters = append(m.st.waiters, req.reply)
	if !m.st.spawning {
		m.startSpawn()
	}
}

func (m *Manager) onCall(req callReq) {
	h := m.st.h
	if h == nil || !m.st.ready {
		req.reply <- callResult{err: &workerCrashError{reason: "worker is not running"}}
		return
	}
	if len(m.st.pending) >= m.cfg.MaxPending {
		req.reply <- callResult{err: &tooBusyError{max: m.cfg.MaxPending}}
		return
	}
	id := req.id
	p := &pendingCall{id: id, reply: req.reply, started: time.Now()}
	p.timer = time.AfterFunc(m.cfg.RequestTimeout, func() {
		select {
		case m.timeoutCh <- id:
		case <-m.ctx.Done():
		}
	})
	m.st.pending[id] = p
	pendingCalls.Set(float64(len(m.st.pending)))

	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if err := h.write(req.line); err != nil {
			select {
			case m.abandonCh <- abandonReq{id: id, err: &workerCrashError{reason: "write request to worker: " + err.Error()}}:
			case <-m.ctx.Done():
			}
		}
	}()
}

// resolve delivers the terminal outcome of id, if it is still pending.
func (m *Manager) resolve(id string, res callResult, outcome string) bool {
	p, ok := m.st.pending[id]
	if !ok {
		return false
	}
	delete(m.st.pending, id)
	p.timer.Stop()
	p.reply <- res
	callDuration.WithLabelValues(outcome).Observe(time.Since(p.started).Seconds())
	pendingCalls.Set(float64(len(m.st.pending)))
	return true
}

// rejectAll resolves every pending call with err. The snapshot is published
// first so rejected callers observe the transition that caused it.
func (m *Manager) rejectAll(err error, outcome string) {
	if len(m.st.pending) > 0 {
		m.publishHealth()
	}
	for id := range m.st.pending {
		m.resolve(id, callResult{err: err}, outcome)
	}
}

func (m *Manager) onInbound(msg inbound) {
	h := m.st.h
	pid := 0
	if h != nil {
		pid = h.pid
	}
	if msg.err != nil {
		perr := &protocolError{msg: "undecodable worker output", err: msg.err}
		m.setLastError(perr.Error())
		m.emit(zerolog.WarnLevel, EventProtocolError, pid, map[string]any{"error": msg.err.Error(), "pending": len(m.st.pending)})
		m.rejectAll(perr, "protocol_error")
		return
	}
	env := msg.env
	switch {
	case env.IsReady():
		m.log.Debug().Int("pid", pid).Msg("ignoring repeated ready message")
	case env.IsResponse():
		m.onResponse(pid, env)
	default:
		m.log.Debug().Int("pid", pid).Msg("ignoring worker message that is neither ready nor response")
	}
}

func (m *Manager) onResponse(pid int, env protocol.Envelope) {
	ok := *env.OK
	if env.Trace != "" {
		m.log.Debug().Int("pid", pid).Str("id", env.ID).Str("trace", env.Trace).Msg("worker traceback")
	}
	id := env.ID
	if id == "" {
		// The worker's top-level exception path answers without an id.
		if !ok && len(m.st.pending) == 1 {
			for only := range m.st.pending {
				id = only
			}
		} else {
			perr := &protocolError{msg: "response without id", err: errors.New(env.Error)}
			m.setLastError(perr.Error())
			m.emit(zerolog.WarnLevel, EventProtocolError, pid, map[string]any{"error": perr.Error(), "pending": len(m.st.pending)})
			m.rejectAll(perr, "protocol_error")
			return
		}
	}
	var res callResult
	outcome := "ok"
	if ok {
		res.outputB64 = env.OutputB64
	} else {
		msg := env.Error
		if msg == "" {
			msg = "worker reported failure without a message"
		}
		res.err = &upstreamError{msg: msg}
		outcome = "upstream_error"
	}
	if !m.resolve(id, res, outcome) {
		m.emit(zerolog.DebugLevel, EventLateResponse, pid, map[string]any{"id": id})
	}
}

func (m *Manager) onCrash(h *workerHandle) {
	if h == nil {
		return
	}
	status := "exited"
	if h.exitErr != nil {
		status = h.exitErr.Error()
	}
	msg := fmt.Sprintf("worker exited unexpectedly (%s); stderr: %s", status, stderrOrPlaceholder(h.stderr.String()))
	h.release()
	m.st.h = nil
	m.st.ready = false
	m.st.state = types.StateCrashed
	m.st.crashes++
	m.setLastError(msg)
	workerCrashes.Inc()
	workerReady.Set(0)
	m.emit(zerolog.ErrorLevel, EventWorkerCrash, h.pid, map[string]any{
		"exit":    status,
		"pending": len(m.st.pending),
		"uptime":  time.Since(h.started).String(),
	})
	m.rejectAll(&workerCrashError{reason: msg}, "crash")
}

func (m *Manager) onMode(req modeReq) {
	st := &m.st
	if st.requested == req.device && st.ready && st.h != nil {
		req.reply <- nil
		return
	}
	from := st.requested
	st.lastError = nil
	st.warning = nil
	st.requested = req.device
	if st.h != nil {
		m.retire("worker stopped for device change")
		st.state = types.StateStopped
	}
	m.emit(zerolog.InfoLevel, EventDeviceSwitch, 0, map[string]any{"from": string(from), "to": string(req.device)})
	st.waiters = append(st.waiters, req.reply)
	if !st.spawning {
		m.startSpawn()
	}
}

// retire stops the current worker in the background and rejects its
// pending calls.
func (m *Manager) retire(reason string) {
	h := m.st.h
	m.st.h = nil
	m.st.ready = false
	workerReady.Set(0)
	h.release()
	m.rejectAll(&workerCrashError{reason: reason}, "crash")
	m.emit(zerolog.InfoLevel, EventWorkerStop, h.pid, map[string]any{"reason": reason})
	stopped := make(chan struct{})
	m.st.lastStop = stopped
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		defer close(stopped)
		process.Stop(h.proc, h.exited, m.cfg.StopGrace)
	}()
}

func (m *Manager) startSpawn() {
	st := &m.st
	st.spawning = true
	st.state = types.StateSpawning
	device, after := st.requested, st.lastStop
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		res := m.spawn(m.ctx, device, after)
		select {
		case m.spawnCh <- res:
		case <-m.ctx.Done():
			if res.h != nil {
				res.h.release()
				process.Stop(res.h.proc, res.h.exited, 0)
			}
		}
	}()
}

func (m *Manager) onSpawnResult(res spawnResult) {
	st := &m.st
	st.spawning = false
	if res.device != st.requested {
		// The mode changed while this spawn was in flight.
		if res.h != nil {
			m.st.h = res.h
			m.retire("worker started for a superseded device mode")
		}
		m.startSpawn()
		return
	}
	if res.err != nil {
		st.state = types.StateIdle
		m.setLastError(res.err.Error())
		m.emit(zerolog.ErrorLevel, EventSpawnFailed, 0, map[string]any{"error": res.err.Error()})
		m.notifyWaiters(res.err)
		return
	}
	h := res.h
	st.h = h
	st.ready = true
	st.state = types.StateReady
	st.spawns++
	st.device = res.ready.Device
	st.cuda = res.ready.CUDAAvailable
	st.warning = res.ready.Warning
	st.lastError = nil
	workerReady.Set(1)
	if h.hasExited() {
		// The exit case of the next select iteration turns this into a
		// crash once buffered output is drained.
		m.log.Debug().Int("pid", h.pid).Msg("worker exited right after its handshake")
	}
	m.notifyWaiters(nil)
}

func (m *Manager) notifyWaiters(err error) {
	m.publishHealth()
	for _, w := range m.st.waiters {
		w <- err
	}
	m.st.waiters = nil
}

func (m *Manager) setLastError(msg string) {
	m.st.lastError = &msg
}

// shutdown runs on Close from the coordinating goroutine.
func (m *Manager) shutdown() {
	st := &m.st
	m.rejectAll(ErrClosed, "closed")
	m.notifyWaiters(ErrClosed)
	if h := st.h; h != nil {
		st.h = nil
		h.release()
		process.Stop(h.proc, h.exited, m.cfg.StopGrace)
		m.emit(zerolog.InfoLevel, EventWorkerStop, h.pid, map[string]any{"reason": "bridge closed"})
	}
	st.ready = false
	st.state = types.StateClosed
	workerReady.Set(0)
	m.publishHealth()
}

func outcomeFor(err error) string {
	if IsWorkerCrash(err) {
		return "crash"
	}
	return "abandoned"
}
