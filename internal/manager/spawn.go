package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lamivi/internal/common/fsutil"
	"lamivi/internal/process"
	"lamivi/internal/protocol"
	"lamivi/internal/resolver"
	"lamivi/pkg/types"
)

// Environment passed to every worker.
const (
	envDevice     = "LAMIVI_DEVICE"
	envUnbuffered = "PYTHONUNBUFFERED=1"
)

// spawn tries every candidate in order until one completes the handshake.
// It waits for after (the previous worker's stop) before launching.
func (m *Manager) spawn(ctx context.Context, device types.Device, after <-chan struct{}) spawnResult {
	res := spawnResult{device: device}
	if after != nil {
		select {
		case <-after:
		case <-ctx.Done():
			res.err = ErrClosed
			return res
		}
	}
	if m.cfg.WorkerScript != "" && !fsutil.IsFile(m.cfg.WorkerScript) {
		res.err = &spawnFailureError{msg: "worker script not found: " + m.cfg.WorkerScript}
		return res
	}
	cands := m.cfg.Candidates()
	if len(cands) == 0 {
		res.err = &spawnFailureError{msg: "no python executable candidates found"}
		return res
	}
	var errs []error
	tried := make([]string, 0, len(cands))
	for _, c := range cands {
		h, ready, err := m.attempt(ctx, c, device)
		if err == nil {
			res.h, res.ready = h, ready
			return res
		}
		if ctx.Err() != nil {
			res.err = ErrClosed
			return res
		}
		tried = append(tried, c.String())
		errs = append(errs, err)
	}
	res.err = &spawnFailureError{
		msg:  fmt.Sprintf("failed to start inpainting worker (tried %s)", strings.Join(tried, ", ")),
		errs: errs,
	}
	return res
}

// attempt launches one candidate and races its handshake against exit, the
// boot timeout and ctx.
func (m *Manager) attempt(ctx context.Context, c resolver.Candidate, device types.Device) (*workerHandle, protocol.Ready, error) {
	args := append(append([]string(nil), c.Args...), m.workerArgs()...)
	spec := process.Spec{
		Exe:  c.Exe,
		Args: args,
		Env:  []string{envDevice + "=" + string(device), envUnbuffered},
		Dir:  m.cfg.WorkDir,
	}
	h := newWorkerHandle(c, spec.Invocation(), device, m.cfg.StderrTailBytes)
	spec.Stdout = protocol.NewDecoder(
		func(env protocol.Envelope) { h.deliver(inbound{env: env}) },
		func(err error) { h.deliver(inbound{err: err}) },
	)
	spec.Stderr = io.MultiWriter(h.stderr, process.NewLineWriter(func(line string) {
		m.log.Debug().Str("worker", h.invocation).Str("stream", "stderr").Msg(line)
	}))

	m.emit(zerolog.InfoLevel, EventSpawnStart, 0, map[string]any{"invocation": h.invocation, "device": string(device)})
	proc, err := m.proc.Launch(ctx, spec)
	if err != nil {
		spawnAttempts.WithLabelValues("launch_error").Inc()
		h.release()
		return nil, protocol.Ready{}, fmt.Errorf("%s: %w", h.invocation, err)
	}
	h.proc = proc
	h.pid = proc.Pid()
	h.started = time.Now()
	go h.watch()

	timer := time.NewTimer(m.cfg.BootTimeout)
	defer timer.Stop()
	for {
		select {
		case msg := <-h.inbound:
			if msg.err != nil {
				m.log.Debug().Int("pid", h.pid).Err(msg.err).Msg("skipping non-protocol output before ready")
				continue
			}
			if !msg.env.IsReady() {
				m.log.Debug().Int("pid", h.pid).Msg("skipping non-ready message before handshake")
				continue
			}
			ready := msg.env.Ready()
			spawnAttempts.WithLabelValues("ready").Inc()
			fields := map[string]any{"invocation": h.invocation, "requested": ready.RequestedDevice}
			if ready.Device != nil {
				fields["device"] = *ready.Device
			}
			if ready.Warning != nil {
				fields["warning"] = *ready.Warning
			}
			m.emit(zerolog.InfoLevel, EventSpawnReady, h.pid, fields)
			return h, ready, nil
		case <-h.exited:
			h.release()
			spawnAttempts.WithLabelValues("exited").Inc()
			err := &earlyExitError{invocation: h.invocation, err: h.exitErr, stderr: h.stderr.String()}
			m.emit(zerolog.WarnLevel, EventSpawnExit, h.pid, map[string]any{"error": err.Error()})
			return nil, protocol.Ready{}, err
		case <-timer.C:
			h.release()
			process.Stop(proc, h.exited, 0)
			spawnAttempts.WithLabelValues("timeout").Inc()
			err := &bootTimeoutError{invocation: h.invocation, timeout: m.cfg.BootTimeout, stderr: h.stderr.String()}
			m.emit(zerolog.WarnLevel, EventSpawnTimeout, h.pid, map[string]any{"timeout": m.cfg.BootTimeout.String()})
			return nil, protocol.Ready{}, err
		case <-ctx.Done():
			h.release()
			process.Stop(proc, h.exited, 0)
			spawnAttempts.WithLabelValues("canceled").Inc()
			return nil, protocol.Ready{}, errors.Join(ErrClosed, ctx.Err())
		}
	}
}

func (m *Manager) workerArgs() []string {
	var args []string
	if m.cfg.WorkerScript != "" {
		args = append(args, m.cfg.WorkerScript)
	}
	return append(args, m.cfg.WorkerArgs...)
}
