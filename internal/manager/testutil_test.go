package manager

import (
	"context"
	"os"
	"testing"
	"time"

	"lamivi/internal/process/processtest"
	"lamivi/internal/protocol"
	"lamivi/internal/resolver"
	"lamivi/pkg/types"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func boolPtr(b bool) *bool { return &b }

// newTestManager builds a Manager over a fake launcher running script for
// every worker. opts may adjust the config before construction.
func newTestManager(t *testing.T, script func(w *processtest.Worker), opts ...func(*ManagerConfig)) (*Manager, *processtest.Launcher, *MemoryPublisher) {
	t.Helper()
	l := processtest.NewLauncher(script)
	pub := NewMemoryPublisher()
	cfg := ManagerConfig{
		Launcher:       l,
		Candidates:     func() []resolver.Candidate { return []resolver.Candidate{{Exe: "python3"}} },
		RequestTimeout: 2 * time.Second,
		BootTimeout:    2 * time.Second,
		StopGrace:      50 * time.Millisecond,
		Publisher:      pub,
	}
	for _, o := range opts {
		o(&cfg)
	}
	m := NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m, l, pub
}

// effectiveDevice is what a fake worker reports for the requested mode.
func effectiveDevice(requested string) string {
	if requested == "" || requested == string(types.DeviceAuto) {
		return "cpu"
	}
	return requested
}

// sendReady performs the handshake for the device found in the worker's env.
func sendReady(w *processtest.Worker) {
	req := w.Env("LAMIVI_DEVICE")
	_ = w.SendReady(effectiveDevice(req), req, boolPtr(true), "")
}

// echoWorker answers every request with its own image.
func echoWorker(w *processtest.Worker) {
	sendReady(w)
	serveEcho(w)
}

func serveEcho(w *processtest.Worker) {
	for {
		req, err := w.ReadRequest()
		if err != nil {
			return
		}
		_ = w.Send(protocol.Response{ID: req.ID, OK: true, OutputB64: req.ImageB64})
	}
}

// silentWorker completes the handshake and never answers.
func silentWorker(w *processtest.Worker) {
	sendReady(w)
	for {
		if _, err := w.ReadRequest(); err != nil {
			return
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
