package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestSpawnFailureUnwrapsBootTimeout(t *testing.T) {
	err := &spawnFailureError{
		msg: "failed to start inpainting worker (tried python3, python)",
		errs: []error{
			&earlyExitError{invocation: "python3", err: errors.New("exit status 1"), stderr: "ImportError"},
			&bootTimeoutError{invocation: "python", timeout: time.Second},
		},
	}
	wrapped := fmt.Errorf("ensure: %w", err)
	if !IsSpawnFailure(wrapped) || !IsBootTimeout(wrapped) {
		t.Fatalf("predicates must see through wrapping")
	}
	msg := err.Error()
	if !strings.Contains(msg, "ImportError") || !strings.Contains(msg, noStderr) {
		t.Fatalf("message should include every attempt: %q", msg)
	}
}

func TestPredicatesAreDistinct(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{&spawnFailureError{msg: "x"}, "spawn_failure"},
		{&bootTimeoutError{invocation: "p"}, "boot_timeout"},
		{&protocolError{msg: "x"}, "protocol_error"},
		{&requestTimeoutError{id: "1"}, "request_timeout"},
		{&workerCrashError{reason: "gone"}, "worker_crash"},
		{&upstreamError{msg: "bad"}, "upstream_error"},
		{&tooBusyError{max: 1}, "too_busy"},
		{&invalidDeviceError{mode: "tpu"}, "invalid_device"},
		{ErrClosed, "closed"},
		{context.Canceled, "canceled"},
		{errors.New("other"), "internal"},
		{nil, ""},
	}
	for _, c := range cases {
		if got := Kind(c.err); got != c.kind {
			t.Fatalf("Kind(%v)=%q want %q", c.err, got, c.kind)
		}
	}
	if IsWorkerCrash(&upstreamError{msg: "x"}) || IsUpstreamError(&workerCrashError{}) {
		t.Fatalf("predicates overlap")
	}
}

func TestUpstreamErrorIsVerbatim(t *testing.T) {
	if got := (&upstreamError{msg: "ValueError: mask shape"}).Error(); got != "ValueError: mask shape" {
		t.Fatalf("got %q", got)
	}
}
