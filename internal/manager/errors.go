package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrClosed is returned by every operation once Close was called.
var ErrClosed = errors.New("inpainting bridge closed")

// noStderr stands in for an empty stderr tail in error messages.
const noStderr = "(no stderr output)"

func stderrOrPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return noStderr
	}
	return s
}

// spawnFailureError means no worker could be brought to readiness. It wraps
// the error of every attempted candidate.
type spawnFailureError struct {
	msg  string
	errs []error
}

func (e *spawnFailureError) Error() string {
	if len(e.errs) == 0 {
		return e.msg
	}
	parts := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		parts = append(parts, err.Error())
	}
	return e.msg + ": " + strings.Join(parts, "; ")
}

func (e *spawnFailureError) Unwrap() []error { return e.errs }

// IsSpawnFailure reports whether err means the worker could not be started.
func IsSpawnFailure(err error) bool {
	var e *spawnFailureError
	return errors.As(err, &e)
}

// bootTimeoutError means a started worker did not complete its handshake in time.
type bootTimeoutError struct {
	invocation string
	timeout    time.Duration
	stderr     string
}

func (e *bootTimeoutError) Error() string {
	return fmt.Sprintf("%s: no ready message within %s; stderr: %s", e.invocation, e.timeout, stderrOrPlaceholder(e.stderr))
}

// IsBootTimeout reports whether err (or any error it wraps) is a boot timeout.
func IsBootTimeout(err error) bool {
	var e *bootTimeoutError
	return errors.As(err, &e)
}

// earlyExitError means a worker exited before its handshake.
type earlyExitError struct {
	invocation string
	err        error
	stderr     string
}

func (e *earlyExitError) Error() string {
	status := "exited"
	if e.err != nil {
		status = e.err.Error()
	}
	return fmt.Sprintf("%s: exited before ready (%s); stderr: %s", e.invocation, status, stderrOrPlaceholder(e.stderr))
}

func (e *earlyExitError) Unwrap() error { return e.err }

// protocolError means the worker wrote something the bridge cannot decode.
type protocolError struct {
	msg string
	err error
}

func (e *protocolError) Error() string {
	if e.err == nil {
		return "protocol error: " + e.msg
	}
	return "protocol error: " + e.msg + ": " + e.err.Error()
}

func (e *protocolError) Unwrap() error { return e.err }

// IsProtocolError reports whether err is a wire protocol violation.
func IsProtocolError(err error) bool {
	var e *protocolError
	return errors.As(err, &e)
}

// requestTimeoutError means no response arrived within the request timeout.
type requestTimeoutError struct {
	id      string
	timeout time.Duration
}

func (e *requestTimeoutError) Error() string {
	return fmt.Sprintf("request %s timed out after %s", e.id, e.timeout)
}

// IsRequestTimeout reports whether err is a per-request timeout.
func IsRequestTimeout(err error) bool {
	var e *requestTimeoutError
	return errors.As(err, &e)
}

// workerCrashError means the worker went away while a request was pending,
// or was not running at all.
type workerCrashError struct{ reason string }

func (e *workerCrashError) Error() string { return e.reason }

// IsWorkerCrash reports whether err was caused by the worker exiting or being stopped.
func IsWorkerCrash(err error) bool {
	var e *workerCrashError
	return errors.As(err, &e)
}

// upstreamError carries the worker's own failure message verbatim.
type upstreamError struct{ msg string }

func (e *upstreamError) Error() string { return e.msg }

// IsUpstreamError reports whether err is a failure reported by the worker.
func IsUpstreamError(err error) bool {
	var e *upstreamError
	return errors.As(err, &e)
}

// tooBusyError signals pending-call overflow for 429 mapping.
type tooBusyError struct{ max int }

func (e *tooBusyError) Error() string {
	return fmt.Sprintf("too busy: %d requests already pending", e.max)
}

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e *tooBusyError
	return errors.As(err, &e)
}

// invalidDeviceError rejects a device mode other than cpu or cuda.
type invalidDeviceError struct{ mode string }

func (e *invalidDeviceError) Error() string {
	return fmt.Sprintf("invalid device mode %q (want cpu or cuda)", e.mode)
}

// IsInvalidDevice reports whether err rejects the requested device mode.
func IsInvalidDevice(err error) bool {
	var e *invalidDeviceError
	return errors.As(err, &e)
}

// Kind names the error class for logs and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrClosed):
		return "closed"
	case IsBootTimeout(err):
		return "boot_timeout"
	case IsSpawnFailure(err):
		return "spawn_failure"
	case IsProtocolError(err):
		return "protocol_error"
	case IsRequestTimeout(err):
		return "request_timeout"
	case IsWorkerCrash(err):
		return "worker_crash"
	case IsUpstreamError(err):
		return "upstream_error"
	case IsTooBusy(err):
		return "too_busy"
	case IsInvalidDevice(err):
		return "invalid_device"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
