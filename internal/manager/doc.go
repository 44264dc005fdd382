// Package manager supervises the Python inpainting worker and multiplexes
// requests over its standard streams. It is structured into small files by
// concern:
//
//   - manager.go: Manager type, constructor, Start/Close, request plumbing.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: loop-owned state (workerHandle, pendingCall, request messages).
//   - errors.go: error types and predicates (IsSpawnFailure, IsBootTimeout, ...).
//   - loop.go: the coordinating goroutine; every state change happens there.
//   - spawn.go: candidate iteration and the per-candidate readiness handshake.
//   - ensure.go: EnsureReady, lazy and coalescing.
//   - correlate.go: Call, id correlation over the line protocol.
//   - infer.go: Inpaint, the combined ensure-then-call entry point.
//   - ops.go: SetDeviceMode.
//   - status_report.go: Health snapshots.
//   - sanity.go: pre-flight report of the worker script and interpreter candidates.
//   - metrics.go: Prometheus collectors.
//
// The worker process itself is abstracted by internal/process so tests can
// drive the manager with processtest's in-memory fake.
//
// External packages should use public methods only (NewWithConfig, Start,
// EnsureReady, Inpaint, Call, SetDeviceMode, Health, Close).
package manager
