package types

import (
	"fmt"
	"strings"
)

// Device is the compute target requested of the inpainting worker.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ParseDevice normalizes s into a Device. Empty input yields DeviceAuto.
func ParseDevice(s string) (Device, error) {
	switch d := Device(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DeviceAuto, nil
	case DeviceAuto, DeviceCPU, DeviceCUDA:
		return d, nil
	default:
		return "", fmt.Errorf("unknown device %q (want auto, cpu or cuda)", s)
	}
}

// WorkerState is the coarse lifecycle state of the bridge.
type WorkerState string

const (
	StateIdle     WorkerState = "idle"
	StateSpawning WorkerState = "spawning"
	StateReady    WorkerState = "ready"
	StateCrashed  WorkerState = "crashed"
	StateStopped  WorkerState = "stopped"
	StateClosed   WorkerState = "closed"
)

// Health is the best-known readiness snapshot of the worker bridge.
// Nullable fields are pointers so that "unknown" encodes as JSON null.
type Health struct {
	// Whether a worker has completed its handshake and is accepting requests.
	// example: true
	Ready bool `json:"ready" example:"true"`
	// Effective device reported by the worker, null until the first handshake.
	// example: cuda
	Device *string `json:"device" example:"cuda"`
	// Device the bridge asks the worker to use.
	// example: auto
	RequestedDevice Device `json:"requestedDevice" example:"auto"`
	// CUDA availability reported by the worker, null until known.
	// example: true
	CUDAAvailable *bool `json:"cudaAvailable" example:"true"`
	// Last bridge-wide error (spawn failure, crash, protocol error).
	LastError *string `json:"lastError"`
	// Non-fatal advisory from the worker, e.g. a CUDA to CPU fallback.
	Warning *string `json:"warning"`
	// Lifecycle state: idle, spawning, ready, crashed, stopped or closed.
	// example: ready
	State WorkerState `json:"state" example:"ready"`
	// Number of requests awaiting a worker response.
	// example: 0
	Pending int `json:"pending" example:"0"`
	// Process ID of the live worker, if any.
	// example: 4242
	PID int `json:"pid,omitempty" example:"4242"`
	// Invocation used to start the live worker.
	// example: python3 server/python/lama_worker.py
	Invocation string `json:"invocation,omitempty" example:"python3 server/python/lama_worker.py"`
	// Number of workers started since the bridge was created.
	// example: 1
	Spawns uint64 `json:"spawns" example:"1"`
	// Number of unexpected worker exits observed.
	// example: 0
	Crashes uint64 `json:"crashes" example:"0"`
}

// Clone returns a copy that shares no pointers with h.
func (h Health) Clone() Health {
	out := h
	if h.Device != nil {
		v := *h.Device
		out.Device = &v
	}
	if h.CUDAAvailable != nil {
		v := *h.CUDAAvailable
		out.CUDAAvailable = &v
	}
	if h.LastError != nil {
		v := *h.LastError
		out.LastError = &v
	}
	if h.Warning != nil {
		v := *h.Warning
		out.Warning = &v
	}
	return out
}
