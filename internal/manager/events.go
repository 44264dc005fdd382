package manager

// Event represents a worker lifecycle event.
// Minimal and stable: name + worker pid and optional fields via key/values.
type Event struct {
	Name   string
	PID    int
	Fields map[string]any
}

// Event names published by the manager.
const (
	EventSpawnStart    = "spawn_start"
	EventSpawnReady    = "spawn_ready"
	EventSpawnExit     = "spawn_exit"
	EventSpawnTimeout  = "spawn_timeout"
	EventSpawnFailed   = "spawn_failed"
	EventWorkerCrash   = "worker_crash"
	EventWorkerStop    = "worker_stop"
	EventProtocolError = "protocol_error"
	EventLateResponse  = "late_response"
	EventDeviceSwitch  = "device_switch"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
