package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	spawnAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lamivi",
			Subsystem: "worker",
			Name:      "spawn_attempts_total",
			Help:      "Worker launch attempts by outcome (ready, exited, timeout, launch_error, canceled)",
		},
		[]string{"outcome"},
	)

	workerCrashes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lamivi",
			Subsystem: "worker",
			Name:      "crashes_total",
			Help:      "Unexpected worker exits after the handshake",
		},
	)

	workerReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lamivi",
			Subsystem: "worker",
			Name:      "ready",
			Help:      "1 while a worker is ready to accept requests",
		},
	)

	pendingCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lamivi",
			Subsystem: "bridge",
			Name:      "pending_calls",
			Help:      "Requests awaiting a worker response",
		},
	)

	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lamivi",
			Subsystem: "bridge",
			Name:      "call_duration_seconds",
			Help:      "Time from request registration to its terminal outcome",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(spawnAttempts, workerCrashes, workerReady, pendingCalls, callDuration)
}
