package manager

import (
	"time"

	"github.com/rs/zerolog"

	"lamivi/internal/common/fsutil"
	"lamivi/internal/process"
	"lamivi/internal/resolver"
	"lamivi/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultRequestTimeout = 120 * time.Second
	defaultBootTimeout    = 180 * time.Second
	defaultStopGrace      = 5 * time.Second
	defaultMaxPending     = 32
	defaultStderrTail     = 8 << 10
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Launcher starts worker processes. Defaults to process.ExecLauncher.
	Launcher process.Launcher
	// Candidates lists interpreters to try, in order. Defaults to the
	// resolver run against the host with Python as override.
	Candidates func() []resolver.Candidate
	// Python is an interpreter override such as "py -3.11".
	Python string
	// WorkerScript is appended to every candidate's arguments. It must exist
	// when set.
	WorkerScript string
	WorkerArgs   []string
	// WorkDir is the worker's working directory and the second root searched
	// for virtualenvs.
	WorkDir string
	// Device is the initially requested mode. Empty means auto.
	Device types.Device

	RequestTimeout time.Duration
	BootTimeout    time.Duration
	// StopGrace is how long a terminated worker may take to exit before it
	// is killed.
	StopGrace       time.Duration
	MaxPending      int
	StderrTailBytes int

	Logger    *zerolog.Logger
	Publisher EventPublisher
	// NewID generates correlation ids. Defaults to UUIDv7 strings.
	NewID func() string
}

// NewWithConfig constructs a Manager from ManagerConfig and starts its
// coordinating goroutine. Close must be called to release it.
func NewWithConfig(cfg ManagerConfig) *Manager {
	if cfg.Launcher == nil {
		cfg.Launcher = process.ExecLauncher{}
	}
	// Relative script paths are taken from WorkDir; "~" is expanded.
	if cfg.WorkerScript != "" {
		if p, err := fsutil.AbsFrom(cfg.WorkDir, cfg.WorkerScript); err == nil {
			cfg.WorkerScript = p
		}
	}
	if cfg.Candidates == nil {
		override, script, dir := cfg.Python, cfg.WorkerScript, cfg.WorkDir
		cfg.Candidates = func() []resolver.Candidate {
			return resolver.Resolve(resolver.Host(override, scriptDir(script), dir))
		}
	}
	if cfg.Device == "" {
		cfg.Device = types.DeviceAuto
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.BootTimeout <= 0 {
		cfg.BootTimeout = defaultBootTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaultMaxPending
	}
	if cfg.StderrTailBytes <= 0 {
		cfg.StderrTailBytes = defaultStderrTail
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	if cfg.NewID == nil {
		cfg.NewID = newCorrelationID
	}
	m := newManager(cfg)
	go m.run()
	return m
}
