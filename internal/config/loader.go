package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"lamivi/pkg/types"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Defaults.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	// Python overrides interpreter discovery, e.g. "py -3.11" or a venv path.
	Python       string   `json:"python" yaml:"python" toml:"python"`
	WorkerScript string   `json:"worker_script" yaml:"worker_script" toml:"worker_script"`
	WorkerArgs   []string `json:"worker_args" yaml:"worker_args" toml:"worker_args"`
	WorkDir      string   `json:"work_dir" yaml:"work_dir" toml:"work_dir"`
	Device       string   `json:"device" yaml:"device" toml:"device"`

	RequestTimeoutMS int `json:"request_timeout_ms" yaml:"request_timeout_ms" toml:"request_timeout_ms"`
	BootTimeoutMS    int `json:"boot_timeout_ms" yaml:"boot_timeout_ms" toml:"boot_timeout_ms"`
	StopGraceMS      int `json:"stop_grace_ms" yaml:"stop_grace_ms" toml:"stop_grace_ms"`
	MaxPending       int `json:"max_pending" yaml:"max_pending" toml:"max_pending"`

	MaxBodyMB        int `json:"max_body_mb" yaml:"max_body_mb" toml:"max_body_mb"`
	InpaintTimeoutMS int `json:"inpaint_timeout_ms" yaml:"inpaint_timeout_ms" toml:"inpaint_timeout_ms"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
	LogFile   string `json:"log_file" yaml:"log_file" toml:"log_file"`

	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	// Warmup spawns the worker at startup instead of on the first request.
	Warmup bool `json:"warmup" yaml:"warmup" toml:"warmup"`
}

// Defaults returns the configuration used when nothing else is specified.
func Defaults() Config {
	return Config{
		Addr:             ":8765",
		Device:           string(types.DeviceAuto),
		RequestTimeoutMS: 120_000,
		BootTimeoutMS:    180_000,
		StopGraceMS:      5_000,
		MaxPending:       32,
		MaxBodyMB:        64,
		LogLevel:         "info",
		LogFormat:        "console",
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Merge overlays the non-zero fields of o onto c.
func (c Config) Merge(o Config) Config {
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setStr(&c.Addr, o.Addr)
	setStr(&c.Python, o.Python)
	setStr(&c.WorkerScript, o.WorkerScript)
	if len(o.WorkerArgs) > 0 {
		c.WorkerArgs = o.WorkerArgs
	}
	setStr(&c.WorkDir, o.WorkDir)
	setStr(&c.Device, o.Device)
	setInt(&c.RequestTimeoutMS, o.RequestTimeoutMS)
	setInt(&c.BootTimeoutMS, o.BootTimeoutMS)
	setInt(&c.StopGraceMS, o.StopGraceMS)
	setInt(&c.MaxPending, o.MaxPending)
	setInt(&c.MaxBodyMB, o.MaxBodyMB)
	setInt(&c.InpaintTimeoutMS, o.InpaintTimeoutMS)
	setStr(&c.LogLevel, o.LogLevel)
	setStr(&c.LogFormat, o.LogFormat)
	setStr(&c.LogFile, o.LogFile)
	if len(o.CORSOrigins) > 0 {
		c.CORSOrigins = o.CORSOrigins
	}
	c.Warmup = c.Warmup || o.Warmup
	return c
}

// Validate reports every problem found in c.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if _, err := types.ParseDevice(c.Device); err != nil {
		errs = append(errs, fmt.Errorf("device: %w", err))
	}
	for name, v := range map[string]int{
		"request_timeout_ms": c.RequestTimeoutMS,
		"boot_timeout_ms":    c.BootTimeoutMS,
		"stop_grace_ms":      c.StopGraceMS,
		"max_pending":        c.MaxPending,
		"max_body_mb":        c.MaxBodyMB,
		"inpaint_timeout_ms": c.InpaintTimeoutMS,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative (got %d)", name, v))
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json (got %q)", c.LogFormat))
	}
	return errors.Join(errs...)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c Config) RequestTimeout() time.Duration { return ms(c.RequestTimeoutMS) }
func (c Config) BootTimeout() time.Duration    { return ms(c.BootTimeoutMS) }
func (c Config) StopGrace() time.Duration      { return ms(c.StopGraceMS) }
func (c Config) InpaintTimeout() time.Duration { return ms(c.InpaintTimeoutMS) }
