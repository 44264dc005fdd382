package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "LAMIVI_"

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Config from LAMIVI_* variables. getenv defaults to
// os.Getenv. Unset variables leave the corresponding field zero so the
// result can be merged over a file config.
func FromEnv(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	get := func(k string) string { return strings.TrimSpace(getenv(EnvPrefix + k)) }
	var cfg Config
	var errs []error
	num := func(k string, dst *int) {
		v := get(k)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %q is not an integer", EnvPrefix, k, v))
			return
		}
		*dst = n
	}
	list := func(k string) []string {
		var out []string
		for _, p := range strings.Split(get(k), ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	cfg.Addr = get("ADDR")
	cfg.Python = get("PYTHON")
	cfg.WorkerScript = get("WORKER_SCRIPT")
	cfg.WorkDir = get("WORK_DIR")
	cfg.Device = get("DEVICE")
	num("REQUEST_TIMEOUT_MS", &cfg.RequestTimeoutMS)
	num("BOOT_TIMEOUT_MS", &cfg.BootTimeoutMS)
	num("STOP_GRACE_MS", &cfg.StopGraceMS)
	num("MAX_PENDING", &cfg.MaxPending)
	num("MAX_BODY_MB", &cfg.MaxBodyMB)
	num("INPAINT_TIMEOUT_MS", &cfg.InpaintTimeoutMS)
	cfg.LogLevel = get("LOG_LEVEL")
	cfg.LogFormat = get("LOG_FORMAT")
	cfg.LogFile = get("LOG_FILE")
	cfg.CORSOrigins = list("CORS_ORIGINS")
	if v := get("WARMUP"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sWARMUP: %q is not a boolean", EnvPrefix, v))
		}
		cfg.Warmup = b
	}
	return cfg, errors.Join(errs...)
}
