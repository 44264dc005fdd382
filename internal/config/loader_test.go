package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\npython: py -3.11\nworker_script: /srv/lama_worker.py\ndevice: cuda\nboot_timeout_ms: 90000\ncors_origins:\n  - http://localhost:5173\nwarmup: true\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.Python != "py -3.11" || cfg.WorkerScript != "/srv/lama_worker.py" || cfg.Device != "cuda" || cfg.BootTimeoutMS != 90000 || !cfg.Warmup {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:5173" {
		t.Fatalf("cors origins: %v", cfg.CORSOrigins)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","work_dir":"/w","request_timeout_ms":42,"max_pending":2,"worker_args":["--model","big-lama"]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.WorkDir != "/w" || cfg.RequestTimeoutMS != 42 || cfg.MaxPending != 2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if strings.Join(cfg.WorkerArgs, " ") != "--model big-lama" {
		t.Fatalf("worker args: %v", cfg.WorkerArgs)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\ndevice=\"cpu\"\nstop_grace_ms=9\nlog_format=\"json\"\nlog_file=\"/var/log/lamivi.log\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.Device != "cpu" || cfg.StopGraceMS != 9 || cfg.LogFormat != "json" || cfg.LogFile != "/var/log/lamivi.log" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.BootTimeout().Seconds() != 180 || cfg.RequestTimeout().Seconds() != 120 {
		t.Fatalf("timeouts: boot=%v request=%v", cfg.BootTimeout(), cfg.RequestTimeout())
	}
	if cfg.InpaintTimeout() != 0 {
		t.Fatalf("inpaint timeout should default to none, got %v", cfg.InpaintTimeout())
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Device = "tpu"
	cfg.MaxPending = -1
	cfg.LogFormat = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"device", "max_pending", "log_format"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestMergeOverlaysNonZero(t *testing.T) {
	base := Defaults()
	got := base.Merge(Config{Device: "cuda", MaxPending: 4, CORSOrigins: []string{"*"}})
	if got.Device != "cuda" || got.MaxPending != 4 || len(got.CORSOrigins) != 1 {
		t.Fatalf("overlay not applied: %+v", got)
	}
	if got.Addr != base.Addr || got.BootTimeoutMS != base.BootTimeoutMS {
		t.Fatalf("zero fields must not clobber: %+v", got)
	}
}
