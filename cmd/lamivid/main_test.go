package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "lamivid ") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "lamivi.yaml")
	if err := os.WriteFile(cfgPath, []byte("device: cpu\nmax_pending: 3\nboot_timeout_ms: 1000\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LAMIVI_MAX_PENDING", "5")

	opts := &options{configPath: cfgPath, envFile: filepath.Join(dir, "missing.env")}
	cmd := newServeCmd(opts)
	if err := cmd.ParseFlags([]string{"--device", "cuda", "--boot-timeout", "2s"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Device != "cuda" {
		t.Fatalf("flag should win for device, got %q", cfg.Device)
	}
	if cfg.BootTimeoutMS != 2000 {
		t.Fatalf("boot timeout %d", cfg.BootTimeoutMS)
	}
	if cfg.MaxPending != 5 {
		t.Fatalf("environment should override file, got %d", cfg.MaxPending)
	}
	if cfg.Addr != ":8765" {
		t.Fatalf("default addr lost: %q", cfg.Addr)
	}
}

func TestLoadConfigRejectsInvalidDevice(t *testing.T) {
	opts := &options{envFile: filepath.Join(t.TempDir(), "missing.env")}
	cmd := newServeCmd(opts)
	if err := cmd.ParseFlags([]string{"--device", "tpu"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := loadConfig(cmd, opts); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestCandidatesCommandJSON(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"candidates", "--json", "--env-file", filepath.Join(dir, "missing.env"), "--python", "/custom/python", "--worker-script", filepath.Join(dir, "nope.py")})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	s := out.String()
	if !strings.Contains(s, `"/custom/python`) || !strings.Contains(s, "worker script not found") {
		t.Fatalf("unexpected report: %s", s)
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "lamivi.log")
	logger, closeFn, err := newLogger("debug", "json", p)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info().Str("k", "v").Msg("hello")
	closeFn()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"message":"hello"`) || !strings.Contains(string(b), `"service":"lamivid"`) {
		t.Fatalf("unexpected log line %s", b)
	}
}
