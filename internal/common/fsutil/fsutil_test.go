package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	p, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != home {
		t.Fatalf("expected %q, got %q", home, p)
	}
	exp, err := ExpandHome("~/venv")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if exp != filepath.Join(home, "venv") {
		t.Fatalf("unexpected expanded path: %q", exp)
	}
}

func TestIsFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "python3")
	if err := os.WriteFile(f, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !IsFile(f) {
		t.Fatalf("expected %s to be a file", f)
	}
	if IsFile(dir) {
		t.Fatalf("directory reported as file")
	}
	if IsFile(filepath.Join(dir, "missing")) {
		t.Fatalf("missing path reported as file")
	}
}

func TestAbsFrom(t *testing.T) {
	base := t.TempDir()
	got, err := AbsFrom(base, "server/python/lama_worker.py")
	if err != nil {
		t.Fatalf("AbsFrom: %v", err)
	}
	if want := filepath.Join(base, "server", "python", "lama_worker.py"); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	abs := filepath.Join(base, "x.py")
	if got, _ := AbsFrom("/elsewhere", abs); got != abs {
		t.Fatalf("absolute path rewritten: %q", got)
	}
}
