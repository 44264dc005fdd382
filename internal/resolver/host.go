package resolver

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"lamivi/internal/common/fsutil"
)

// locateTimeout bounds a single where.exe invocation.
const locateTimeout = 3 * time.Second

// Host returns the Platform of the running process.
func Host(override, scriptDir, workDir string) Platform {
	return Platform{
		GOOS:      runtime.GOOS,
		Override:  override,
		ScriptDir: scriptDir,
		WorkDir:   workDir,
		Getenv:    os.Getenv,
		Glob:      filepath.Glob,
		IsFile:    fsutil.IsFile,
		LookPath:  exec.LookPath,
		Locate:    whereLocate,
	}
}

// whereLocate lists every match of `where <name>`. Only Windows ships a
// locate utility whose output we rely on; other hosts return nil.
func whereLocate(name string) []string {
	if runtime.GOOS != "windows" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), locateTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "where", name).Output()
	if err != nil {
		return nil
	}
	return parseLocateOutput(out)
}

func parseLocateOutput(out []byte) []string {
	var paths []string
	s := bufio.NewScanner(bytes.NewReader(out))
	for s.Scan() {
		if line := strings.TrimSpace(s.Text()); line != "" {
			paths = append(paths, line)
		}
	}
	return paths
}
