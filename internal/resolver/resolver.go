// Package resolver produces the ordered list of Python invocations the
// bridge tries when starting the inpainting worker.
//
// Resolve is a pure function of its Platform argument: every filesystem
// probe and PATH lookup goes through the Platform's function fields, so the
// Windows search order can be exercised on any host.
package resolver

import (
	"sort"
	"strconv"
	"strings"
)

// Candidate is one way of starting the Python runtime: an executable plus the
// argument prefix that precedes the worker script (e.g. "py" "-3").
type Candidate struct {
	Exe  string
	Args []string
}

// String renders the invocation as a shell-like string. Elements containing
// whitespace are quoted. Two candidates with the same String are duplicates.
func (c Candidate) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, p := range append([]string{c.Exe}, c.Args...) {
		if strings.ContainsAny(p, " \t") {
			p = strconv.Quote(p)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// Platform describes the host as seen by Resolve. Nil function fields behave
// as "nothing found".
type Platform struct {
	GOOS string
	// Override is an explicit interpreter invocation, e.g. "py -3.11" or a
	// full path to python.exe. It is always tried first.
	Override string
	// ScriptDir is the directory holding the worker script; virtualenvs next
	// to it are preferred over global interpreters.
	ScriptDir string
	// WorkDir is the service working directory, probed for a .venv as well.
	WorkDir string

	Getenv   func(key string) string
	Glob     func(pattern string) ([]string, error)
	IsFile   func(path string) bool
	LookPath func(file string) (string, error)
	// Locate returns every match of the host's "locate executable" utility
	// (where.exe on Windows), most preferred first.
	Locate func(name string) []string
}

// Resolve returns the deduplicated candidates for p, most likely to work first.
func Resolve(p Platform) []Candidate {
	var out []Candidate
	if c, ok := p.override(); ok {
		out = append(out, c)
	}
	out = append(out, p.virtualenvs()...)
	if p.GOOS == "windows" {
		out = append(out, p.windows()...)
	} else {
		out = append(out, p.unix()...)
	}
	return dedupe(out)
}

func (p Platform) override() (Candidate, bool) {
	s := strings.TrimSpace(p.Override)
	if s == "" {
		return Candidate{}, false
	}
	// A path with spaces (C:\Program Files\...) must not be split.
	if p.isFile(s) {
		return Candidate{Exe: s}, true
	}
	fields := strings.Fields(s)
	return Candidate{Exe: fields[0], Args: fields[1:]}, true
}

func (p Platform) virtualenvs() []Candidate {
	var out []Candidate
	for _, dir := range []string{p.ScriptDir, p.WorkDir} {
		if dir == "" {
			continue
		}
		for _, venv := range []string{".venv", "venv"} {
			var py string
			if p.GOOS == "windows" {
				py = p.join(dir, venv, "Scripts", "python.exe")
			} else {
				py = p.join(dir, venv, "bin", "python3")
			}
			if p.isFile(py) {
				out = append(out, Candidate{Exe: py})
			}
		}
	}
	return out
}

// windows follows the py launcher model: the version-selecting launcher
// first, then interpreters under the usual install roots, then whatever
// where.exe reports, then bare names.
func (p Platform) windows() []Candidate {
	var out []Candidate
	if p.lookPath("py") {
		out = append(out, Candidate{Exe: "py", Args: []string{"-3"}})
	}

	var roots []string
	if v := p.getenv("LOCALAPPDATA"); v != "" {
		roots = append(roots, p.join(v, "Programs", "Python", "Python3*", "python.exe"))
	}
	for _, key := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
		if v := p.getenv(key); v != "" {
			roots = append(roots, p.join(v, "Python3*", "python.exe"))
		}
	}
	drive := p.getenv("SystemDrive")
	if drive == "" {
		drive = "C:"
	}
	roots = append(roots, p.join(drive+`\`, "Python3*", "python.exe"))
	for _, pattern := range roots {
		for _, m := range newestFirst(p.glob(pattern)) {
			if p.isFile(m) {
				out = append(out, Candidate{Exe: m})
			}
		}
	}
	if v := p.getenv("USERPROFILE"); v != "" {
		for _, dist := range []string{"miniconda3", "anaconda3"} {
			if py := p.join(v, dist, "python.exe"); p.isFile(py) {
				out = append(out, Candidate{Exe: py})
			}
		}
	}

	for _, name := range []string{"python", "python3"} {
		for _, m := range p.locate(name) {
			if isStoreAlias(m) {
				continue
			}
			out = append(out, Candidate{Exe: m})
		}
	}
	out = append(out, Candidate{Exe: "python"}, Candidate{Exe: "python3"})
	return out
}

func (p Platform) unix() []Candidate {
	out := []Candidate{{Exe: "python3"}, {Exe: "python"}}
	// Launchd and some desktop sessions start us with a minimal PATH.
	for _, abs := range []string{"/opt/homebrew/bin/python3", "/usr/local/bin/python3", "/usr/bin/python3"} {
		if p.isFile(abs) {
			out = append(out, Candidate{Exe: abs})
		}
	}
	return out
}

func dedupe(in []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		k := c.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// isStoreAlias reports the Microsoft Store stub that opens the Store instead
// of running Python.
func isStoreAlias(path string) bool {
	return strings.Contains(strings.ToLower(path), `\microsoft\windowsapps\`)
}

// newestFirst orders Python3* install directories by minor version, highest
// first, so Python312 sorts before Python39.
func newestFirst(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.SliceStable(out, func(i, j int) bool {
		return pythonVersion(out[i]) > pythonVersion(out[j])
	})
	return out
}

func pythonVersion(path string) int {
	lower := strings.ToLower(path)
	i := strings.LastIndex(lower, "python3")
	if i < 0 {
		return -1
	}
	digits := lower[i+len("python"):]
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(digits[:end])
	if err != nil {
		return -1
	}
	return n
}

func (p Platform) join(elems ...string) string {
	sep := "/"
	if p.GOOS == "windows" {
		sep = `\`
	}
	var b strings.Builder
	for i, e := range elems {
		if i > 0 && !strings.HasSuffix(b.String(), sep) {
			b.WriteString(sep)
		}
		b.WriteString(e)
	}
	return b.String()
}

func (p Platform) getenv(k string) string {
	if p.Getenv == nil {
		return ""
	}
	return p.Getenv(k)
}

func (p Platform) glob(pattern string) []string {
	if p.Glob == nil {
		return nil
	}
	m, err := p.Glob(pattern)
	if err != nil {
		return nil
	}
	return m
}

func (p Platform) isFile(path string) bool {
	return p.IsFile != nil && p.IsFile(path)
}

func (p Platform) lookPath(name string) bool {
	if p.LookPath == nil {
		return false
	}
	_, err := p.LookPath(name)
	return err == nil
}

func (p Platform) locate(name string) []string {
	if p.Locate == nil {
		return nil
	}
	return p.Locate(name)
}
