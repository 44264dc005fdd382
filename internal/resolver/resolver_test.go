package resolver

import (
	"errors"
	"path"
	"reflect"
	"strings"
	"testing"
)

// fakeFS backs the Platform probes with a fixed set of files.
type fakeFS map[string]bool

func (f fakeFS) isFile(p string) bool { return f[p] }

// glob matches with path.Match after normalizing separators, which is enough
// for the single-wildcard patterns Resolve uses.
func (f fakeFS) glob(pattern string) ([]string, error) {
	norm := strings.ReplaceAll(pattern, `\`, "/")
	var out []string
	for p := range f {
		if ok, _ := path.Match(norm, strings.ReplaceAll(p, `\`, "/")); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func invocations(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

func TestResolveUnixDefaults(t *testing.T) {
	got := invocations(Resolve(Platform{GOOS: "linux"}))
	want := []string{"python3", "python"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolveOverrideFirstAndSplit(t *testing.T) {
	got := Resolve(Platform{GOOS: "linux", Override: "  /opt/conda/bin/python -X utf8 "})
	if got[0].Exe != "/opt/conda/bin/python" || !reflect.DeepEqual(got[0].Args, []string{"-X", "utf8"}) {
		t.Fatalf("unexpected override candidate: %+v", got[0])
	}
	if len(got) != 3 {
		t.Fatalf("expected override plus two defaults, got %v", invocations(got))
	}
}

func TestResolveOverrideWithSpacesKeptWhole(t *testing.T) {
	exe := `C:\Program Files\Python311\python.exe`
	fs := fakeFS{exe: true}
	got := Resolve(Platform{GOOS: "windows", Override: exe, IsFile: fs.isFile, Glob: fs.glob})
	if got[0].Exe != exe || len(got[0].Args) != 0 {
		t.Fatalf("override split unexpectedly: %+v", got[0])
	}
	if got[0].String() != `"C:\\Program Files\\Python311\\python.exe"` {
		t.Fatalf("unexpected rendering: %s", got[0].String())
	}
}

func TestResolveVirtualenvPreferred(t *testing.T) {
	fs := fakeFS{"/srv/app/server/python/.venv/bin/python3": true}
	got := invocations(Resolve(Platform{GOOS: "darwin", ScriptDir: "/srv/app/server/python", IsFile: fs.isFile}))
	if got[0] != "/srv/app/server/python/.venv/bin/python3" {
		t.Fatalf("venv not first: %v", got)
	}
}

func TestResolveWindowsOrderAndDedupe(t *testing.T) {
	env := map[string]string{
		"LOCALAPPDATA": `C:\Users\ana\AppData\Local`,
		"ProgramFiles": `C:\Program Files`,
		"USERPROFILE":  `C:\Users\ana`,
	}
	py39 := `C:\Users\ana\AppData\Local\Programs\Python\Python39\python.exe`
	py312 := `C:\Users\ana\AppData\Local\Programs\Python\Python312\python.exe`
	pf311 := `C:\Program Files\Python311\python.exe`
	conda := `C:\Users\ana\miniconda3\python.exe`
	fs := fakeFS{py39: true, py312: true, pf311: true, conda: true}
	p := Platform{
		GOOS:   "windows",
		Getenv: func(k string) string { return env[k] },
		Glob:   fs.glob,
		IsFile: fs.isFile,
		LookPath: func(name string) (string, error) {
			if name == "py" {
				return `C:\Windows\py.exe`, nil
			}
			return "", errors.New("not found")
		},
		Locate: func(name string) []string {
			if name == "python" {
				// where.exe repeats an install root and lists the Store stub.
				return []string{py312, `C:\Users\ana\AppData\Local\Microsoft\WindowsApps\python.exe`}
			}
			return nil
		},
	}
	got := invocations(Resolve(p))
	want := []string{
		"py -3",
		py312,
		py39,
		`"C:\\Program Files\\Python311\\python.exe"`,
		conda,
		"python",
		"python3",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got\n  %v\nwant\n  %v", strings.Join(got, "\n  "), strings.Join(want, "\n  "))
	}
}

func TestResolveWindowsWithoutLauncher(t *testing.T) {
	got := invocations(Resolve(Platform{GOOS: "windows"}))
	want := []string{"python", "python3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPythonVersion(t *testing.T) {
	cases := map[string]int{
		`C:\Python39\python.exe`:  39,
		`C:\Python312\python.exe`: 312,
		`C:\Tools\python.exe`:     -1,
	}
	for in, want := range cases {
		if got := pythonVersion(in); got != want {
			t.Fatalf("pythonVersion(%q)=%d want %d", in, got, want)
		}
	}
}

func TestParseLocateOutput(t *testing.T) {
	out := []byte("C:\\Python311\\python.exe\r\n\r\nC:\\Other\\python.exe\r\n")
	got := parseLocateOutput(out)
	want := []string{`C:\Python311\python.exe`, `C:\Other\python.exe`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
