package manager

import (
	"lamivi/internal/common/fsutil"
)

// SanityReport describes pre-flight checks for the worker's dependencies.
type SanityReport struct {
	WorkerScript string   `json:"worker_script,omitempty"`
	ScriptFound  bool     `json:"script_found"`
	Candidates   []string `json:"candidates"`
	Error        string   `json:"error,omitempty"`
}

// SanityCheck reports whether the worker script exists and which
// interpreters a spawn would try. It spawns nothing and is safe to call at
// any time.
func (m *Manager) SanityCheck() SanityReport {
	r := SanityReport{WorkerScript: m.cfg.WorkerScript, Candidates: []string{}}
	for _, c := range m.cfg.Candidates() {
		r.Candidates = append(r.Candidates, c.String())
	}
	switch {
	case r.WorkerScript == "":
		r.Error = "no worker script configured"
	case !fsutil.IsFile(r.WorkerScript):
		r.Error = "worker script not found: " + r.WorkerScript
	default:
		r.ScriptFound = true
	}
	if r.Error == "" && len(r.Candidates) == 0 {
		r.Error = "no python executable candidates found"
	}
	return r
}
