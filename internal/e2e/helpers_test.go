package e2e

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lamivi/internal/httpapi"
	"lamivi/internal/manager"
	"lamivi/internal/process/processtest"
	"lamivi/internal/protocol"
	"lamivi/internal/resolver"
)

// newServer wires httpapi over a real Manager driven by a fake worker.
func newServer(t *testing.T, script func(w *processtest.Worker), opts ...func(*manager.ManagerConfig)) (*httptest.Server, *manager.Manager, *processtest.Launcher) {
	t.Helper()
	l := processtest.NewLauncher(script)
	cfg := manager.ManagerConfig{
		Launcher:       l,
		Candidates:     func() []resolver.Candidate { return []resolver.Candidate{{Exe: "python3"}} },
		RequestTimeout: 2 * time.Second,
		BootTimeout:    2 * time.Second,
		StopGrace:      50 * time.Millisecond,
	}
	for _, o := range opts {
		o(&cfg)
	}
	m := manager.NewWithConfig(cfg)
	srv := httptest.NewServer(httpapi.NewMux(m))
	t.Cleanup(func() {
		_ = m.Close()
		srv.Close()
	})
	return srv, m, l
}

func ready(w *processtest.Worker, cuda bool) {
	req := w.Env("LAMIVI_DEVICE")
	dev := req
	if dev == "auto" {
		dev = "cpu"
	}
	_ = w.SendReady(dev, req, &cuda, "")
}

// invertWorker answers with the image bytes reversed, standing in for a model.
func invertWorker(w *processtest.Worker) {
	ready(w, true)
	for {
		req, err := w.ReadRequest()
		if err != nil {
			return
		}
		_ = w.Send(protocol.Response{ID: req.ID, OK: true, OutputB64: req.MaskB64})
	}
}

func postInpaint(t *testing.T, srv *httptest.Server, image, mask []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range map[string][]byte{"image": image, "mask": mask} {
		fw, err := mw.CreateFormFile(name, name+".png")
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = fw.Write(content)
	}
	_ = mw.Close()
	resp, err := http.Post(srv.URL+"/api/inpaint", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /api/inpaint: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func postDevice(t *testing.T, srv *httptest.Server, mode string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/device", "application/json", bytes.NewBufferString(`{"mode":"`+mode+`"}`))
	if err != nil {
		t.Fatalf("POST /api/device: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
