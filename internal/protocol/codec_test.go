package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type sink struct {
	envs []Envelope
	errs []error
}

func newSinkDecoder() (*Decoder, *sink) {
	s := &sink{}
	d := NewDecoder(func(e Envelope) { s.envs = append(s.envs, e) }, func(err error) { s.errs = append(s.errs, err) })
	return d, s
}

func TestFeedSplitLineYieldsOneEnvelope(t *testing.T) {
	d, s := newSinkDecoder()
	line := `{"id":"a1","ok":true,"output_b64":"aGk="}` + "\n"
	d.Feed([]byte(line[:17]))
	if len(s.envs) != 0 {
		t.Fatalf("decoded before line complete: %+v", s.envs)
	}
	if d.Buffered() != 17 {
		t.Fatalf("expected 17 buffered bytes, got %d", d.Buffered())
	}
	d.Feed([]byte(line[17:]))
	if len(s.envs) != 1 {
		t.Fatalf("expected exactly one envelope, got %d", len(s.envs))
	}
	e := s.envs[0]
	if e.ID != "a1" || !e.IsResponse() || !*e.OK || e.OutputB64 != "aGk=" {
		t.Fatalf("unexpected envelope: %+v", e)
	}
	if d.Buffered() != 0 {
		t.Fatalf("buffer not drained: %d", d.Buffered())
	}
}

func TestFeedMultipleLinesAndPartialTail(t *testing.T) {
	d, s := newSinkDecoder()
	d.Feed([]byte("{\"id\":\"1\",\"ok\":true}\n{\"id\":\"2\",\"ok\":false,\"error\":\"boom\"}\r\n{\"id\":\"3\""))
	if len(s.envs) != 2 {
		t.Fatalf("expected 2 envelopes, got %d", len(s.envs))
	}
	if s.envs[1].Error != "boom" || *s.envs[1].OK {
		t.Fatalf("unexpected failure envelope: %+v", s.envs[1])
	}
	d.Feed([]byte(",\"ok\":true}\n"))
	if len(s.envs) != 3 || s.envs[2].ID != "3" {
		t.Fatalf("partial tail not completed: %+v", s.envs)
	}
}

func TestFeedByteAtATime(t *testing.T) {
	d, s := newSinkDecoder()
	in := `{"type":"ready","device":"cpu","requested_device":"cuda","cuda_available":false,"warning":"fell back"}` + "\n"
	for i := 0; i < len(in); i++ {
		d.Feed([]byte{in[i]})
	}
	if len(s.envs) != 1 || !s.envs[0].IsReady() {
		t.Fatalf("expected one ready envelope, got %+v", s.envs)
	}
	r := s.envs[0].Ready()
	if *r.Device != "cpu" || r.RequestedDevice != "cuda" || *r.CUDAAvailable || *r.Warning != "fell back" {
		t.Fatalf("unexpected ready: %+v", r)
	}
}

func TestReadyWithNulls(t *testing.T) {
	d, s := newSinkDecoder()
	d.Feed([]byte(`{"type":"ready","device":null,"requested_device":"auto","cuda_available":null,"warning":null}` + "\n"))
	r := s.envs[0].Ready()
	if r.Device != nil || r.CUDAAvailable != nil || r.Warning != nil {
		t.Fatalf("nulls not preserved: %+v", r)
	}
}

func TestBadLineReportsErrorAndContinues(t *testing.T) {
	d, s := newSinkDecoder()
	d.Feed([]byte("Downloading weights...\n{\"id\":\"x\",\n[1,2]\n\n{\"id\":\"ok\",\"ok\":true}\n"))
	if len(s.errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(s.errs), s.errs)
	}
	var le *LineError
	if !errors.As(s.errs[0], &le) || !strings.Contains(le.Line, "Downloading") {
		t.Fatalf("unexpected error: %v", s.errs[0])
	}
	if len(s.envs) != 1 || s.envs[0].ID != "ok" {
		t.Fatalf("decoder did not recover: %+v", s.envs)
	}
}

func TestOversizedLineDropped(t *testing.T) {
	d, s := newSinkDecoder()
	d.SetMaxLine(32)
	d.Feed(bytes.Repeat([]byte("x"), 40))
	if len(s.errs) != 1 || !errors.Is(s.errs[0], ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", s.errs)
	}
	d.Feed([]byte("yyyy\n{\"id\":\"after\",\"ok\":true}\n"))
	if len(s.envs) != 1 || s.envs[0].ID != "after" {
		t.Fatalf("expected recovery after oversized line, got %+v errs=%v", s.envs, s.errs)
	}
	if len(s.errs) != 1 {
		t.Fatalf("tail of oversized line reported again: %v", s.errs)
	}
}

func TestWriteImplementsWriter(t *testing.T) {
	d, s := newSinkDecoder()
	n, err := d.Write([]byte("{\"id\":\"w\",\"ok\":true}\n"))
	if err != nil || n != 21 {
		t.Fatalf("Write n=%d err=%v", n, err)
	}
	if len(s.envs) != 1 {
		t.Fatalf("expected envelope from Write")
	}
}

func TestEncodeAppendsSingleNewline(t *testing.T) {
	b, err := Encode(Request{ID: "r1", ImageB64: "aW1n", MaskB64: "bWFzaw=="})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasSuffix(b, []byte("}\n")) || bytes.Count(b, []byte("\n")) != 1 {
		t.Fatalf("expected exactly one trailing newline: %q", b)
	}
	want := `{"id":"r1","image_b64":"aW1n","mask_b64":"bWFzaw=="}` + "\n"
	if string(b) != want {
		t.Fatalf("got %q want %q", b, want)
	}
}

func TestEncodeRoundTripThroughDecoder(t *testing.T) {
	d, s := newSinkDecoder()
	b, err := Encode(Response{ID: "z", OK: false, Error: "ValueError: bad mask"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	d.Feed(b)
	if len(s.envs) != 1 || s.envs[0].Error != "ValueError: bad mask" || *s.envs[0].OK {
		t.Fatalf("unexpected decode: %+v", s.envs)
	}
}
