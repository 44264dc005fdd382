// Package protocol implements the newline-delimited JSON framing spoken
// with the inpainting worker over its standard streams.
package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// MaxLineBytes bounds a single buffered line. Results are base64 PNGs, so
// the limit is generous; a longer line is dropped and reported.
const MaxLineBytes = 64 << 20

// previewBytes is how much of a bad line a LineError keeps.
const previewBytes = 256

// ErrLineTooLong is wrapped by the LineError reported for oversized lines.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// LineError reports a line that could not be decoded as an envelope.
type LineError struct {
	Line string // truncated preview of the offending line
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("undecodable worker line %q: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Decoder splits a byte stream into lines and decodes each as an Envelope.
// It is not safe for concurrent use; os/exec writes a child's stdout from a
// single goroutine, which is how the bridge drives it.
type Decoder struct {
	onEnvelope func(Envelope)
	onError    func(error)
	max        int

	buf []byte
	// skipping is set after an oversized line until its terminator arrives.
	skipping bool
}

// NewDecoder returns a Decoder delivering envelopes to onEnvelope and
// undecodable lines to onError. onError may be nil.
func NewDecoder(onEnvelope func(Envelope), onError func(error)) *Decoder {
	if onError == nil {
		onError = func(error) {}
	}
	return &Decoder{onEnvelope: onEnvelope, onError: onError, max: MaxLineBytes}
}

// SetMaxLine overrides MaxLineBytes for this decoder.
func (d *Decoder) SetMaxLine(n int) {
	if n > 0 {
		d.max = n
	}
}

// Write feeds p to the decoder. It never fails, so a Decoder can serve as a
// process's stdout.
func (d *Decoder) Write(p []byte) (int, error) {
	d.Feed(p)
	return len(p), nil
}

// Feed appends chunk and handles every complete line it now holds. A
// trailing partial line is kept for the next call.
func (d *Decoder) Feed(chunk []byte) {
	d.buf = append(d.buf, chunk...)
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		line := d.buf[start : start+i]
		start += i + 1
		if d.skipping {
			d.skipping = false
			continue
		}
		d.handleLine(line)
	}
	rest := len(d.buf) - start
	copy(d.buf, d.buf[start:])
	d.buf = d.buf[:rest]

	if !d.skipping && len(d.buf) > d.max {
		d.onError(&LineError{Line: preview(d.buf), Err: ErrLineTooLong})
		d.skipping = true
	}
	if d.skipping {
		d.buf = d.buf[:0]
	}
}

// Buffered returns the number of bytes of the pending partial line.
func (d *Decoder) Buffered() int { return len(d.buf) }

func (d *Decoder) handleLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	if line[0] != '{' {
		d.onError(&LineError{Line: preview(line), Err: errors.New("not a JSON object")})
		return
	}
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		d.onError(&LineError{Line: preview(line), Err: err})
		return
	}
	d.onEnvelope(env)
}

// Encode serializes v followed by exactly one '\n'. The result must be
// written to the worker in a single Write.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return append(b, '\n'), nil
}

func preview(b []byte) string {
	if len(b) > previewBytes {
		return string(b[:previewBytes]) + "..."
	}
	return string(b)
}
