package manager

import (
	"context"
	"encoding/base64"
	"errors"

	"lamivi/internal/protocol"
)

// Call sends one inpainting request to the running worker and waits for the
// response with the same id. It does not start a worker; see Inpaint.
//
// Canceling ctx abandons the request exactly like a timeout: the id is
// forgotten and a late response is dropped.
func (m *Manager) Call(ctx context.Context, image, mask []byte) ([]byte, error) {
	id := m.cfg.NewID()
	line, err := protocol.Encode(protocol.Request{
		ID:       id,
		ImageB64: base64.StdEncoding.EncodeToString(image),
		MaskB64:  base64.StdEncoding.EncodeToString(mask),
	})
	if err != nil {
		return nil, err
	}
	reply := make(chan callResult, 1)
	if err := send(m, ctx, m.callCh, callReq{id: id, line: line, reply: reply}); err != nil {
		return nil, err
	}
	res, werr := await(m, ctx, reply)
	if werr != nil {
		if !errors.Is(werr, ErrClosed) {
			m.abandon(id, werr)
		}
		return nil, werr
	}
	if res.err != nil {
		return nil, res.err
	}
	out, err := base64.StdEncoding.DecodeString(res.outputB64)
	if err != nil {
		return nil, &protocolError{msg: "invalid output_b64 in response " + id, err: err}
	}
	return out, nil
}

func (m *Manager) abandon(id string, err error) {
	select {
	case m.abandonCh <- abandonReq{id: id, err: err}:
	case <-m.ctx.Done():
	}
}
