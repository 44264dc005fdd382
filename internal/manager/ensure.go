package manager

import "context"

// EnsureReady returns once a worker has completed its handshake. Concurrent
// callers share one spawn attempt. Canceling ctx stops waiting but leaves the
// shared spawn running.
func (m *Manager) EnsureReady(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := send(m, ctx, m.ensureCh, ensureReq{reply: reply}); err != nil {
		return err
	}
	err, werr := await(m, ctx, reply)
	if werr != nil {
		return werr
	}
	return err
}
