package manager

import "context"

// Inpaint starts the worker if needed and runs one request through it.
// The result is the worker's output image (PNG bytes).
func (m *Manager) Inpaint(ctx context.Context, image, mask []byte) ([]byte, error) {
	if err := m.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return m.Call(ctx, image, mask)
}
