package manager

import (
	"context"

	"lamivi/pkg/types"
)

// SetDeviceMode restarts the worker on mode ("cpu" or "cuda") and returns
// once the new worker is ready or the spawn failed. Requests pending on the
// old worker fail with a worker crash error. Asking for the mode that is
// already active on a ready worker does nothing.
func (m *Manager) SetDeviceMode(ctx context.Context, mode string) error {
	dev, err := types.ParseDevice(mode)
	if err != nil || (dev != types.DeviceCPU && dev != types.DeviceCUDA) {
		return &invalidDeviceError{mode: mode}
	}
	reply := make(chan error, 1)
	if err := send(m, ctx, m.modeCh, modeReq{device: dev, reply: reply}); err != nil {
		return err
	}
	err, werr := await(m, ctx, reply)
	if werr != nil {
		return werr
	}
	return err
}
