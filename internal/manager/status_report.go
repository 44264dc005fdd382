package manager

import "lamivi/pkg/types"

// Health returns the last published readiness snapshot. It never blocks and
// the result shares no memory with the manager.
func (m *Manager) Health() types.Health {
	return m.health.Load().Clone()
}

// publishHealth stores a snapshot of m.st. Called by the coordinating
// goroutine only.
func (m *Manager) publishHealth() {
	st := &m.st
	h := types.Health{
		Ready:           st.ready,
		Device:          st.device,
		RequestedDevice: st.requested,
		CUDAAvailable:   st.cuda,
		LastError:       st.lastError,
		Warning:         st.warning,
		State:           st.state,
		Pending:         len(st.pending),
		Spawns:          st.spawns,
		Crashes:         st.crashes,
	}
	if st.h != nil {
		h.PID = st.h.pid
		h.Invocation = st.h.invocation
	}
	snap := h.Clone()
	m.health.Store(&snap)
}
