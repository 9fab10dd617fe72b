package manager

import "time"

// Unload drains a model instance and releases its BoundModel.
//   - Sets instance state to draining to reject new enqueues.
//   - Waits up to the drain timeout for the in-flight slot.
//   - Closes the BoundModel and removes the instance entry.
//
// Requests still queued when the instance goes away fail with model not found.
func (m *Manager) Unload(modelID string) error {
	if modelID == "" {
		return ErrModelNotFound("(unspecified)")
	}
	m.mu.Lock()
	inst := m.instances[modelID]
	if inst == nil {
		m.mu.Unlock()
		return ErrModelNotFound(modelID)
	}
	if inst.State != StateReady {
		m.mu.Unlock()
		return tooBusyError{modelID: modelID}
	}
	inst.State = StateDraining
	m.mu.Unlock()
	m.emit("unload_start", modelID, nil)

	timer := time.NewTimer(m.drainTimeout)
	defer timer.Stop()
	select {
	case inst.genCh <- struct{}{}:
	case <-timer.C:
		m.mu.Lock()
		inst.State = StateReady
		qlen := len(inst.queueCh)
		m.mu.Unlock()
		m.emit("unload_timeout", modelID, map[string]any{"queue": qlen})
		return tooBusyError{modelID: modelID}
	}

	m.mu.Lock()
	m.retireLocked(inst)
	m.mu.Unlock()
	err := m.release(inst)
	m.emit("unload_done", modelID, nil)
	return err
}

// retireLocked removes inst from the manager. The caller holds m.mu and the
// instance's in-flight slot.
func (m *Manager) retireLocked(inst *Instance) {
	inst.closed = true
	if m.instances[inst.ID] == inst {
		delete(m.instances, inst.ID)
		m.usedEstMB -= inst.EstMB
		if m.usedEstMB < 0 {
			m.usedEstMB = 0
		}
	}
	if m.cur == inst.ID {
		m.cur = ""
	}
}

// release closes the BoundModel of a retired instance and frees its
// in-flight slot so queued waiters can observe the closure.
func (m *Manager) release(inst *Instance) error {
	var err error
	if inst.bound != nil {
		err = inst.bound.Close()
	}
	<-inst.genCh
	m.forgetIdle(inst.ID)
	m.log.Info().Str("model", inst.ID).Msg("instance released")
	return err
}
