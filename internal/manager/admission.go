package manager

import (
	"context"
	"time"
)

// beginOp reserves a queue slot and then the single in-flight slot of the
// instance. The returned release func must be called once the operation on
// the instance's BoundModel is done.
func (m *Manager) beginOp(ctx context.Context, modelID string) (*Instance, func(), error) {
	noop := func() {}
	m.mu.RLock()
	inst := m.instances[modelID]
	var state State
	if inst != nil {
		state = inst.State
	}
	m.mu.RUnlock()
	if inst == nil {
		return nil, noop, modelNotFoundError{id: modelID}
	}
	// Draining instances reject new work so Unload can finish.
	if state == StateDraining {
		return nil, noop, tooBusyError{modelID: modelID}
	}
	if err := ctx.Err(); err != nil {
		return nil, noop, err
	}

	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case inst.queueCh <- struct{}{}:
	case <-ctx.Done():
		return nil, noop, ctx.Err()
	case <-timer.C:
		return nil, noop, tooBusyError{modelID: modelID}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-inst.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, noop, err
	}
	timer2 := time.NewTimer(m.maxWait)
	defer timer2.Stop()
	select {
	case inst.genCh <- struct{}{}:
	case <-ctx.Done():
		return nil, noop, ctx.Err()
	case <-timer2.C:
		return nil, noop, tooBusyError{modelID: modelID}
	}

	m.mu.Lock()
	if inst.closed {
		// released by Unload or eviction while we were queued
		m.mu.Unlock()
		<-inst.genCh
		return nil, noop, modelNotFoundError{id: modelID}
	}
	acquired = true
	inst.LastUsed = time.Now()
	m.mu.Unlock()
	m.touchIdle(modelID)
	return inst, func() {
		m.mu.Lock()
		inst.LastUsed = time.Now()
		m.mu.Unlock()
		m.touchIdle(modelID)
		<-inst.genCh
		<-inst.queueCh
	}, nil
}
