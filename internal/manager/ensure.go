package manager

import (
	"context"
	"time"

	"llamabind/internal/binding"
)

// EnsureInstance makes sure the model is loaded and ready. Concurrent calls
// for the same model share a single load. An empty modelID selects the
// default model.
func (m *Manager) EnsureInstance(ctx context.Context, modelID string) error {
	id, err := m.resolveID(modelID)
	if err != nil {
		return err
	}
	if m.readyInstance(id) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// The shared load outlives any single caller; each caller stops waiting
	// when its own context ends.
	ch := m.loads.DoChan(id, func() (any, error) {
		return nil, m.load(id)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) readyInstance(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[id]; ok && inst.State == StateReady {
		inst.LastUsed = time.Now()
		return true
	}
	return false
}

func (m *Manager) load(id string) error {
	startTs := time.Now()
	if m.readyInstance(id) {
		return nil
	}
	m.emit("ensure_start", id, nil)

	entry, ok := m.getModelByID(id)
	if !ok {
		m.emit("ensure_model_not_found", id, nil)
		return ErrModelNotFound(id)
	}
	if m.eng == nil {
		return ErrDependencyUnavailable("no inference engine configured")
	}
	reqMB := estimateMB(entry)
	if m.budgetMB > 0 {
		m.evictUntilFits(reqMB, id)
	}

	m.mu.Lock()
	if inst, exists := m.instances[id]; exists {
		ready := inst.State == StateReady
		m.mu.Unlock()
		if ready {
			return nil
		}
		// draining: the old instance must go before a new one can load
		return tooBusyError{modelID: id}
	}
	inst := &Instance{
		ID:       id,
		State:    StateLoading,
		LastUsed: time.Now(),
		EstMB:    reqMB,
		Engine:   m.eng.Name(),
		genCh:    make(chan struct{}, 1),
		queueCh:  make(chan struct{}, m.maxQueueDepth),
	}
	m.instances[id] = inst
	m.state = StateLoading
	m.mu.Unlock()

	bound, err := binding.Create(m.eng, entry.Config)
	if err != nil {
		m.mu.Lock()
		delete(m.instances, id)
		m.err = err.Error()
		m.state = StateError
		for _, other := range m.instances {
			if other.State == StateReady {
				m.state = StateReady
				break
			}
		}
		m.mu.Unlock()
		m.log.Error().Str("model", id).Err(err).Msg("load failed")
		m.emit("ensure_load_error", id, map[string]any{"error": err.Error()})
		if binding.IsEngineUnavailable(err) {
			return dependencyUnavailableError{msg: err.Error(), cause: err}
		}
		return err
	}
	embd, _ := bound.EmbeddingSize()
	stateSize, _ := bound.StateSize()

	m.mu.Lock()
	inst.bound = bound
	inst.EmbedSize = embd
	inst.StateSize = stateSize
	inst.State = StateReady
	inst.LastUsed = time.Now()
	m.usedEstMB += reqMB
	m.cur = id
	m.state = StateReady
	m.err = ""
	m.mu.Unlock()
	m.loadsTotal.Add(1)
	m.touchIdle(id)

	dur := time.Since(startTs)
	m.log.Info().Str("model", id).Int("n_embd", embd).Int("est_mb", reqMB).Dur("dur", dur).Msg("instance ready")
	m.emit("ensure_ready", id, map[string]any{"dur_ms": int(dur / time.Millisecond)})
	return nil
}

// Preload starts loading modelID in the background. Failures are reported
// through Status and the event publisher.
func (m *Manager) Preload(modelID string) {
	go func() {
		if err := m.EnsureInstance(context.Background(), modelID); err != nil {
			m.log.Warn().Str("model", modelID).Err(err).Msg("preload failed")
		}
	}()
}
