package manager

// evictUntilFits releases least recently used idle instances until
// requiredMB fits in budget minus margin. Busy instances and keep are never
// evicted. When nothing more can be evicted the load proceeds anyway.
func (m *Manager) evictUntilFits(requiredMB int, keep string) {
	for {
		m.mu.Lock()
		if m.usedEstMB+requiredMB+m.marginMB <= m.budgetMB {
			m.mu.Unlock()
			return
		}
		var lru *Instance
		for _, inst := range m.instances {
			if inst.ID == keep || inst.State != StateReady {
				continue
			}
			if len(inst.genCh) > 0 || len(inst.queueCh) > 0 {
				continue
			}
			if lru == nil || inst.LastUsed.Before(lru.LastUsed) {
				lru = inst
			}
		}
		if lru == nil {
			used := m.usedEstMB
			m.mu.Unlock()
			m.log.Warn().Int("required_mb", requiredMB).Int("used_mb", used).Int("budget_mb", m.budgetMB).Msg("budget exceeded, nothing left to evict")
			m.emit("evict_budget_exceeded", keep, map[string]any{"required_mb": requiredMB, "used_mb": used})
			return
		}
		select {
		case lru.genCh <- struct{}{}:
		default:
			// became busy between the check and now; try again
			m.mu.Unlock()
			continue
		}
		m.retireLocked(lru)
		m.mu.Unlock()

		if err := m.release(lru); err != nil {
			m.log.Warn().Str("model", lru.ID).Err(err).Msg("evicted instance did not release cleanly")
		}
		m.evictions.Add(1)
		m.emit("evicted", lru.ID, map[string]any{"est_mb": lru.EstMB})
	}
}
