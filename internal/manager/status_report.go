package manager

import (
	"sort"
	"time"

	"llamabind/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.state, Current: m.cur, Err: m.err}
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	resp := types.StatusResponse{
		BudgetMB:         m.budgetMB,
		UsedMB:           m.usedEstMB,
		MarginMB:         m.marginMB,
		LastError:        m.err,
		State:            string(m.state),
		UptimeSeconds:    int64(now.Sub(m.startTime) / time.Second),
		ServerTimeUnix:   now.Unix(),
		EvictionsTotal:   m.evictions.Load(),
		ExpirationsTotal: m.expirations.Load(),
		LoadsTotal:       m.loadsTotal.Load(),
	}
	resp.Instances = make([]types.InstanceStatus, 0, len(m.instances))
	for _, inst := range m.instances {
		switch inst.State {
		case StateLoading:
			resp.WarmupsInProgress++
		case StateDraining:
			resp.DrainingCount++
		}
		resp.Instances = append(resp.Instances, types.InstanceStatus{
			ModelID:       inst.ID,
			State:         string(inst.State),
			LastUsed:      inst.LastUsed.Unix(),
			EstMB:         inst.EstMB,
			EmbeddingSize: inst.EmbedSize,
			StateSize:     inst.StateSize,
			Engine:        inst.Engine,
			QueueLen:      len(inst.queueCh),
			Inflight:      len(inst.genCh),
			MaxQueueDepth: cap(inst.queueCh),
		})
	}
	sort.Slice(resp.Instances, func(i, j int) bool { return resp.Instances[i].ModelID < resp.Instances[j].ModelID })
	return resp
}
