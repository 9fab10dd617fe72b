package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"llamabind/internal/engine"
	"llamabind/internal/registry"
	"llamabind/pkg/types"
)

// Manager owns every loaded BoundModel of the server and serializes access
// to each of them.
type Manager struct {
	mu           sync.RWMutex
	state        State
	cur          string
	err          string
	registry     []registry.Entry
	eng          engine.Engine
	budgetMB     int
	marginMB     int
	defaultModel string
	instances    map[string]*Instance
	usedEstMB    int

	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	loads       singleflight.Group
	idle        *ttlcache.Cache[string, struct{}]
	publisher   EventPublisher
	log         zerolog.Logger
	startTime   time.Time
	closeOnce   sync.Once
	loadsTotal  atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

// New builds a Manager with package defaults for queueing.
func New(reg []registry.Entry, eng engine.Engine, budgetMB, marginMB int, defaultModel string) *Manager {
	return NewWithConfig(ManagerConfig{
		Registry:     reg,
		Engine:       eng,
		BudgetMB:     budgetMB,
		MarginMB:     marginMB,
		DefaultModel: defaultModel,
	})
}

// Ready reports whether at least one instance can serve requests.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateError {
		return false
	}
	for _, inst := range m.instances {
		if inst.State == StateReady {
			return true
		}
	}
	return false
}

// ListModels returns the models the manager can load.
func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return registry.Models(m.registry)
}

// Close stops idle expiry and releases every instance.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		if m.idle != nil {
			m.idle.Stop()
		}
	})
	m.mu.RLock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	var first error
	for _, id := range ids {
		if err := m.Unload(id); err != nil && first == nil && !IsModelNotFound(err) {
			first = err
		}
	}
	return first
}
