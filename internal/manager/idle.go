package manager

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// startIdle tracks instance usage in a TTL cache; an expired entry unloads
// the instance unless it is busy, in which case the entry is renewed.
func (m *Manager) startIdle(ttl time.Duration) {
	m.idle = ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](ttl),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	m.idle.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, struct{}]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		go m.expire(item.Key())
	})
	go m.idle.Start()
}

func (m *Manager) touchIdle(id string) {
	if m.idle != nil {
		m.idle.Set(id, struct{}{}, ttlcache.DefaultTTL)
	}
}

func (m *Manager) forgetIdle(id string) {
	if m.idle != nil {
		m.idle.Delete(id)
	}
}

func (m *Manager) expire(id string) {
	m.mu.RLock()
	inst := m.instances[id]
	busy := inst != nil && (inst.State != StateReady || len(inst.genCh) > 0 || len(inst.queueCh) > 0)
	m.mu.RUnlock()
	if inst == nil {
		return
	}
	if busy {
		m.touchIdle(id)
		return
	}
	if err := m.Unload(id); err != nil {
		m.log.Debug().Str("model", id).Err(err).Msg("idle unload skipped")
		return
	}
	m.expirations.Add(1)
	m.emit("idle_expired", id, nil)
}
