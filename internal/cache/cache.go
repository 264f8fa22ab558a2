// Package cache provides the TTL store that fronts every fetch, plus
// the coalescing registry that guarantees at most one outstanding
// upstream execution per cache key.
package cache

import (
	"sync"
	"time"

	"financeprovider/internal/normalize"
	"financeprovider/internal/source"
)

// Store is the pluggable cache contract. Implementations must support
// concurrent Get/Set; last-writer-wins on Set is acceptable since all
// writers for a key produce equivalent fresh data.
type Store interface {
	Get(key string) (*normalize.Result, bool)
	Set(key string, value *normalize.Result, ttl time.Duration)
	Invalidate(key string)
}

// TTLPolicy maps a data kind to how long its entries stay fresh.
type TTLPolicy map[source.DataKind]time.Duration

// DefaultTTL returns the stock policy: fast snapshots turn over in
// seconds, slow-moving series and statements in hours, profiles daily.
func DefaultTTL() TTLPolicy {
	return TTLPolicy{
		source.KindQuote:     15 * time.Second,
		source.KindHistory:   time.Hour,
		source.KindStatement: time.Hour,
		source.KindCompany:   24 * time.Hour,
	}
}

// For returns the TTL for kind, with a conservative fallback for
// kinds the policy does not name.
func (p TTLPolicy) For(kind source.DataKind) time.Duration {
	if ttl, ok := p[kind]; ok && ttl > 0 {
		return ttl
	}
	return time.Minute
}

type entry struct {
	value     *normalize.Result
	expiresAt time.Time
}

// Memory is the in-process Store. Expired entries are dropped on read,
// so a key never yields a resurrected stale value.
type Memory struct {
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

func NewMemory(maxItems int) *Memory {
	return &Memory{
		MaxItems: maxItems,
		items:    make(map[string]entry),
		now:      time.Now,
	}
}

// SetClock replaces the store's time source. Test hook.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

func (m *Memory) Get(key string) (*normalize.Result, bool) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		// Re-check: a writer may have refreshed the entry meanwhile.
		if cur, ok := m.items[key]; ok && !m.now().Before(cur.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(key string, value *normalize.Result, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	if m.MaxItems > 0 && len(m.items) > m.MaxItems {
		m.evictLocked()
	}
}

func (m *Memory) Invalidate(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// evictLocked drops expired entries first, then arbitrary ones until
// the store fits. Best effort; callers hold the write lock.
func (m *Memory) evictLocked() {
	now := m.now()
	for k, e := range m.items {
		if !now.Before(e.expiresAt) {
			delete(m.items, k)
		}
		if len(m.items) <= m.MaxItems {
			return
		}
	}
	for k := range m.items {
		if len(m.items) <= m.MaxItems {
			return
		}
		delete(m.items, k)
	}
}
