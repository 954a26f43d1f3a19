package middleware

import (
	"context"
	"sync"
	"time"
)

type windowCount struct {
	count   int64
	expires time.Time
}

// MemoryRateStore is a process-local fixed-window counter used when no Redis
// is configured. Expired windows are swept lazily on increment.
type MemoryRateStore struct {
	mu     sync.Mutex
	now    func() time.Time
	counts map[string]windowCount
}

func NewMemoryRateStore(now func() time.Time) *MemoryRateStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryRateStore{now: now, counts: map[string]windowCount{}}
}

func (m *MemoryRateStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, wc := range m.counts {
		if !now.Before(wc.expires) {
			delete(m.counts, k)
		}
	}

	wc, ok := m.counts[key]
	if !ok {
		wc = windowCount{expires: now.Add(ttl)}
	}
	wc.count++
	m.counts[key] = wc
	return wc.count, nil
}
