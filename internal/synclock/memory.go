package synclock

import (
	"context"
	"sync"
	"time"

	"github.com/sinergia/backend/internal/adapter"
	"github.com/sinergia/backend/internal/model"
)

// MemoryLocker implements Locker in-process, for a single server or tests.
type MemoryLocker struct {
	locks map[string]*model.SyncLock
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryLocker creates a MemoryLocker, with DefaultTTL unless WithTTL is given.
func NewMemoryLocker(opts ...Option) *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]*model.SyncLock),
		ttl:   applyOptions(opts).ttl,
		now:   time.Now,
	}
}

func (m *MemoryLocker) Acquire(_ context.Context, scopeKey, owner string) (*model.SyncLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().Unix()
	if existing, ok := m.locks[scopeKey]; ok {
		if existing.ExpiresAt > now && existing.Owner != owner {
			return nil, adapter.ErrLocked
		}
	}

	lock := &model.SyncLock{
		ScopeKey:  scopeKey,
		Owner:     owner,
		ExpiresAt: now + int64(m.ttl.Seconds()),
	}
	m.locks[scopeKey] = lock
	copied := *lock
	return &copied, nil
}

func (m *MemoryLocker) Release(_ context.Context, scopeKey, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.locks[scopeKey]; ok && existing.Owner == owner {
		delete(m.locks, scopeKey)
	}
	return nil
}
