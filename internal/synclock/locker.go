// Package synclock serializes syncs of the same scope with expiring leases.
package synclock

import (
	"context"
	"time"

	"github.com/sinergia/backend/internal/model"
)

// DefaultTTL bounds how long a crashed sync can block its scope.
const DefaultTTL = 2 * time.Minute

const (
	// backoffSlack covers the wait before each retried attempt.
	backoffSlack = 5 * time.Second
	// writeAllowance covers the row store replace after the read.
	writeAllowance = time.Minute
)

// LeaseFor sizes a lease to outlast the slowest sync: a token exchange and a
// Sheets read, each making maxRetries+1 attempts of attemptTimeout, plus
// backoff and the store write. Leases are not renewed while a sync runs.
// The result is never below DefaultTTL.
func LeaseFor(attemptTimeout time.Duration, maxRetries int) time.Duration {
	attempts := time.Duration(max(maxRetries, 0) + 1)
	worst := 2*attempts*(attemptTimeout+backoffSlack) + writeAllowance
	return max(worst, DefaultTTL)
}

// Option configures a Locker.
type Option func(*settings)

type settings struct {
	ttl time.Duration
}

// WithTTL sets the lease duration. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func applyOptions(opts []Option) settings {
	s := settings{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Locker leases scopes to a single sync at a time.
type Locker interface {
	// Acquire leases scopeKey to owner. It fails with adapter.ErrLocked while
	// another owner holds an unexpired lease.
	Acquire(ctx context.Context, scopeKey, owner string) (*model.SyncLock, error)

	// Release drops the lease if owner still holds it.
	Release(ctx context.Context, scopeKey, owner string) error
}
