package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a previously acquired lock.
type UnlockFunc func(ctx context.Context) error

// SessionLocker serializes transitions for one session across replicas.
// The in-process tracker already serializes per session; a distributed
// locker extends that guarantee to deployments sharing one session store.
type SessionLocker interface {
	// Lock blocks until the session lock is acquired or ctx is done. The
	// lock expires after ttl if not released.
	Lock(ctx context.Context, sessionID string, ttl time.Duration) (UnlockFunc, error)
}
