package lock

import (
	"context"
	"errors"
	"time"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// Unlocker releases a lock obtained from a KeyedLocker.
type Unlocker func(ctx context.Context) error

// KeyedLocker provides mutual exclusion per string key, such as a scheduled post id.
type KeyedLocker interface {
	// Lock blocks until the key is held or ctx is done.
	Lock(ctx context.Context, key string) (Unlocker, error)
}

// retryInterval is the polling step used while waiting on a contended key.
const retryInterval = 25 * time.Millisecond
