package lock

import "context"

// DistributedLockManager guards process-wide critical sections (migrations, cleanup) by numeric id.
type DistributedLockManager interface {
	Acquire(ctx context.Context, lockID int) error
	// TryAcquire returns false immediately when another session holds the lock.
	TryAcquire(ctx context.Context, lockID int) (bool, error)
	Release(ctx context.Context, lockID int) error
}
