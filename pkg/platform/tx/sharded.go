package tx

import (
	"context"
	"sync"
	"time"

	dErrors "dealerhub/pkg/domain-errors"
)

// numShards spreads per-key locking over a fixed set of mutexes so unrelated
// keys rarely contend.
const numShards = 128

// DefaultTimeout bounds a keyed transaction when the caller set no deadline.
const DefaultTimeout = 5 * time.Second

// ShardedLocker serializes work per key for in-memory stores. Two calls with
// the same key never run concurrently.
type ShardedLocker struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewShardedLocker creates a locker; timeout <= 0 uses DefaultTimeout.
func NewShardedLocker(timeout time.Duration) *ShardedLocker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ShardedLocker{timeout: timeout}
}

// Run executes fn while holding the shard lock for key.
func (l *ShardedLocker) Run(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	shard := &l.shards[shardFor(key)]
	shard.Lock()
	defer shard.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

// shardFor hashes key with FNV-1a.
func shardFor(key string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= fnvPrime
	}
	return h % numShards
}
