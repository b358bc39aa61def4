package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionLockPrefix = "lock:session:"

// releaseScript deletes the lock only while owner still holds it, so an
// instance whose lock expired cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireSessionLock claims the tracking session for key on behalf of owner.
// Returns true if the lock was acquired, false if another owner holds it.
func (s *LockStore) AcquireSessionLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, sessionLockPrefix+key, owner, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseSessionLock releases the lock if owner still holds it.
func (s *LockStore) ReleaseSessionLock(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, s.client, []string{sessionLockPrefix + key}, owner).Err()
}
