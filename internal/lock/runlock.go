// Package lock provides the Redis-backed lock that keeps matching runs from
// overlapping across API and worker processes.
//
//	Key:   portal:lock:matching
//	Value: <run token>
//	TTL:   lock lifetime
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis key guarding reconciliation runs.
const DefaultKey = "portal:lock:matching"

// ErrNotHeld is returned by Release when the lock is owned by another token or
// has expired.
var ErrNotHeld = errors.New("lock: not held")

// releaseScript deletes the key only when it still holds the caller's token,
// so an expired lock taken over by another run is never released by the
// previous owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a single-key mutual exclusion lock with a TTL.
type RunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRunLock creates a lock on key. The TTL bounds how long a crashed holder
// can block other runs.
func NewRunLock(client *redis.Client, key string, ttl time.Duration) *RunLock {
	if key == "" {
		key = DefaultKey
	}
	return &RunLock{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock for token. It returns false without error when the
// lock is held by someone else.
func (l *RunLock) Acquire(ctx context.Context, token string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release frees the lock if token still owns it.
func (l *RunLock) Release(ctx context.Context, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Holder returns the token currently holding the lock and its remaining TTL.
// An empty token means the lock is free.
func (l *RunLock) Holder(ctx context.Context) (string, time.Duration, error) {
	token, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	ttl, err := l.client.TTL(ctx, l.key).Result()
	if err != nil {
		// The lock exists; report it held even without a TTL.
		return token, 0, nil
	}
	return token, max(ttl, 0), nil
}
