package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// sweepLockKey is the Redis key guarding the auto-regeneration sweep across
// scheduler instances
const sweepLockKey = "fieldops:sweep_lock"

// DistributedLock is a Redis-based lock ensuring only one scheduler instance
// runs the sweep at a time. Release and Extend are token-checked so an
// instance can never release a lock it lost to TTL expiry.
type DistributedLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// AcquireLock attempts to acquire the lock via SETNX. Returns nil (and no
// error) when another instance already holds it.
func AcquireLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*DistributedLock, error) {
	token := uuid.New().String()

	acquired, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return nil, nil
	}

	return &DistributedLock{client: client, key: key, token: token, ttl: ttl}, nil
}

// Release deletes the lock if this instance still owns it
func (l *DistributedLock) Release(ctx context.Context) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.token).Result()
	return err
}

// Extend pushes out the lock TTL for a long-running sweep. Errors when the
// lock is no longer owned by this instance.
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.token, ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("lock no longer owned by this instance")
	}
	l.ttl = ttl
	return nil
}

// Token returns the lock token
func (l *DistributedLock) Token() string {
	return l.token
}
