package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// StartLocker serializes admission cycles: only one start() may be reserving
// quota for a given campaign at a time.
type StartLocker interface {
	Acquire(ctx context.Context, campaignID string) (bool, error)
	Release(ctx context.Context, campaignID string) error
}

const startLockTTL = 60 * time.Second

// RedisStartLock implements StartLocker with SET NX EX. The TTL bounds how
// long a crashed admission can hold the lock.
type RedisStartLock struct {
	Client *redis.Client
}

func (l *RedisStartLock) key(campaignID string) string {
	return "campaign:start:" + campaignID
}

func (l *RedisStartLock) Acquire(ctx context.Context, campaignID string) (bool, error) {
	return l.Client.SetNX(ctx, l.key(campaignID), "1", startLockTTL).Result()
}

func (l *RedisStartLock) Release(ctx context.Context, campaignID string) error {
	return l.Client.Del(ctx, l.key(campaignID)).Err()
}

var _ StartLocker = (*RedisStartLock)(nil)
