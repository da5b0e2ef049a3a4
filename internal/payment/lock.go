package payment

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// captureLockTTL bounds how long a crashed capture can hold its lock.
const captureLockTTL = 2 * time.Minute

// RedisCaptureLock serializes capture attempts per order across processes.
type RedisCaptureLock struct {
	Client *redis.Client
}

func NewRedisCaptureLock(client *redis.Client) *RedisCaptureLock {
	return &RedisCaptureLock{Client: client}
}

// Acquire takes the per-order lock. Returns the owner token to release with,
// and false when another capture holds the lock.
func (l *RedisCaptureLock) Acquire(ctx context.Context, orderID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, "capture_lock:"+orderID, token, captureLockTTL).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release frees the lock if this caller still owns it.
func (l *RedisCaptureLock) Release(ctx context.Context, orderID, token string) error {
	key := "capture_lock:" + orderID
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err = l.Client.Del(ctx, key).Result()
	}
	return err
}
