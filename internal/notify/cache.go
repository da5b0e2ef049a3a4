package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// unreadTTL keeps stale counters from lingering for inactive users.
const unreadTTL = 24 * time.Hour

// UnreadCache is the counter layer in front of the notifications table.
type UnreadCache interface {
	Increment(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (count int, ok bool, err error)
	Set(ctx context.Context, userID string, count int) error
	Reset(ctx context.Context, userID string) error
}

// RedisUnreadCache keeps per-user unread counts in Redis so the badge read
// path skips the database.
type RedisUnreadCache struct {
	Client *redis.Client
}

func NewRedisUnreadCache(client *redis.Client) *RedisUnreadCache {
	return &RedisUnreadCache{Client: client}
}

func unreadKey(userID string) string {
	return "unread_count:" + userID
}

func (c *RedisUnreadCache) Increment(ctx context.Context, userID string) error {
	key := unreadKey(userID)
	if err := c.Client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return c.Client.Expire(ctx, key, unreadTTL).Err()
}

func (c *RedisUnreadCache) Get(ctx context.Context, userID string) (int, bool, error) {
	val, err := c.Client.Get(ctx, unreadKey(userID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

func (c *RedisUnreadCache) Set(ctx context.Context, userID string, count int) error {
	return c.Client.Set(ctx, unreadKey(userID), count, unreadTTL).Err()
}

func (c *RedisUnreadCache) Reset(ctx context.Context, userID string) error {
	return c.Client.Set(ctx, unreadKey(userID), 0, unreadTTL).Err()
}
