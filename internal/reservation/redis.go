package reservation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisAcquireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
redis.call("EXPIRE", KEYS[1], ARGV[2])
if current > tonumber(ARGV[1]) then
  redis.call("DECR", KEYS[1])
  return -current
end
return current
`)

var redisReleaseScript = redis.NewScript(`
local current = redis.call("DECR", KEYS[1])
if current <= 0 then
  redis.call("DEL", KEYS[1])
end
return current
`)

// RedisLimiter tracks in-flight counts across processes in Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string, ttl time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
		ttl:    ttl,
	}
}

// Acquire atomically increments the key's counter when it stays within limit.
func (l *RedisLimiter) Acquire(ctx context.Context, key string, limit int, _ time.Time) (Result, error) {
	if key == "" || limit < 0 || l == nil || l.client == nil {
		return Result{Allowed: true}, nil
	}
	ttlSeconds := int64(l.ttl / time.Second)
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}
	res, errEval := redisAcquireScript.Run(ctx, l.client, []string{l.buildKey(key)}, limit, ttlSeconds).Int64()
	if errEval != nil {
		return Result{}, errEval
	}
	if res < 0 {
		return Result{Allowed: false, InFlight: int(-res) - 1}, nil
	}
	if res == 0 {
		return Result{}, errors.New("reservation redis: unexpected zero counter")
	}
	return Result{Allowed: true, InFlight: int(res)}, nil
}

// Release decrements the key's counter.
func (l *RedisLimiter) Release(ctx context.Context, key string) error {
	if key == "" || l == nil || l.client == nil {
		return nil
	}
	return redisReleaseScript.Run(ctx, l.client, []string{l.buildKey(key)}).Err()
}

func (l *RedisLimiter) buildKey(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}
