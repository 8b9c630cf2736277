package ratelimit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a request identified by a key (usually the client
// IP) may proceed. Handlers receive a Limiter rather than constructing one,
// so tests can inject a deterministic implementation.
type Limiter interface {
	Allow(key string) bool
}

// Memory is an in-process sliding-window limiter. Each key keeps the
// timestamps of its recent requests; entries older than the window are
// dropped on every check.
type Memory struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewMemory creates a sliding-window limiter allowing limit requests per
// window and key.
func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{
		attempts: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (m *Memory) Allow(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)

	valid := m.attempts[key][:0]
	for _, t := range m.attempts[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= m.limit {
		m.attempts[key] = valid
		return false
	}

	m.attempts[key] = append(valid, now)
	return true
}

// Redis is a fixed-window limiter backed by a shared Redis instance, for
// deployments with more than one app process. The counter key expires with
// the window, so a Redis restart only resets counts.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedis creates a Redis-backed limiter. Keys are namespaced with prefix.
func NewRedis(client *redis.Client, prefix string, limit int, window time.Duration) *Redis {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow fails open: when Redis is unreachable the request proceeds, because
// dropping traffic on a cache outage is worse than briefly losing the limit.
func (r *Redis) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	redisKey := fmt.Sprintf("ratelimit:%s:%s", r.prefix, key)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		log.Printf("[RateLimit] redis error, allowing request: %v", err)
		return true
	}
	if count == 1 {
		r.client.Expire(ctx, redisKey, r.window)
	}
	return count <= int64(r.limit)
}
