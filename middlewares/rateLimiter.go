package middlewares

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// CounterStore is the injected backing store for rate-limit counters. The
// first hit of a key starts its window; Hit returns the running count and the
// time left until the window resets.
type CounterStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, retryAfter time.Duration, err error)
}

// RedisCounterStore counts hits in Redis, safe across server instances.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCounterStore builds a Redis-backed counter store.
func NewRedisCounterStore(client *redis.Client, prefix string) *RedisCounterStore {
	return &RedisCounterStore{client: client, prefix: prefix}
}

func (s *RedisCounterStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	fullKey := s.prefix + ":" + key

	count, err := s.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, 0, err
	}

	// The first increment opens the window.
	if count == 1 {
		if err := s.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return 0, 0, err
		}
	}

	ttl, err := s.client.TTL(ctx, fullKey).Result()
	if err != nil {
		return 0, 0, err
	}
	return count, ttl, nil
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore is an in-process CounterStore with an explicit TTL
// sweep. It backs tests and single-instance deployments without Redis.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCounterStore builds the store and starts its sweep goroutine.
func NewMemoryCounterStore(sweepEvery time.Duration) *MemoryCounterStore {
	s := &MemoryCounterStore{
		counters: map[string]*memoryCounter{},
		stop:     make(chan struct{}),
	}
	go s.sweep(sweepEvery)
	return s
}

func (s *MemoryCounterStore) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, c := range s.counters {
				if now.After(c.expiresAt) {
					delete(s.counters, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Stop terminates the sweep goroutine.
func (s *MemoryCounterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryCounterStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &memoryCounter{expiresAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.expiresAt.Sub(now), nil
}

// RateLimit caps each authenticated user to limit hits per window. It must
// run after RequireAuth.
func RateLimit(store CounterStore, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDVal, _ := c.Get(ctxUserID)
		userID, ok := userIDVal.(string)
		if !ok || userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
			c.Abort()
			return
		}

		count, retryAfter, err := store.Hit(c.Request.Context(), userID, window)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Rate limiter unavailable"})
			c.Abort()
			return
		}

		if count > int64(limit) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       "rate limit exceeded",
				"retry_after": retryAfter.Seconds(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
