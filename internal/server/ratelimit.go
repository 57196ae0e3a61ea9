package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// ConnectRedis creates a Redis client and verifies the connection with a ping.
func ConnectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", addr)
	return client, nil
}

// RedisLimiter is a fixed-window counter shared by every replica.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter allows limit requests per key per window.
func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "podium:ratelimit:"}
}

// Allow increments the key's counter for the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return incr.Val() <= int64(l.limit), nil
}

// limiterEntry tracks request timestamps for a single client.
type limiterEntry struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// MemoryLimiter is a per-process sliding window limiter.
type MemoryLimiter struct {
	mu      sync.RWMutex
	clients map[string]*limiterEntry
	limit   int
	window  time.Duration
	now     func() time.Time
	stopCh  chan struct{}
	stop    sync.Once
}

// NewMemoryLimiter allows limit requests per key in any window-long span.
// It starts a background goroutine that drops idle keys; call Stop to end it.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		clients: make(map[string]*limiterEntry),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-l.stopCh:
				return
			}
		}
	}()

	return l
}

// Stop terminates the background cleanup goroutine.
func (l *MemoryLimiter) Stop() {
	l.stop.Do(func() { close(l.stopCh) })
}

// Allow records a request for key if it is within the limit.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.RLock()
	entry, exists := l.clients[key]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		entry, exists = l.clients[key]
		if !exists {
			entry = &limiterEntry{}
			l.clients[key] = entry
		}
		l.mu.Unlock()
	}

	now := l.now()
	cutoff := now.Add(-l.window)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	valid := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) >= l.limit {
		return false, nil
	}
	entry.timestamps = append(entry.timestamps, now)
	return true, nil
}

// cleanup removes entries with no recent activity.
func (l *MemoryLimiter) cleanup() {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entry := range l.clients {
		entry.mu.Lock()
		recent := false
		for _, ts := range entry.timestamps {
			if ts.After(cutoff) {
				recent = true
				break
			}
		}
		entry.mu.Unlock()

		if !recent {
			delete(l.clients, key)
		}
	}
}
