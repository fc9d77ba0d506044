// Package cache keeps velocity baselines and the cross-process run lock in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trendpulse/internal/config"
	"trendpulse/internal/logger"
)

const (
	defaultPrefix  = "trendpulse:"
	defaultLockTTL = 30 * time.Minute
	baselineTTL    = 30 * 24 * time.Hour

	// Smoothing factor of the rolling baseline.
	alpha = 0.2
)

// Client wraps the Redis client
type Client struct {
	rdb     *redis.Client
	prefix  string
	lockTTL time.Duration
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg config.Redis) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return Wrap(rdb, cfg), nil
}

// Wrap builds a Client around an existing connection
func Wrap(rdb *redis.Client, cfg config.Redis) *Client {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	lockTTL := defaultLockTTL
	if d, err := time.ParseDuration(cfg.LockTTL); err == nil && d > 0 {
		lockTTL = d
	}
	return &Client{rdb: rdb, prefix: prefix, lockTTL: lockTTL}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Baselines returns the baseline cache backed by this client
func (c *Client) Baselines() *Baselines {
	return &Baselines{client: c}
}

// RunLock returns the distributed lock guarding pipeline runs
func (c *Client) RunLock(name string) *RunLock {
	return &RunLock{client: c, key: c.prefix + "lock:" + name, ttl: c.lockTTL}
}

// BaselineKey returns the Redis key holding a market/topic baseline.
func (c *Client) BaselineKey(market, topic string) string {
	return c.prefix + "baseline:" + strings.ToUpper(market) + ":" + topic
}

// Baselines stores a rolling magnitude baseline per market and topic
type Baselines struct {
	client *Client
}

// Baseline returns the cached baseline, zero when none is stored.
func (b *Baselines) Baseline(ctx context.Context, market, topic string) (float64, error) {
	raw, err := b.client.rdb.Get(ctx, b.client.BaselineKey(market, topic)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read baseline: %w", err)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt baseline %q: %w", raw, err)
	}
	return value, nil
}

// Update folds a new magnitude into the rolling baseline and returns it.
func (b *Baselines) Update(ctx context.Context, market, topic string, magnitude float64) (float64, error) {
	current, err := b.Baseline(ctx, market, topic)
	if err != nil {
		return 0, err
	}
	next := Blend(current, magnitude)
	key := b.client.BaselineKey(market, topic)
	if err := b.client.rdb.Set(ctx, key, strconv.FormatFloat(next, 'f', -1, 64), baselineTTL).Err(); err != nil {
		return 0, fmt.Errorf("failed to write baseline: %w", err)
	}
	return next, nil
}

// Blend returns the exponentially smoothed baseline. A zero current value
// is replaced by the magnitude.
func Blend(current, magnitude float64) float64 {
	if current <= 0 {
		return magnitude
	}
	return (1-alpha)*current + alpha*magnitude
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a SETNX lock with an owner token
type RunLock struct {
	client *Client
	key    string
	ttl    time.Duration
	token  string
}

// Acquire takes the lock. It reports false when another process holds it.
func (l *RunLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if ok {
		l.token = token
		logger.Debug("Acquired run lock", "key", l.key)
	}
	return ok, nil
}

// Release frees the lock if this process still owns it.
func (l *RunLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if err := releaseScript.Run(ctx, l.client.rdb, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}
