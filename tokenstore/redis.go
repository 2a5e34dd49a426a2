package tokenstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	accessKeySuffix  = "access"
	refreshKeySuffix = "refresh"

	defaultRedisTimeout = 2 * time.Second
)

// Redis persists the credential pair as two string keys under a common
// prefix. Suitable when several workers share one session (e.g. a daemon
// fleet talking to the same backend account).
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  Logger
}

// RedisOption is a functional option for configuring a Redis store.
type RedisOption func(*Redis)

// WithRedisTTL sets an expiration on both keys. Zero (the default) means
// the keys live until cleared.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithRedisTimeout bounds each storage operation. Default is 2 seconds.
func WithRedisTimeout(timeout time.Duration) RedisOption {
	return func(r *Redis) {
		r.timeout = timeout
	}
}

// WithRedisLogger sets a logger for storage failures.
func WithRedisLogger(logger Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

// NewRedis creates a Redis-backed store. Keys are "<prefix>:access" and
// "<prefix>:refresh". An unreachable Redis reads as "no credentials" and
// write failures are swallowed, per the Store contract.
func NewRedis(client redis.UniversalClient, prefix string, opts ...RedisOption) *Redis {
	r := &Redis{
		client:  client,
		prefix:  prefix,
		timeout: defaultRedisTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read loads both keys. Absence of either key is a normal logged-out state.
func (r *Redis) Read() Pair {
	ctx, cancel := r.opContext()
	defer cancel()

	values, err := r.client.MGet(ctx, r.key(accessKeySuffix), r.key(refreshKeySuffix)).Result()
	if err != nil {
		r.logf("tokenstore: redis read: %v", err)
		return Pair{}
	}

	var pair Pair
	if s, ok := values[0].(string); ok {
		pair.AccessToken = s
	}
	if s, ok := values[1].(string); ok {
		pair.RefreshToken = s
	}
	return pair
}

// Write persists both keys atomically via a pipeline.
func (r *Redis) Write(pair Pair) {
	ctx, cancel := r.opContext()
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(accessKeySuffix), pair.AccessToken, r.ttl)
	pipe.Set(ctx, r.key(refreshKeySuffix), pair.RefreshToken, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logf("tokenstore: redis write: %v", err)
	}
}

// Clear deletes both keys.
func (r *Redis) Clear() {
	ctx, cancel := r.opContext()
	defer cancel()

	if err := r.client.Del(ctx, r.key(accessKeySuffix), r.key(refreshKeySuffix)).Err(); err != nil {
		r.logf("tokenstore: redis clear: %v", err)
	}
}

func (r *Redis) key(suffix string) string {
	return r.prefix + ":" + suffix
}

func (r *Redis) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *Redis) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
