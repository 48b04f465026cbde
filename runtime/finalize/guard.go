package finalize

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultGuardTTL    = 30 * time.Minute
	defaultGuardPrefix = "interviewkit"
)

// Guard is a cross-process finalization lock. The in-memory flag on
// interview.Session already serializes callers within one process; a Guard
// extends that across replicas that may observe the same session.
type Guard interface {
	// Acquire reports whether the caller now owns finalization of sessionID.
	Acquire(ctx context.Context, sessionID string) (bool, error)
	// Release gives ownership back so a later attempt can proceed.
	Release(ctx context.Context, sessionID string) error
}

// RedisGuard implements Guard with SET NX.
type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// RedisGuardOption configures a RedisGuard.
type RedisGuardOption func(*RedisGuard)

// WithGuardTTL sets how long an unreleased guard survives a crashed owner.
// Default is 30 minutes.
func WithGuardTTL(ttl time.Duration) RedisGuardOption {
	return func(g *RedisGuard) {
		g.ttl = ttl
	}
}

// WithGuardPrefix sets the key prefix. Default is "interviewkit".
func WithGuardPrefix(prefix string) RedisGuardOption {
	return func(g *RedisGuard) {
		g.prefix = prefix
	}
}

// NewRedisGuard creates a Redis-backed guard.
//
// Example:
//
//	guard := NewRedisGuard(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithGuardTTL(time.Hour),
//	)
func NewRedisGuard(client redis.UniversalClient, opts ...RedisGuardOption) *RedisGuard {
	g := &RedisGuard{
		client: client,
		ttl:    defaultGuardTTL,
		prefix: defaultGuardPrefix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire sets the guard key if it is not already set.
func (g *RedisGuard) Acquire(ctx context.Context, sessionID string) (bool, error) {
	return g.client.SetNX(ctx, g.key(sessionID), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
}

// Release deletes the guard key.
func (g *RedisGuard) Release(ctx context.Context, sessionID string) error {
	return g.client.Del(ctx, g.key(sessionID)).Err()
}

func (g *RedisGuard) key(sessionID string) string {
	return g.prefix + ":finalize:" + sessionID
}
