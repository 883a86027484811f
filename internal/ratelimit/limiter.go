// Package ratelimit provides Redis-backed fixed-window rate limiting using
// INCR + EXPIRE. The API uses it to throttle administrative run triggers and
// per-client query traffic.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Rule defines a rate limiting policy: the Redis key prefix, maximum number of
// requests allowed in the window, and the window duration.
type Rule struct {
	Key    string        // Redis key prefix (e.g., "rl:run:")
	Limit  int           // max count in the window
	Window time.Duration // time window
}

var (
	// RuleMatchingRun allows 5 reconciliation triggers per minute per client.
	RuleMatchingRun = Rule{Key: "portal:rl:run:", Limit: 5, Window: time.Minute}

	// RuleInternshipQuery allows 60 matched-internship lookups per minute per
	// client.
	RuleInternshipQuery = Rule{Key: "portal:rl:internships:", Limit: 60, Window: time.Minute}
)

// Limiter performs rate limiting checks against Redis.
type Limiter struct {
	client *redis.Client
	logger *zap.Logger
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(client *redis.Client, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{client: client, logger: logger.With(zap.String("component", "ratelimit"))}
}

// Allow checks whether the given identifier is within the rate limit defined by
// rule. It increments the counter in Redis and sets the expiry on first access.
//
// On Redis errors the method fails open (returns true) so that a Redis outage
// does not block legitimate traffic; the error is still returned.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("INCR failed, failing open", zap.String("key", key), zap.Error(err))
		return true, err
	}

	// On the first increment, set the expiry to define the window boundary.
	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			l.logger.Warn("EXPIRE failed, failing open", zap.String("key", key), zap.Error(err))
			// A key without TTL would block the identifier forever.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}

// Remaining returns the number of requests the identifier has left in the
// current window for the given rule. Returns the full limit if the key does not
// exist yet, and on Redis errors.
func (l *Limiter) Remaining(ctx context.Context, identifier string, rule Rule) (int, error) {
	key := rule.Key + identifier

	count, err := l.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return rule.Limit, nil
	}
	if err != nil {
		return rule.Limit, err
	}

	return max(rule.Limit-count, 0), nil
}
