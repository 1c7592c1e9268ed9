// Package ratelimit throttles chat messages per nickname with a fixed window
// counter. Redis backs the counter when configured; otherwise an in-process
// map is used.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Rule defines a rate limiting policy: the key prefix, maximum number of
// requests allowed in the window, and the window duration.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

// MessageRule builds the rule applied to chat messages.
func MessageRule(limit int, window time.Duration) Rule {
	return Rule{Key: "roomchat:rl:msg:", Limit: limit, Window: window}
}

// Redis counts requests with INCR and bounds the window with EXPIRE.
type Redis struct {
	client *redis.Client
	rule   Rule
	log    *zerolog.Logger
}

// NewRedis creates a limiter backed by the given Redis client.
func NewRedis(client *redis.Client, rule Rule, logger *zerolog.Logger) *Redis {
	return &Redis{client: client, rule: rule, log: logger}
}

// Allow increments the counter for key. Redis errors fail open: the request is
// allowed and the error is returned for logging.
func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.rule.Key + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("redis incr %s: %w", redisKey, err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.rule.Window).Err(); err != nil {
			// Without a TTL the key would throttle forever.
			if delErr := l.client.Del(ctx, redisKey).Err(); delErr != nil {
				l.log.Warn().Err(delErr).Str("key", redisKey).Msg("failed to delete rate limit key")
			}
			return true, fmt.Errorf("redis expire %s: %w", redisKey, err)
		}
	}

	return int(count) <= l.rule.Limit, nil
}
