package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestLocalFixedWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLocal(MessageRule(2, 10*time.Second))
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "alice")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if ok != want {
			t.Fatalf("request %d: expected %v, got %v", i+1, want, ok)
		}
	}

	if ok, _ := l.Allow(ctx, "bob"); !ok {
		t.Fatalf("keys must be counted independently")
	}

	now = now.Add(10 * time.Second)
	if ok, _ := l.Allow(ctx, "alice"); !ok {
		t.Fatalf("a new window must reset the counter")
	}
}

func TestLocalSweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLocal(MessageRule(1, time.Second))
	l.now = func() time.Time { return now }

	_, _ = l.Allow(context.Background(), "alice")
	now = now.Add(2 * time.Second)
	l.Sweep()

	if len(l.windows) != 0 {
		t.Fatalf("expected expired windows to be removed, got %d", len(l.windows))
	}
}

func TestLocalDisabled(t *testing.T) {
	l := NewLocal(MessageRule(0, time.Second))
	for range 100 {
		if ok, _ := l.Allow(context.Background(), "alice"); !ok {
			t.Fatalf("zero limit must allow everything")
		}
	}
}

func TestRedisFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	logger := zerolog.Nop()
	l := NewRedis(client, MessageRule(1, time.Second), &logger)

	ok, err := l.Allow(context.Background(), "alice")
	if !ok {
		t.Fatalf("limiter must fail open")
	}
	if err == nil {
		t.Fatalf("expected the redis error to be reported")
	}
}

func TestRedisFixedWindow(t *testing.T) {
	addr := os.Getenv("ROOMCHAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROOMCHAT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	rule := Rule{Key: "roomchat:test:" + t.Name() + ":", Limit: 2, Window: time.Minute}
	t.Cleanup(func() { client.Del(ctx, rule.Key+"alice") })

	logger := zerolog.Nop()
	l := NewRedis(client, rule, &logger)

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "alice")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if ok != want {
			t.Fatalf("request %d: expected %v, got %v", i+1, want, ok)
		}
	}
	ttl, err := client.TTL(ctx, rule.Key+"alice").Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("expected the window key to expire, ttl=%v err=%v", ttl, err)
	}
}
