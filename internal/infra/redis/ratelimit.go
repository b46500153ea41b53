package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key pattern:
// - ratelimit:{scope}:{subject}:{window} - fixed window counter

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

// RateLimiter is a fixed-window counter shared by every instance of the service.
type RateLimiter struct {
	client *goredis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(client *goredis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, now: time.Now}
}

func (r *RateLimiter) Allow(ctx context.Context, scope, subject string) (*RateLimitResult, error) {
	now := r.now()
	bucket := now.UnixNano() / int64(r.window)
	key := fmt.Sprintf("ratelimit:%s:%s:%d", scope, subject, bucket)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := int(incr.Val())
	resetIn := time.Duration((bucket+1)*int64(r.window) - now.UnixNano())
	remaining := r.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitResult{
		Allowed:   count <= r.limit,
		Remaining: remaining,
		ResetIn:   resetIn,
		Limit:     r.limit,
	}, nil
}
