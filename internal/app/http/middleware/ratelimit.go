package middleware

import (
	"context"
	"net/http"
	"strconv"

	"donation-ledger/internal/infra/redis"
	"donation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Limiter interface {
	Allow(ctx context.Context, scope, subject string) (*redis.RateLimitResult, error)
}

// RateLimitMiddleware limits each caller, by user id when authenticated and by client IP
// otherwise. When the limiter itself fails the request is let through.
func RateLimitMiddleware(limiter Limiter, scope string, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if id, ok := CurrentIdentity(c); ok {
			subject = "user:" + id.UserID
		}

		result, err := limiter.Allow(c.Request.Context(), scope, subject)
		if err != nil {
			l.WithContext(c.Request.Context()).Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please retry later"})
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
