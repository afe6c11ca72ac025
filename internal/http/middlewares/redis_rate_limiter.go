package middlewares

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter shares one fixed window across API instances using
// INCR + EXPIRE. On redis failure it lets the request through: losing the
// limit briefly beats failing logins while redis restarts.
type RedisRateLimiter struct {
	rdb    *redis.Client
	window time.Duration
	limit  int64
	prefix string
}

func NewRedisRateLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		rdb:    rdb,
		window: window,
		limit:  int64(limit),
		prefix: "ratelimit:",
	}
}

func (rl *RedisRateLimiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			key = clientIP(c)
		}

		rctx := c.Request.Context()
		redisKey := rl.prefix + key

		count, err := rl.rdb.Incr(rctx, redisKey).Result()

		if err != nil {
			slog.Default().WarnContext(rctx, "rate_limiter_redis_error", "err", err)
			c.Next()
			return
		}

		if count == 1 {
			// first hit in this window owns the expiry
			if err := rl.rdb.Expire(rctx, redisKey, rl.window).Err(); err != nil {
				slog.Default().WarnContext(rctx, "rate_limiter_redis_error", "err", err)
			}
		}

		if count > rl.limit {
			ttl, err := rl.rdb.TTL(rctx, redisKey).Result()

			retryAfter := int(rl.window.Seconds())
			if err == nil && ttl > 0 {
				retryAfter = int(ttl.Seconds())
			}

			respondRateLimited(c, retryAfter)
			return
		}

		c.Next()
	}
}
