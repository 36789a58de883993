package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Counter compte les requêtes d'une clé sur une fenêtre fixe.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// RedisCounter implémente Counter avec INCR + EXPIRE NX.
type RedisCounter struct {
	rdb redis.UniversalClient
}

func NewRedisCounter(rdb redis.UniversalClient) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (r *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, errors.Wrap(err, "rate limit")
	}
	return incr.Val(), ttl.Val(), nil
}

// RateLimit limite une route à limit requêtes par IP et par fenêtre.
// Redis indisponible : la requête passe.
func RateLimit(counter Counter, name string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:" + name + ":" + c.ClientIP()
		count, ttl, err := counter.Hit(c.Request.Context(), key, window)
		if err != nil {
			logger.Warn("⚠️ Rate limit indisponible", zap.String("limit", name), zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			if ttl <= 0 {
				ttl = window
			}
			wait := int(math.Ceil(ttl.Seconds()))
			logger.Info("🚫 Requête limitée", zap.String("limit", name), zap.String("ip", c.ClientIP()))
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail":      fmt.Sprintf("Request was throttled. Expected available in %d seconds.", wait),
				"retry_after": wait,
			})
			return
		}
		c.Next()
	}
}
