package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/safetrip-backend/internal/logger"
)

// RateLimitMiddleware создаёт middleware для ограничения количества запросов с одного IP.
// name разделяет счётчики разных групп маршрутов.
func RateLimitMiddleware(name string, limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = 1 * time.Minute
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "safetrip:" + name,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	})
	instance := limiter.New(store, rate)

	return func(c *gin.Context) {
		lctx, err := instance.Get(c, c.ClientIP())
		if err != nil {
			// Сбой лимитера не должен блокировать сигнал SOS.
			logger.Log.WithError(err).Warn("rate limit: счётчик недоступен")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", lctx.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", lctx.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", lctx.Reset))

		if lctx.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "слишком много запросов, попробуйте позже",
			})
			return
		}

		c.Next()
	}
}
