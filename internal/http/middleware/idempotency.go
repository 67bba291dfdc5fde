package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"github.com/ignatzorin/safetrip-backend/internal/logger"
	"github.com/ignatzorin/safetrip-backend/internal/pkg/apperror"
)

const IdempotencyHeader = "Idempotency-Key"

// IdempotencyMiddleware отклоняет повтор запроса с тем же Idempotency-Key в течение ttl.
// Ключ освобождается, если исходный запрос завершился ошибкой или паникой, чтобы клиент мог повторить.
func IdempotencyMiddleware(ttl time.Duration) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	seen := cache.New(ttl, 2*ttl)

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		key = c.FullPath() + "|" + key

		// Add атомарен: второй конкурентный запрос с тем же ключом получит ошибку.
		if err := seen.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
			logger.Log.WithField("path", c.FullPath()).Info("idempotency: повторный запрос отклонён")
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": apperror.ErrDuplicate.Message})
			return
		}

		completed := false
		defer func() {
			// При панике статус ещё не записан, Recovery выше по цепочке ответит 500.
			if !completed || c.Writer.Status() >= http.StatusBadRequest {
				seen.Delete(key)
			}
		}()

		c.Next()
		completed = true
	}
}
