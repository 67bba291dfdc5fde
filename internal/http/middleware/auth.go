package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/safetrip-backend/internal/pkg/apperror"
	"github.com/ignatzorin/safetrip-backend/internal/service"
)

// Заголовки и ключи контекста авторизации властей.
const (
	AdminKeyHeader    = "X-Admin-Key"
	ContextSubjectKey = "subject"

	adminSubject = "admin-key"
)

// SecretsMatch сравнивает секреты за постоянное время. Пустой настроенный секрет не совпадает ни с чем.
func SecretsMatch(configured, presented string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

// AdminKeyMiddleware пропускает только запросы с правильным X-Admin-Key.
// Проверка выполняется до любого обращения к хранилищу.
func AdminKeyMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !SecretsMatch(secret, c.GetHeader(AdminKeyHeader)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperror.ErrUnauthorized.Message})
			return
		}
		c.Set(ContextSubjectKey, adminSubject)
		c.Next()
	}
}

// StreamAuthMiddleware проверяет доступ к потокам событий: токен из ?token= или
// заголовка Authorization: Bearer, либо X-Admin-Key.
func StreamAuthMiddleware(secret string, tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if SecretsMatch(secret, c.GetHeader(AdminKeyHeader)) {
			c.Set(ContextSubjectKey, adminSubject)
			c.Next()
			return
		}

		raw := c.Query("token")
		if raw == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен потока обязателен"})
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен невалиден"})
			return
		}

		c.Set(ContextSubjectKey, claims.Subject)
		c.Next()
	}
}

// CurrentSubject возвращает имя авторизованной сессии властей.
func CurrentSubject(c *gin.Context) string {
	return c.GetString(ContextSubjectKey)
}
