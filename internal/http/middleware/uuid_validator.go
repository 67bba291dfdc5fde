package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: api.PATCH("/alerts/:id/resolve", UUIDValidator("id"), handler.Resolve)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param(paramName)); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "параметр " + paramName + " должен быть валидным UUID",
				"field": paramName,
			})
			return
		}
		c.Next()
	}
}
