package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/safetrip-backend/internal/dto"
	"github.com/ignatzorin/safetrip-backend/internal/logger"
	"github.com/ignatzorin/safetrip-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки, оставленные обработчиками в c.Errors.
// Маскирует внутренние ошибки и возвращает понятные сообщения клиенту.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Request error")

		if appErr, ok := apperror.As(err.Err); ok && appErr.HTTPStatus < http.StatusInternalServerError {
			c.JSON(appErr.HTTPStatus, dto.ErrorResponse{Error: appErr.Message, Field: appErr.Field})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "внутренняя ошибка сервера"})
	}
}

// Recovery перехватывает панику обработчика и отвечает 500 в общем формате.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(logger.Log.WriterLevel(logrus.ErrorLevel), func(c *gin.Context, recovered any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "внутренняя ошибка сервера"})
	})
}
