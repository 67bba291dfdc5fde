package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/safetrip-backend/internal/dto"
	"github.com/ignatzorin/safetrip-backend/internal/logger"
	"github.com/ignatzorin/safetrip-backend/internal/pkg/apperror"
)

// ErrInvalidUUID is returned when UUID parsing fails
var ErrInvalidUUID = errors.New("неверный формат UUID")

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("параметр %s отсутствует", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// BindJSON binds JSON request and returns a validation error on malformed bodies
func BindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело запроса")
	}
	return nil
}

// RespondError sends a standardized error response
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{Error: message})
}

// RespondAppError переводит ошибку сервиса в HTTP-ответ. Внутренние ошибки маскируются.
func RespondAppError(c *gin.Context, err error) {
	appErr, ok := apperror.As(err)
	if !ok || appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Request error")
		RespondInternalError(c, "")
		return
	}
	c.JSON(appErr.HTTPStatus, dto.ErrorResponse{Error: appErr.Message, Field: appErr.Field})
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	RespondError(c, http.StatusBadRequest, message)
}

// RespondInternalError sends a 500 Internal Server Error response
func RespondInternalError(c *gin.Context, message string) {
	if message == "" {
		message = "внутренняя ошибка сервера"
	}
	RespondError(c, http.StatusInternalServerError, message)
}

// ParseIntQuery safely reads an integer query parameter with a fallback value
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetLimit читает ?limit=; ноль означает лимит по умолчанию сервиса.
func GetLimit(c *gin.Context) int {
	limit := ParseIntQuery(c, "limit", 0)
	if limit < 0 {
		return 0
	}
	return limit
}
