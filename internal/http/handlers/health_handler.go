package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/safetrip-backend/internal/repository"
	"github.com/ignatzorin/safetrip-backend/internal/ws"
)

// HealthHandler предоставляет endpoint для проверки здоровья сервиса.
type HealthHandler struct {
	store  repository.AlertStore
	hub    *ws.Hub
	driver string
}

// NewHealthHandler создаёт новый health handler.
func NewHealthHandler(store repository.AlertStore, hub *ws.Hub, driver string) *HealthHandler {
	return &HealthHandler{store: store, hub: hub, driver: driver}
}

// HealthResponse представляет ответ health check.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Checks      map[string]string `json:"checks"`
	Subscribers int               `json:"subscribers"`
}

// Health обрабатывает GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := map[string]string{"store_driver": h.driver}
	status := "healthy"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		checks["store"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		checks["store"] = "healthy"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Checks:      checks,
		Subscribers: h.hub.ClientCount(),
	})
}
