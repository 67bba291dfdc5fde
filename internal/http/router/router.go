package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/safetrip-backend/internal/config"
	"github.com/ignatzorin/safetrip-backend/internal/http/handlers"
	"github.com/ignatzorin/safetrip-backend/internal/http/middleware"
	"github.com/ignatzorin/safetrip-backend/internal/service"
)

// Handlers набор обработчиков, которые монтирует роутер.
type Handlers struct {
	Alerts  *handlers.AlertHandler
	Reports *handlers.ReportHandler
	Auth    *handlers.AuthHandler
	Stream  *handlers.WSHandler
	Health  *handlers.HealthHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Маршруты туристов: без авторизации, с лимитом и защитой от повторной отправки.
	submit := api.Group("/")
	submit.Use(
		middleware.RateLimitMiddleware("submit", cfg.RateLimitLimit, cfg.RateLimitPeriod),
		middleware.IdempotencyMiddleware(cfg.IdempotencyTTL),
	)
	{
		submit.POST("/alerts", h.Alerts.SubmitAlert)
		submit.POST("/reports", h.Reports.SubmitReport)
	}

	api.GET("/alerts/user/:userId", h.Alerts.ListUserAlerts)
	api.GET("/reports/user/:userId", h.Reports.ListUserReports)

	// Маршруты властей
	authority := api.Group("/")
	authority.Use(middleware.AdminKeyMiddleware(cfg.AdminAPIKey))
	{
		authority.GET("/alerts", h.Alerts.ListAlerts)
		authority.PATCH("/alerts/:id/resolve", middleware.UUIDValidator("id"), h.Alerts.ResolveAlert)
		authority.POST("/alerts/:id/efir", middleware.UUIDValidator("id"), h.Alerts.GenerateEFIR)
		authority.GET("/reports", h.Reports.ListReports)
		authority.GET("/heatmap", h.Alerts.Heatmap)
		authority.POST("/auth/token",
			middleware.RateLimitMiddleware("auth", 10, cfg.RateLimitPeriod),
			h.Auth.IssueStreamToken)
	}

	streams := api.Group("/")
	streams.Use(middleware.StreamAuthMiddleware(cfg.AdminAPIKey, tokens))
	{
		streams.GET("/ws", h.Stream.Handle)
		streams.GET("/events", h.Stream.Events)
	}

	return r
}
