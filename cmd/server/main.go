package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/safetrip-backend/internal/config"
	"github.com/ignatzorin/safetrip-backend/internal/db"
	"github.com/ignatzorin/safetrip-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/safetrip-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/safetrip-backend/internal/http/router"
	"github.com/ignatzorin/safetrip-backend/internal/logger"
	"github.com/ignatzorin/safetrip-backend/internal/repository"
	"github.com/ignatzorin/safetrip-backend/internal/scheduler"
	"github.com/ignatzorin/safetrip-backend/internal/service"
	"github.com/ignatzorin/safetrip-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}
	if rotator := logger.SetFileOutput(logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}); rotator != nil {
		defer safeClose("лог-файл", rotator)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("main: ошибка подключения к хранилищу: %v", err)
	}
	defer safeClose("хранилище", store)

	// Хаб живёт до сигнала остановки и закрывает подписчиков сам.
	hub := ws.NewHub()
	go hub.Run(ctx)

	var publisher ws.Publisher = hub
	if cfg.RedisURL != "" {
		rdb, err := db.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("main: ошибка подключения к redis: %v", err)
		}
		defer safeClose("redis", rdb)

		relay := ws.NewRedisRelay(rdb, hub)
		publisher = relay
		goroutine.SafeGoWithContext(ctx, "redis-relay", relay.Run)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.StreamTokenTTL)
	alertService := service.NewAlertService(store, publisher, cfg.WriteTimeout, cfg.ListLimit)
	cache := service.NewCacheService(cfg.HeatmapCacheTTL)
	alertService.SetCache(cache)

	retention := service.NewRetentionService(store, cfg.AlertRetention, cfg.ReportRetention)
	if retention.Enabled() {
		jobs := scheduler.NewCron(time.UTC)
		if _, err := jobs.Add("retention", cfg.RetentionCron, func(ctx context.Context) error {
			res, err := retention.Purge(ctx)
			if err != nil {
				return err
			}
			cache.InvalidateHeatmap()
			logger.Log.WithFields(logrus.Fields{"alerts": res.Alerts, "reports": res.Reports}).Info("main: очистка завершена")
			return nil
		}); err != nil {
			log.Fatalf("main: некорректное расписание очистки: %v", err)
		}
		jobs.Start()
		defer jobs.Stop()
	}

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Alerts:  httpHandlers.NewAlertHandler(alertService),
		Reports: httpHandlers.NewReportHandler(alertService),
		Auth:    httpHandlers.NewAuthHandler(tokenManager),
		Stream:  httpHandlers.NewWSHandler(hub, cfg.AllowedOrigins),
		Health:  httpHandlers.NewHealthHandler(store, hub, cfg.StoreDriver),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	logger.Log.WithFields(logrus.Fields{
		"port":  cfg.HTTPPort,
		"store": cfg.StoreDriver,
		"relay": cfg.RedisURL != "",
		"env":   cfg.Env,
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// openStore подключает хранилище тревог по STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (repository.AlertStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Log.Warn("main: используется хранилище в памяти, данные не переживут перезапуск")
		return repository.NewMemoryStore(), nil

	case config.StoreDriverMongo:
		client, err := db.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureMongoIndexes(ctx, client.Database(cfg.MongoDatabase)); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return repository.NewMongoStore(client, cfg.MongoDatabase), nil

	default:
		conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		applied, err := db.RunMigrations(ctx, conn, cfg.MigrationsPath)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		if len(applied) > 0 {
			logger.Log.WithField("migrations", applied).Info("main: миграции применены")
		}
		return repository.NewPostgresStore(conn), nil
	}
}

// safeClose закрывает ресурс и логирует ошибку.
func safeClose(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Printf("main: ошибка закрытия %s: %v", name, err)
	}
}
