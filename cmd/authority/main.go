package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/safetrip-backend/internal/config"
	"github.com/ignatzorin/safetrip-backend/internal/logger"
	"github.com/ignatzorin/safetrip-backend/internal/models"
	"github.com/ignatzorin/safetrip-backend/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAuthority()
	if err != nil {
		log.Fatalf("authority: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	logger.SetTextFormatter()

	client, err := session.New(session.Options{
		BaseURL:             cfg.APIURL,
		AdminKey:            cfg.AdminAPIKey,
		PollInterval:        cfg.PollInterval,
		ReconnectInitial:    cfg.ReconnectInitial,
		ReconnectMax:        cfg.ReconnectMax,
		ReconnectMaxRetries: cfg.ReconnectMaxRetries,
		OnUpdate:            logSnapshot,
	})
	if err != nil {
		log.Fatalf("authority: %v", err)
	}

	logger.Log.WithField("api", cfg.APIURL).Info("authority: сессия запущена")
	if err := client.Run(ctx); err != nil {
		log.Fatalf("authority: сессия завершилась с ошибкой: %v", err)
	}
	logger.Log.Info("authority: сессия остановлена")
}

// logSnapshot печатает сводку по текущему состоянию тревог.
func logSnapshot(s session.Snapshot) {
	active := 0
	for _, a := range s.Alerts {
		if a.Status == models.AlertStatusActive {
			active++
		}
	}

	entry := logger.Log.WithFields(logrus.Fields{
		"alerts":    len(s.Alerts),
		"active":    active,
		"reports":   len(s.Reports),
		"connected": s.Connected,
	})
	if active > 0 {
		entry.Warn("authority: есть активные тревоги")
		return
	}
	entry.Info("authority: данные обновлены")
}
