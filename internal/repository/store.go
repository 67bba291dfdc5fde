package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/safetrip-backend/internal/models"
)

// Границы выборок списков.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
	// История одного пользователя по умолчанию отдаётся целиком в пределах MaxHistoryLimit.
	MaxHistoryLimit = 1000
)

// AlertStore хранилище тревог и отчётов. Реализации не рассылают события:
// рассылкой занимается сервис после успешной записи.
//
// Ошибки: apperror.ErrCodeValidation для некорректного ввода, ErrAlertNotFound
// для неизвестного id, ErrCodeDatabaseError для сбоев движка.
type AlertStore interface {
	CreateAlert(ctx context.Context, in models.NewAlertInput) (*models.Alert, error)
	CreateReport(ctx context.Context, in models.NewReportInput) (*models.Report, error)

	ListAlerts(ctx context.Context, limit int) ([]models.Alert, error)
	ListReports(ctx context.Context, limit int) ([]models.Report, error)
	// Выборки по пользователю ограничены ClampHistoryLimit, а не ClampLimit.
	ListAlertsForUser(ctx context.Context, userID string, limit int) ([]models.Alert, error)
	ListReportsForUser(ctx context.Context, userID string, limit int) ([]models.Report, error)

	GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	// ResolveAlert переводит active → resolved одной условной операцией.
	// changed=false означает, что тревога уже была закрыта и запись не изменилась.
	ResolveAlert(ctx context.Context, id uuid.UUID) (alert *models.Alert, changed bool, err error)

	PurgeResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeReportsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ClampLimit приводит limit к диапазону (0, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// ClampHistoryLimit приводит limit истории пользователя к диапазону (0, MaxHistoryLimit].
func ClampHistoryLimit(limit int) int {
	if limit <= 0 || limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

var (
	_ AlertStore = (*PostgresStore)(nil)
	_ AlertStore = (*MongoStore)(nil)
	_ AlertStore = (*MemoryStore)(nil)
)
