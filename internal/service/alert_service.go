package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/safetrip-backend/internal/logger"
	"github.com/ignatzorin/safetrip-backend/internal/metrics"
	"github.com/ignatzorin/safetrip-backend/internal/models"
	"github.com/ignatzorin/safetrip-backend/internal/repository"
	"github.com/ignatzorin/safetrip-backend/internal/validation"
	"github.com/ignatzorin/safetrip-backend/internal/ws"
)

const (
	defaultWriteTimeout = 10 * time.Second

	kindAlert  = "alert"
	kindReport = "report"
)

// AlertService принимает тревоги и отчёты, сохраняет их и рассылает события властям.
type AlertService struct {
	store        repository.AlertStore
	publisher    ws.Publisher
	writeTimeout time.Duration
	listLimit    int
	cache        *CacheService
	now          func() time.Time
}

// NewAlertService создаёт сервис тревог.
func NewAlertService(store repository.AlertStore, publisher ws.Publisher, writeTimeout time.Duration, listLimit int) *AlertService {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &AlertService{
		store:        store,
		publisher:    publisher,
		writeTimeout: writeTimeout,
		listLimit:    repository.ClampLimit(listLimit),
		now:          time.Now,
	}
}

// SetCache подключает кэш тепловой карты. Без кэша карта считается на каждый запрос.
func (s *AlertService) SetCache(cache *CacheService) {
	s.cache = cache
}

func (s *AlertService) invalidate() {
	if s.cache != nil {
		s.cache.InvalidateHeatmap()
	}
}

// warnUnusualEmail отмечает в логе адрес, не прошедший проверку формата. Запись не отклоняется.
func warnUnusualEmail(kind, userID string, email *string) {
	if email == nil {
		return
	}
	if err := validation.ValidateEmail(*email); err != nil {
		logger.Log.WithFields(logrus.Fields{"user_id": userID, "kind": kind}).
			Warnf("contact email сохранён без проверки формата: %v", err)
	}
}

// writeContext отвязывает запись от запроса: уход клиента не прерывает уже начатую запись.
func (s *AlertService) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
}

func (s *AlertService) limit(limit int) int {
	if limit <= 0 {
		return s.listLimit
	}
	return repository.ClampLimit(limit)
}

// SubmitAlert сохраняет тревогу и только после этого публикует alert-created.
func (s *AlertService) SubmitAlert(ctx context.Context, in models.NewAlertInput) (*models.Alert, error) {
	if err := in.Validate(); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(kindAlert, "invalid").Inc()
		return nil, err
	}
	warnUnusualEmail(kindAlert, in.UserID, in.ContactEmail)

	wctx, cancel := s.writeContext(ctx)
	defer cancel()

	alert, err := s.store.CreateAlert(wctx, in)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(kindAlert, "error").Inc()
		logger.Log.WithError(err).WithField("user_id", in.UserID).Error("alerts: не удалось сохранить тревогу")
		return nil, err
	}
	metrics.SubmissionsTotal.WithLabelValues(kindAlert, "created").Inc()
	s.invalidate()

	log := logger.Log.WithFields(logrus.Fields{"alert_id": alert.ID, "user_id": alert.UserID})
	log.Warn("alerts: получен сигнал SOS")

	if err := s.publisher.Publish(wctx, models.EventAlertCreated, models.NewAlertCreatedPayload(alert)); err != nil {
		log.WithError(err).Error("alerts: не удалось разослать alert-created")
	}
	return alert, nil
}

// SubmitReport сохраняет отчёт. Отчёты не рассылаются: власти видят их при очередной выборке.
func (s *AlertService) SubmitReport(ctx context.Context, in models.NewReportInput) (*models.Report, error) {
	if err := in.Validate(); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(kindReport, "invalid").Inc()
		return nil, err
	}
	warnUnusualEmail(kindReport, in.UserID, in.ContactEmail)

	wctx, cancel := s.writeContext(ctx)
	defer cancel()

	report, err := s.store.CreateReport(wctx, in)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(kindReport, "error").Inc()
		logger.Log.WithError(err).WithField("user_id", in.UserID).Error("reports: не удалось сохранить отчёт")
		return nil, err
	}
	metrics.SubmissionsTotal.WithLabelValues(kindReport, "created").Inc()
	s.invalidate()
	logger.Log.WithFields(logrus.Fields{
		"report_id": report.ID,
		"category":  report.Category,
	}).Info("reports: получен отчёт")
	return report, nil
}

// ResolveAlert закрывает тревогу. alert-resolved публикуется только при фактическом переходе.
func (s *AlertService) ResolveAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	wctx, cancel := s.writeContext(ctx)
	defer cancel()

	alert, changed, err := s.store.ResolveAlert(wctx, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		logger.Log.WithField("alert_id", id).Debug("alerts: тревога уже закрыта")
		return alert, nil
	}

	metrics.AlertsResolvedTotal.Inc()
	s.invalidate()
	logger.Log.WithField("alert_id", id).Info("alerts: тревога закрыта")
	payload := models.AlertResolvedPayload{AlertID: alert.ID, Alert: alert}
	if err := s.publisher.Publish(wctx, models.EventAlertResolved, payload); err != nil {
		logger.Log.WithError(err).WithField("alert_id", id).Error("alerts: не удалось разослать alert-resolved")
	}
	return alert, nil
}

func (s *AlertService) ListAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	return s.store.ListAlerts(ctx, s.limit(limit))
}

func (s *AlertService) ListReports(ctx context.Context, limit int) ([]models.Report, error) {
	return s.store.ListReports(ctx, s.limit(limit))
}

func (s *AlertService) ListAlertsForUser(ctx context.Context, userID string, limit int) ([]models.Alert, error) {
	return s.store.ListAlertsForUser(ctx, userID, limit)
}

func (s *AlertService) ListReportsForUser(ctx context.Context, userID string, limit int) ([]models.Report, error) {
	return s.store.ListReportsForUser(ctx, userID, limit)
}

// GenerateEFIR формирует электронный протокол по тревоге. Протокол не сохраняется.
func (s *AlertService) GenerateEFIR(ctx context.Context, id uuid.UUID) (*models.EFIR, error) {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	efir := models.NewEFIR(alert, s.now())
	logger.Log.WithFields(logrus.Fields{
		"alert_id":   id,
		"fir_number": efir.FIRNumber,
	}).Info("alerts: сформирован E-FIR")
	return efir, nil
}
