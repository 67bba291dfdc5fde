package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/safetrip-backend/internal/logger"
	"github.com/ignatzorin/safetrip-backend/internal/metrics"
	"github.com/ignatzorin/safetrip-backend/internal/repository"
)

// RetentionService удаляет закрытые тревоги и старые отчёты по истечении срока хранения.
// Активные тревоги не удаляются никогда.
type RetentionService struct {
	store           repository.AlertStore
	alertRetention  time.Duration
	reportRetention time.Duration
	now             func() time.Time
}

func NewRetentionService(store repository.AlertStore, alertRetention, reportRetention time.Duration) *RetentionService {
	return &RetentionService{
		store:           store,
		alertRetention:  alertRetention,
		reportRetention: reportRetention,
		now:             time.Now,
	}
}

// Enabled сообщает, задан ли хотя бы один срок хранения.
func (s *RetentionService) Enabled() bool {
	return s.alertRetention > 0 || s.reportRetention > 0
}

// PurgeResult итог одного прохода очистки.
type PurgeResult struct {
	Alerts  int64
	Reports int64
}

// Purge выполняет один проход очистки.
func (s *RetentionService) Purge(ctx context.Context) (PurgeResult, error) {
	var res PurgeResult
	now := s.now()

	if s.alertRetention > 0 {
		n, err := s.store.PurgeResolvedBefore(ctx, now.Add(-s.alertRetention))
		if err != nil {
			return res, err
		}
		res.Alerts = n
		metrics.RetentionPurgedTotal.WithLabelValues(kindAlert).Add(float64(n))
	}
	if s.reportRetention > 0 {
		n, err := s.store.PurgeReportsBefore(ctx, now.Add(-s.reportRetention))
		if err != nil {
			return res, err
		}
		res.Reports = n
		metrics.RetentionPurgedTotal.WithLabelValues(kindReport).Add(float64(n))
	}

	if res.Alerts > 0 || res.Reports > 0 {
		logger.Log.WithFields(logrus.Fields{
			"alerts":  res.Alerts,
			"reports": res.Reports,
		}).Info("retention: удалены устаревшие записи")
	}
	return res, nil
}
