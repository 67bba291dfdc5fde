package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/safetrip-backend/internal/models"
	"github.com/ignatzorin/safetrip-backend/internal/pkg/apperror"
)

// MemoryStore хранит записи в памяти процесса. Подходит для тестов и локального запуска.
type MemoryStore struct {
	mu      sync.RWMutex
	alerts  []*models.Alert
	reports []*models.Report
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock подменяет источник времени.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) CreateAlert(_ context.Context, in models.NewAlertInput) (*models.Alert, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := in.Build(s.now())
	a.ID = uuid.New()
	s.alerts = append(s.alerts, a)

	out := *a
	return &out, nil
}

func (s *MemoryStore) CreateReport(_ context.Context, in models.NewReportInput) (*models.Report, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := in.Build(s.now())
	r.ID = uuid.New()
	s.reports = append(s.reports, r)

	out := *r
	return &out, nil
}

// Записи добавляются в порядке создания, поэтому «новые сначала» это обход с конца.
func (s *MemoryStore) selectAlerts(limit int, match func(*models.Alert) bool) []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Alert, 0, min(limit, len(s.alerts)))
	for i := len(s.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		if match == nil || match(s.alerts[i]) {
			out = append(out, *s.alerts[i])
		}
	}
	return out
}

func (s *MemoryStore) selectReports(limit int, match func(*models.Report) bool) []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Report, 0, min(limit, len(s.reports)))
	for i := len(s.reports) - 1; i >= 0 && len(out) < limit; i-- {
		if match == nil || match(s.reports[i]) {
			out = append(out, *s.reports[i])
		}
	}
	return out
}

func (s *MemoryStore) ListAlerts(_ context.Context, limit int) ([]models.Alert, error) {
	return s.selectAlerts(ClampLimit(limit), nil), nil
}

func (s *MemoryStore) ListReports(_ context.Context, limit int) ([]models.Report, error) {
	return s.selectReports(ClampLimit(limit), nil), nil
}

func (s *MemoryStore) ListAlertsForUser(_ context.Context, userID string, limit int) ([]models.Alert, error) {
	return s.selectAlerts(ClampHistoryLimit(limit), func(a *models.Alert) bool { return a.UserID == userID }), nil
}

func (s *MemoryStore) ListReportsForUser(_ context.Context, userID string, limit int) ([]models.Report, error) {
	return s.selectReports(ClampHistoryLimit(limit), func(r *models.Report) bool { return r.UserID == userID }), nil
}

func (s *MemoryStore) findAlert(id uuid.UUID) *models.Alert {
	for _, a := range s.alerts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *MemoryStore) GetAlert(_ context.Context, id uuid.UUID) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := s.findAlert(id)
	if a == nil {
		return nil, apperror.ErrAlertNotFound
	}
	out := *a
	return &out, nil
}

func (s *MemoryStore) ResolveAlert(_ context.Context, id uuid.UUID) (*models.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.findAlert(id)
	if a == nil {
		return nil, false, apperror.ErrAlertNotFound
	}
	changed := a.Resolve(s.now())
	out := *a
	return &out, changed, nil
}

func (s *MemoryStore) PurgeResolvedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.alerts[:0]
	var purged int64
	for _, a := range s.alerts {
		if a.IsResolved() && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, a)
	}
	clear(s.alerts[len(kept):])
	s.alerts = kept
	return purged, nil
}

func (s *MemoryStore) PurgeReportsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.reports[:0]
	var purged int64
	for _, r := range s.reports {
		if r.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, r)
	}
	clear(s.reports[len(kept):])
	s.reports = kept
	return purged, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
