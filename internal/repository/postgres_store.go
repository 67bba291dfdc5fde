package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/safetrip-backend/internal/models"
	"github.com/ignatzorin/safetrip-backend/internal/pkg/apperror"
	"github.com/ignatzorin/safetrip-backend/internal/repository/common"
)

const (
	alertColumns  = `id, user_id, contact_email, lat, lng, status, description, created_at, resolved_at`
	reportColumns = `id, user_id, contact_email, title, description, category, lat, lng, created_at`
)

type alertRow struct {
	ID           uuid.UUID       `db:"id"`
	UserID       string          `db:"user_id"`
	ContactEmail sql.NullString  `db:"contact_email"`
	Lat          sql.NullFloat64 `db:"lat"`
	Lng          sql.NullFloat64 `db:"lng"`
	Status       string          `db:"status"`
	Description  string          `db:"description"`
	CreatedAt    time.Time       `db:"created_at"`
	ResolvedAt   sql.NullTime    `db:"resolved_at"`
}

func (r alertRow) toModel() models.Alert {
	a := models.Alert{
		ID:           r.ID,
		UserID:       r.UserID,
		ContactEmail: common.StringPtr(r.ContactEmail),
		Location:     locationFromNull(r.Lat, r.Lng),
		Status:       models.AlertStatus(r.Status),
		Description:  r.Description,
		CreatedAt:    r.CreatedAt,
	}
	if r.ResolvedAt.Valid {
		t := r.ResolvedAt.Time
		a.ResolvedAt = &t
	}
	return a
}

type reportRow struct {
	ID           uuid.UUID       `db:"id"`
	UserID       string          `db:"user_id"`
	ContactEmail sql.NullString  `db:"contact_email"`
	Title        string          `db:"title"`
	Description  string          `db:"description"`
	Category     string          `db:"category"`
	Lat          sql.NullFloat64 `db:"lat"`
	Lng          sql.NullFloat64 `db:"lng"`
	CreatedAt    time.Time       `db:"created_at"`
}

func (r reportRow) toModel() models.Report {
	return models.Report{
		ID:           r.ID,
		UserID:       r.UserID,
		ContactEmail: common.StringPtr(r.ContactEmail),
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		Location:     locationFromNull(r.Lat, r.Lng),
		CreatedAt:    r.CreatedAt,
	}
}

func locationFromNull(lat, lng sql.NullFloat64) *models.Location {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &models.Location{Lat: lat.Float64, Lng: lng.Float64}
}

func nullCoords(loc *models.Location) (sql.NullFloat64, sql.NullFloat64) {
	if loc == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: loc.Lat, Valid: true}, sql.NullFloat64{Float64: loc.Lng, Valid: true}
}

// PostgresStore основная реализация AlertStore поверх PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateAlert(ctx context.Context, in models.NewAlertInput) (*models.Alert, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	a := in.Build(common.CeilTime(time.Now().UTC(), common.PostgresTimePrecision))
	lat, lng := nullCoords(a.Location)

	var row alertRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO alerts (user_id, contact_email, lat, lng, status, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+alertColumns,
		a.UserID, common.NullString(a.ContactEmail), lat, lng, a.Status, a.Description, a.CreatedAt)
	if err != nil {
		return nil, apperror.Storage(err, "create alert")
	}

	created := row.toModel()
	return &created, nil
}

func (s *PostgresStore) CreateReport(ctx context.Context, in models.NewReportInput) (*models.Report, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	r := in.Build(common.CeilTime(time.Now().UTC(), common.PostgresTimePrecision))
	lat, lng := nullCoords(r.Location)

	var row reportRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO reports (user_id, contact_email, title, description, category, lat, lng, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+reportColumns,
		r.UserID, common.NullString(r.ContactEmail), r.Title, r.Description, r.Category, lat, lng, r.CreatedAt)
	if err != nil {
		return nil, apperror.Storage(err, "create report")
	}

	created := row.toModel()
	return &created, nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	var rows []alertRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+alertColumns+` FROM alerts ORDER BY created_at DESC, id DESC LIMIT $1
	`, ClampLimit(limit))
	if err != nil {
		return nil, apperror.Storage(err, "list alerts")
	}
	return alertsFromRows(rows), nil
}

func (s *PostgresStore) ListReports(ctx context.Context, limit int) ([]models.Report, error) {
	var rows []reportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC, id DESC LIMIT $1
	`, ClampLimit(limit))
	if err != nil {
		return nil, apperror.Storage(err, "list reports")
	}
	return reportsFromRows(rows), nil
}

func (s *PostgresStore) ListAlertsForUser(ctx context.Context, userID string, limit int) ([]models.Alert, error) {
	var rows []alertRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+alertColumns+` FROM alerts WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
	`, userID, ClampHistoryLimit(limit))
	if err != nil {
		return nil, apperror.Storage(err, "list user alerts")
	}
	return alertsFromRows(rows), nil
}

func (s *PostgresStore) ListReportsForUser(ctx context.Context, userID string, limit int) ([]models.Report, error) {
	var rows []reportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+reportColumns+` FROM reports WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
	`, userID, ClampHistoryLimit(limit))
	if err != nil {
		return nil, apperror.Storage(err, "list user reports")
	}
	return reportsFromRows(rows), nil
}

func (s *PostgresStore) GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	row, err := common.GetByID[alertRow](ctx, s.db, "alerts", id, apperror.ErrAlertNotFound)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		return nil, apperror.Storage(err, "get alert")
	}
	a := row.toModel()
	return &a, nil
}

func (s *PostgresStore) ResolveAlert(ctx context.Context, id uuid.UUID) (*models.Alert, bool, error) {
	var row alertRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE alerts SET status = 'resolved', resolved_at = $2
		WHERE id = $1 AND status = 'active'
		RETURNING `+alertColumns, id, common.CeilTime(time.Now().UTC(), common.PostgresTimePrecision))
	if err == nil {
		a := row.toModel()
		return &a, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, apperror.Storage(err, "resolve alert")
	}

	// Строка не обновилась: либо тревоги нет, либо она уже закрыта.
	current, err := s.GetAlert(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *PostgresStore) PurgeResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := common.DeleteBefore(ctx, s.db, "alerts", "resolved_at", "status = 'resolved'", cutoff)
	if err != nil {
		return 0, apperror.Storage(err, "purge alerts")
	}
	return n, nil
}

func (s *PostgresStore) PurgeReportsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := common.DeleteBefore(ctx, s.db, "reports", "created_at", "", cutoff)
	if err != nil {
		return 0, apperror.Storage(err, "purge reports")
	}
	return n, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func alertsFromRows(rows []alertRow) []models.Alert {
	out := make([]models.Alert, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

func reportsFromRows(rows []reportRow) []models.Report {
	out := make([]models.Report, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
