package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// GetByID - универсальная функция для получения строки по ID.
func GetByID[T any](ctx context.Context, db sqlx.QueryerContext, table string, id interface{}, notFoundErr error) (*T, error) {
	var entity T
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1", table)

	if err := sqlx.GetContext(ctx, db, &entity, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr
		}
		return nil, fmt.Errorf("get by id from %s: %w", table, err)
	}

	return &entity, nil
}

// DeleteBefore удаляет строки, у которых column < cutoff, с дополнительным условием where.
func DeleteBefore(ctx context.Context, db sqlx.ExecerContext, table, column, where string, cutoff interface{}) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s < $1", table, column)
	if where != "" {
		query += " AND " + where
	}

	res, err := db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return res.RowsAffected()
}

// NullString превращает необязательную строку в sql.NullString.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// StringPtr обратное преобразование NullString.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Точность хранения временных меток.
const (
	PostgresTimePrecision = time.Microsecond
	MongoTimePrecision    = time.Millisecond
)

// CeilTime округляет t вверх до точности p, чтобы сохранённое значение
// не оказалось раньше момента вызова.
func CeilTime(t time.Time, p time.Duration) time.Time {
	tt := t.Truncate(p)
	if tt.Before(t) {
		tt = tt.Add(p)
	}
	return tt
}
