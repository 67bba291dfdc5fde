package models

import (
	"strings"
	"unicode/utf8"

	"github.com/ignatzorin/safetrip-backend/internal/validation"
)

// Location координаты точки. Отсутствие координат передаётся как nil, а не (0,0).
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsUnknown сообщает, что координаты равны заглушке (0,0), которую шлют клиенты без GPS.
func (l *Location) IsUnknown() bool {
	return l == nil || (l.Lat == 0 && l.Lng == 0)
}

// Normalize превращает заглушку (0,0) в отсутствие координат и проверяет диапазоны.
func (l *Location) Normalize() (*Location, error) {
	if l.IsUnknown() {
		return nil, nil
	}
	if err := validation.ValidateCoordinates(l.Lat, l.Lng); err != nil {
		return nil, err
	}
	loc := *l
	return &loc, nil
}

// NormalizeContactEmail обрезает пробелы у контактного email. Адрес берётся из профиля
// как есть и хранится непрозрачным текстом: формат не проверяется, чтобы сигнал SOS
// не отклонялся из-за необязательного поля. Пустой или слишком длинный адрес отбрасывается.
func NormalizeContactEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.TrimSpace(*email)
	if v == "" || utf8.RuneCountInString(v) > validation.MaxEmailLength {
		return nil
	}
	return &v
}
