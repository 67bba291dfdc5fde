package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinLatitude    = -90.0
	MaxLatitude    = 90.0
	MinLongitude   = -180.0
	MaxLongitude   = 180.0
	MaxEmailLength = 254
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email должен быть не более %d символов", MaxEmailLength)
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateCoordinates проверяет широту и долготу.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return fmt.Errorf("координаты должны быть числами")
	}
	if lat < MinLatitude || lat > MaxLatitude {
		return fmt.Errorf("широта должна быть в диапазоне от %.0f до %.0f", MinLatitude, MaxLatitude)
	}
	if lng < MinLongitude || lng > MaxLongitude {
		return fmt.Errorf("долгота должна быть в диапазоне от %.0f до %.0f", MinLongitude, MaxLongitude)
	}
	return nil
}
