package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation     ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError  ErrorCode = "DATABASE_ERROR"
	ErrCodeTransportError ErrorCode = "TRANSPORT_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	Field      string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с шаблонами вроде ErrAlertNotFound.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation создаёт ошибку валидации конкретного поля.
func Validation(field, message string) *AppError {
	e := New(ErrCodeValidation, message)
	e.Field = field
	return e
}

// Storage оборачивает ошибку драйвера хранилища.
func Storage(err error, op string) *AppError {
	return Wrap(err, ErrCodeDatabaseError, "ошибка хранилища: "+op)
}

// Transport оборачивает ошибку доставки события подписчику.
func Transport(err error, subscriber string) *AppError {
	return Wrap(err, ErrCodeTransportError, "подписчик недоступен: "+subscriber)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// As извлекает AppError из цепочки.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

func IsStorage(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeDatabaseError
}

var (
	ErrAlertNotFound = New(ErrCodeNotFound, "тревога не найдена")
	ErrUnauthorized  = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrDuplicate     = New(ErrCodeConflict, "duplicate request")
)
