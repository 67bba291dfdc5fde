package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/ignatzorin/safetrip-backend/internal/logger"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(name string, fn func()) {
	go func() {
		defer rh.recover(name)
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer rh.recover(name)
		fn(ctx)
	}()
}

func (rh *RecoveryHandler) recover(name string) {
	if r := recover(); r != nil {
		rh.logger.Errorf("panic in goroutine %s: %v\nstack trace:\n%s", name, r, debug.Stack())
	}
}

// DefaultRecoveryHandler пишет паники в общий логгер.
var DefaultRecoveryHandler = NewRecoveryHandler(logger.Log)

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(name string, fn func()) {
	DefaultRecoveryHandler.SafeGo(name, fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, name, fn)
}
