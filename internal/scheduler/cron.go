package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignatzorin/safetrip-backend/internal/logger"
)

// Cron обёртка над robfig/cron: задачи получают общий контекст, паники перехватываются,
// наложение запусков одной задачи пропускается.
type Cron struct {
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewCron(loc *time.Location) *Cron {
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := cron.PrintfLogger(logger.Log)
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Cron{c: c, ctx: ctx, cancel: cancel}
}

// Add регистрирует задачу по выражению cron (поддерживаются дескрипторы вида @hourly).
func (cr *Cron) Add(name, expr string, fn func(ctx context.Context) error) (cron.EntryID, error) {
	id, err := cr.c.AddFunc(expr, func() {
		start := time.Now()
		if err := fn(cr.ctx); err != nil {
			logger.Log.WithError(err).WithField("job", name).Error("scheduler: задача завершилась с ошибкой")
			return
		}
		logger.Log.WithField("job", name).Debugf("scheduler: задача выполнена за %s", time.Since(start))
	})
	if err != nil {
		return 0, fmt.Errorf("scheduler: некорректное расписание %q для %s: %w", expr, name, err)
	}
	return id, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop отменяет контекст задач и ждёт завершения уже запущенных.
func (cr *Cron) Stop() {
	cr.cancel()
	<-cr.c.Stop().Done()
}

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }
