package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/safetrip-backend/internal/models"
	"github.com/ignatzorin/safetrip-backend/internal/pkg/apperror"
)

func strPtr(s string) *string { return &s }

// runStoreSuite проверяет общий контракт AlertStore на любой реализации.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) AlertStore) {
	ctx := context.Background()

	t.Run("create alert defaults", func(t *testing.T) {
		s := newStore(t)
		start := time.Now()
		a, err := s.CreateAlert(ctx, models.NewAlertInput{
			UserID:       "tourist-1",
			ContactEmail: strPtr("a@b.io"),
			Location:     &models.Location{Lat: 12.9, Lng: 77.6},
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, a.ID)
		assert.Equal(t, models.AlertStatusActive, a.Status)
		assert.Equal(t, models.DefaultAlertDescription, a.Description)
		require.NotNil(t, a.Location)
		assert.Equal(t, 12.9, a.Location.Lat)
		assert.False(t, a.CreatedAt.Before(start), "createdAt %v раньше начала вызова %v", a.CreatedAt, start)
		assert.WithinDuration(t, time.Now(), a.CreatedAt, time.Minute)
		assert.Nil(t, a.ResolvedAt)

		got, err := s.GetAlert(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.CreatedAt.Equal(a.CreatedAt), "сохранённое %v, возвращённое %v", got.CreatedAt, a.CreatedAt)
	})

	t.Run("create alert without user", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateAlert(ctx, models.NewAlertInput{})
		assert.True(t, apperror.IsValidation(err))

		list, err := s.ListAlerts(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("zero location stored as absent", func(t *testing.T) {
		s := newStore(t)
		a, err := s.CreateAlert(ctx, models.NewAlertInput{UserID: "u", Location: &models.Location{}})
		require.NoError(t, err)
		assert.Nil(t, a.Location)

		got, err := s.GetAlert(ctx, a.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Location)
	})

	t.Run("create report defaults and validation", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateReport(ctx, models.NewReportInput{UserID: "u"})
		assert.True(t, apperror.IsValidation(err))
		_, err = s.CreateReport(ctx, models.NewReportInput{Title: "x"})
		assert.True(t, apperror.IsValidation(err))

		r, err := s.CreateReport(ctx, models.NewReportInput{UserID: "u", Title: "Fallen tree"})
		require.NoError(t, err)
		assert.Equal(t, "", r.Description)
		assert.Equal(t, models.ReportCategoryGeneral, r.Category)
	})

	t.Run("lists are newest first and bounded", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 5; i++ {
			_, err := s.CreateAlert(ctx, models.NewAlertInput{UserID: fmt.Sprintf("u%d", i)})
			require.NoError(t, err)
			_, err = s.CreateReport(ctx, models.NewReportInput{UserID: fmt.Sprintf("u%d", i), Title: "t"})
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}

		alerts, err := s.ListAlerts(ctx, 3)
		require.NoError(t, err)
		require.Len(t, alerts, 3)
		assert.Equal(t, "u4", alerts[0].UserID)
		assert.Equal(t, "u2", alerts[2].UserID)
		for i := 1; i < len(alerts); i++ {
			assert.False(t, alerts[i].CreatedAt.After(alerts[i-1].CreatedAt))
		}

		reports, err := s.ListReports(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, reports, 5)
		assert.Equal(t, "u4", reports[0].UserID)
	})

	t.Run("per user history", func(t *testing.T) {
		s := newStore(t)
		for _, uid := range []string{"alice", "bob", "alice"} {
			_, err := s.CreateAlert(ctx, models.NewAlertInput{UserID: uid})
			require.NoError(t, err)
			_, err = s.CreateReport(ctx, models.NewReportInput{UserID: uid, Title: "t"})
			require.NoError(t, err)
		}

		alerts, err := s.ListAlertsForUser(ctx, "alice", 0)
		require.NoError(t, err)
		assert.Len(t, alerts, 2)
		reports, err := s.ListReportsForUser(ctx, "bob", 0)
		require.NoError(t, err)
		assert.Len(t, reports, 1)
	})

	t.Run("resolve is idempotent", func(t *testing.T) {
		s := newStore(t)
		a, err := s.CreateAlert(ctx, models.NewAlertInput{UserID: "u"})
		require.NoError(t, err)

		start := time.Now()
		first, changed, err := s.ResolveAlert(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, models.AlertStatusResolved, first.Status)
		require.NotNil(t, first.ResolvedAt)
		assert.False(t, first.ResolvedAt.Before(start))

		second, changed, err := s.ResolveAlert(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, models.AlertStatusResolved, second.Status)
		assert.True(t, first.ResolvedAt.Equal(*second.ResolvedAt))
	})

	t.Run("resolve unknown id", func(t *testing.T) {
		s := newStore(t)
		_, _, err := s.ResolveAlert(ctx, uuid.New())
		assert.True(t, apperror.IsNotFound(err))
		_, err = s.GetAlert(ctx, uuid.New())
		assert.ErrorIs(t, err, apperror.ErrAlertNotFound)
	})

	t.Run("concurrent resolve flips once", func(t *testing.T) {
		s := newStore(t)
		a, err := s.CreateAlert(ctx, models.NewAlertInput{UserID: "u"})
		require.NoError(t, err)

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			flips int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, changed, err := s.ResolveAlert(ctx, a.ID)
				assert.NoError(t, err)
				if changed {
					mu.Lock()
					flips++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, flips)
	})

	t.Run("purge removes only old resolved alerts", func(t *testing.T) {
		s := newStore(t)
		active, err := s.CreateAlert(ctx, models.NewAlertInput{UserID: "u"})
		require.NoError(t, err)
		resolved, err := s.CreateAlert(ctx, models.NewAlertInput{UserID: "u"})
		require.NoError(t, err)
		_, _, err = s.ResolveAlert(ctx, resolved.ID)
		require.NoError(t, err)

		n, err := s.PurgeResolvedBefore(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = s.PurgeResolvedBefore(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = s.GetAlert(ctx, active.ID)
		assert.NoError(t, err)
		_, err = s.GetAlert(ctx, resolved.ID)
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}
