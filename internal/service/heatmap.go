package service

import (
	"context"

	"github.com/ignatzorin/safetrip-backend/internal/models"
)

// Интенсивность точек тепловой карты.
const (
	HeatIntensityAlert     = 0.8
	HeatIntensityReport    = 0.6
	HeatIntensityLandslide = 0.9

	HeatTypeAlert  = "alert"
	HeatTypeReport = "report"
)

// Heatmap собирает точки по последним тревогам и отчётам. Записи без координат пропускаются.
func (s *AlertService) Heatmap(ctx context.Context, limit int) ([]models.HeatPoint, error) {
	limit = s.limit(limit)
	if s.cache == nil {
		return s.buildHeatmap(ctx, limit)
	}

	value, err := s.cache.GetOrSet(ctx, HeatmapCacheKey(limit), func(ctx context.Context) (interface{}, error) {
		return s.buildHeatmap(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return value.([]models.HeatPoint), nil
}

func (s *AlertService) buildHeatmap(ctx context.Context, limit int) ([]models.HeatPoint, error) {
	alerts, err := s.store.ListAlerts(ctx, limit)
	if err != nil {
		return nil, err
	}
	reports, err := s.store.ListReports(ctx, limit)
	if err != nil {
		return nil, err
	}
	return BuildHeatPoints(alerts, reports), nil
}

// BuildHeatPoints переводит тревоги и отчёты в точки тепловой карты.
func BuildHeatPoints(alerts []models.Alert, reports []models.Report) []models.HeatPoint {
	points := make([]models.HeatPoint, 0, len(alerts)+len(reports))
	for _, a := range alerts {
		if a.Location == nil {
			continue
		}
		points = append(points, models.HeatPoint{
			Lat:       a.Location.Lat,
			Lng:       a.Location.Lng,
			Intensity: HeatIntensityAlert,
			Type:      HeatTypeAlert,
			Label:     a.Description,
		})
	}
	for _, r := range reports {
		if r.Location == nil {
			continue
		}
		intensity := HeatIntensityReport
		if r.Category == models.ReportCategoryLandslide {
			intensity = HeatIntensityLandslide
		}
		points = append(points, models.HeatPoint{
			Lat:       r.Location.Lat,
			Lng:       r.Location.Lng,
			Intensity: intensity,
			Type:      HeatTypeReport,
			Label:     r.Title,
		})
	}
	return points
}
