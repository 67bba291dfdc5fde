package dto

import "github.com/ignatzorin/safetrip-backend/internal/models"

// LocationRequest координаты из тела запроса.
type LocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l *LocationRequest) toModel() *models.Location {
	if l == nil {
		return nil
	}
	return &models.Location{Lat: l.Lat, Lng: l.Lng}
}

// SubmitAlertRequest тело POST /api/alerts.
// Обязательность userId проверяется моделью, чтобы ответ содержал имя поля.
type SubmitAlertRequest struct {
	UserID       string           `json:"userId"`
	ContactEmail *string          `json:"contactEmail"`
	Location     *LocationRequest `json:"location"`
	Description  *string          `json:"description"`
}

func (r SubmitAlertRequest) ToInput() models.NewAlertInput {
	return models.NewAlertInput{
		UserID:       r.UserID,
		ContactEmail: r.ContactEmail,
		Location:     r.Location.toModel(),
		Description:  r.Description,
	}
}

// SubmitReportRequest тело POST /api/reports.
type SubmitReportRequest struct {
	UserID       string           `json:"userId"`
	ContactEmail *string          `json:"contactEmail"`
	Title        string           `json:"title"`
	Description  *string          `json:"description"`
	Category     *string          `json:"category"`
	Location     *LocationRequest `json:"location"`
}

func (r SubmitReportRequest) ToInput() models.NewReportInput {
	return models.NewReportInput{
		UserID:       r.UserID,
		ContactEmail: r.ContactEmail,
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		Location:     r.Location.toModel(),
	}
}

// StreamTokenRequest тело POST /api/auth/token. Subject необязателен.
type StreamTokenRequest struct {
	Subject string `json:"subject" binding:"omitempty,max=64"`
}
