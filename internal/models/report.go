package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/safetrip-backend/internal/pkg/apperror"
	"github.com/ignatzorin/safetrip-backend/internal/validation"
)

const (
	ReportCategoryGeneral   = "general"
	ReportCategoryLandslide = "landslide"

	MaxReportTitleLength       = 200
	MaxReportDescriptionLength = 5000
	MaxReportCategoryLength    = 50
)

// Report обычное (не экстренное) сообщение об инциденте.
type Report struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"userId"`
	ContactEmail *string   `json:"contactEmail,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Location     *Location `json:"location,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewReportInput входные данные для создания отчёта.
type NewReportInput struct {
	UserID       string
	ContactEmail *string
	Title        string
	Description  *string
	Category     *string
	Location     *Location
}

// Validate проверяет обязательные поля отчёта.
func (in *NewReportInput) Validate() error {
	in.UserID = strings.TrimSpace(in.UserID)
	if err := validation.ValidateNonEmpty("userId", in.UserID); err != nil {
		return apperror.Validation("userId", err.Error())
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.ValidateNonEmpty("title", in.Title); err != nil {
		return apperror.Validation("title", err.Error())
	}
	if err := validation.ValidateLength("title", in.Title, 1, MaxReportTitleLength); err != nil {
		return apperror.Validation("title", err.Error())
	}
	if in.Description != nil {
		if err := validation.ValidateLength("description", *in.Description, 0, MaxReportDescriptionLength); err != nil {
			return apperror.Validation("description", err.Error())
		}
	}
	if in.Category != nil {
		if err := validation.ValidateLength("category", *in.Category, 0, MaxReportCategoryLength); err != nil {
			return apperror.Validation("category", err.Error())
		}
	}
	in.ContactEmail = NormalizeContactEmail(in.ContactEmail)
	loc, err := in.Location.Normalize()
	if err != nil {
		return apperror.Validation("location", err.Error())
	}
	in.Location = loc
	return nil
}

// Build собирает запись отчёта с дефолтами.
func (in NewReportInput) Build(now time.Time) *Report {
	r := &Report{
		UserID:       in.UserID,
		ContactEmail: in.ContactEmail,
		Title:        in.Title,
		Category:     ReportCategoryGeneral,
		Location:     in.Location,
		CreatedAt:    now,
	}
	if in.Description != nil {
		r.Description = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		if c := strings.ToLower(strings.TrimSpace(*in.Category)); c != "" {
			r.Category = c
		}
	}
	return r
}
