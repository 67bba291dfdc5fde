package dto

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/safetrip-backend/internal/models"
)

// Статус в ответе на создание записи.
const StatusCreated = "created"

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// CreatedResponse ответ на POST /alerts и POST /reports.
type CreatedResponse struct {
	ID      uuid.UUID `json:"id"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
}

type AlertsResponse struct {
	Alerts []models.Alert `json:"alerts"`
}

type ReportsResponse struct {
	Reports []models.Report `json:"reports"`
}

type AlertResponse struct {
	Alert   *models.Alert `json:"alert"`
	Message string        `json:"message,omitempty"`
}

type EFIRResponse struct {
	EFIR    *models.EFIR `json:"efir"`
	Message string       `json:"message"`
}

type HeatmapResponse struct {
	Points []models.HeatPoint `json:"points"`
}
