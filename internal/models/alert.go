package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/safetrip-backend/internal/pkg/apperror"
	"github.com/ignatzorin/safetrip-backend/internal/validation"
)

type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"

	// DefaultAlertDescription подставляется, если гражданин не описал ситуацию.
	DefaultAlertDescription = "Emergency SOS Alert triggered"
)

// Alert экстренный сигнал SOS от туриста.
type Alert struct {
	ID           uuid.UUID   `json:"id"`
	UserID       string      `json:"userId"`
	ContactEmail *string     `json:"contactEmail,omitempty"`
	Location     *Location   `json:"location,omitempty"`
	Status       AlertStatus `json:"status"`
	Description  string      `json:"description"`
	CreatedAt    time.Time   `json:"createdAt"`
	ResolvedAt   *time.Time  `json:"resolvedAt,omitempty"`
}

// NewAlertInput входные данные для создания тревоги.
type NewAlertInput struct {
	UserID       string
	ContactEmail *string
	Location     *Location
	Description  *string
}

// Validate проверяет обязательные поля и нормализует значения по умолчанию.
func (in *NewAlertInput) Validate() error {
	in.UserID = strings.TrimSpace(in.UserID)
	if err := validation.ValidateNonEmpty("userId", in.UserID); err != nil {
		return apperror.Validation("userId", err.Error())
	}
	in.ContactEmail = NormalizeContactEmail(in.ContactEmail)
	loc, err := in.Location.Normalize()
	if err != nil {
		return apperror.Validation("location", err.Error())
	}
	in.Location = loc
	return nil
}

// Build собирает запись тревоги в начальном состоянии.
func (in NewAlertInput) Build(now time.Time) *Alert {
	description := DefaultAlertDescription
	if in.Description != nil && strings.TrimSpace(*in.Description) != "" {
		description = strings.TrimSpace(*in.Description)
	}
	return &Alert{
		UserID:       in.UserID,
		ContactEmail: in.ContactEmail,
		Location:     in.Location,
		Status:       AlertStatusActive,
		Description:  description,
		CreatedAt:    now,
	}
}

// IsResolved сообщает, закрыта ли тревога.
func (a *Alert) IsResolved() bool {
	return a.Status == AlertStatusResolved
}

// Resolve переводит тревогу active → resolved. Возвращает false, если перехода не было.
func (a *Alert) Resolve(now time.Time) bool {
	if a.Status != AlertStatusActive {
		return false
	}
	a.Status = AlertStatusResolved
	a.ResolvedAt = &now
	return true
}

// SenderLabel возвращает email отправителя или заглушку.
func (a *Alert) SenderLabel() string {
	if a.ContactEmail != nil && *a.ContactEmail != "" {
		return *a.ContactEmail
	}
	return "unknown user"
}
