package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EFIRStatusRegistered = "registered"
	EFIRCategorySOS      = "Emergency SOS"
)

// EFIR электронный протокол происшествия, формируемый властями по тревоге.
type EFIR struct {
	FIRNumber   string    `json:"firNumber"`
	Date        time.Time `json:"date"`
	Status      string    `json:"status"`
	Category    string    `json:"category"`
	ReportedBy  string    `json:"reportedBy"`
	UserID      string    `json:"userId"`
	AlertID     uuid.UUID `json:"alertId"`
	Location    *Location `json:"location,omitempty"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEFIR формирует протокол по тревоге.
func NewEFIR(a *Alert, now time.Time) *EFIR {
	return &EFIR{
		FIRNumber:   fmt.Sprintf("FIR-%d", now.UnixMilli()),
		Date:        now,
		Status:      EFIRStatusRegistered,
		Category:    EFIRCategorySOS,
		ReportedBy:  a.SenderLabel(),
		UserID:      a.UserID,
		AlertID:     a.ID,
		Location:    a.Location,
		Description: a.Description,
		Timestamp:   a.CreatedAt,
	}
}

// HeatPoint точка тепловой карты инцидентов.
type HeatPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Intensity float64 `json:"intensity"`
	Type      string  `json:"type"`
	Label     string  `json:"label,omitempty"`
}
