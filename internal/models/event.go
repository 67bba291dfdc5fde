package models

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventAlertCreated  EventKind = "alert-created"
	EventAlertResolved EventKind = "alert-resolved"
)

// Event конверт события для подписчиков: в "type" имя события, в "data" нагрузка.
type Event struct {
	Type      EventKind `json:"type"`
	Data      any       `json:"data"`
	Timestamp int64     `json:"timestamp"`
}

// NewEvent создаёт конверт с текущим временем.
func NewEvent(kind EventKind, data any) Event {
	return Event{Type: kind, Data: data, Timestamp: time.Now().UnixMilli()}
}

// AlertCreatedPayload полная запись тревоги плюс читаемое сообщение для дашборда.
type AlertCreatedPayload struct {
	Alert
	Message string `json:"message"`
}

// NewAlertCreatedPayload формирует нагрузку события alert-created.
func NewAlertCreatedPayload(a *Alert) AlertCreatedPayload {
	return AlertCreatedPayload{
		Alert:   *a,
		Message: "Emergency SOS from " + a.SenderLabel(),
	}
}

// AlertResolvedPayload нагрузка события alert-resolved.
type AlertResolvedPayload struct {
	AlertID uuid.UUID `json:"alertId"`
	Alert   *Alert    `json:"alert,omitempty"`
}
