package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/safetrip-backend/internal/goroutine"
	"github.com/ignatzorin/safetrip-backend/internal/logger"
	"github.com/ignatzorin/safetrip-backend/internal/metrics"
	"github.com/ignatzorin/safetrip-backend/internal/models"
	"github.com/ignatzorin/safetrip-backend/internal/pkg/apperror"
)

// Frame готовое к отправке событие: тип для SSE и сериализованный конверт.
type Frame struct {
	Type    models.EventKind
	Payload []byte
}

// Subscriber живой получатель событий (websocket или SSE).
type Subscriber interface {
	ID() string
	Transport() string
	// Enqueue кладёт кадр в буфер подписчика без блокировки.
	// false означает, что буфер переполнен или подписчик уже закрыт.
	Enqueue(f Frame) bool
	Close()
}

// Publisher рассылает события подписчикам.
type Publisher interface {
	Publish(ctx context.Context, kind models.EventKind, data any) error
}

// Hub управляет всеми подписчиками одного процесса.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]struct{}
	closed      bool
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[Subscriber]struct{})}
}

// Run держит хаб открытым до отмены ctx, затем закрывает всех подписчиков.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	subs := make([]Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	h.subscribers = make(map[Subscriber]struct{})
	h.mu.Unlock()

	for _, s := range subs {
		metrics.SubscribersConnected.WithLabelValues(s.Transport()).Dec()
		s.Close()
	}
	logger.Log.WithField("subscribers", len(subs)).Info("ws: хаб остановлен")
}

// Register добавляет подписчика. Он получает только события, опубликованные после регистрации.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.Close()
		return
	}
	h.subscribers[s] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	metrics.SubscribersConnected.WithLabelValues(s.Transport()).Inc()
	logger.Log.WithFields(logrus.Fields{
		"subscriber":  s.ID(),
		"transport":   s.Transport(),
		"subscribers": count,
	}).Info("ws: подписчик подключён")
}

// Unregister удаляет подписчика. Повторный вызов безопасен.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[s]
	delete(h.subscribers, s)
	h.mu.Unlock()

	if ok {
		metrics.SubscribersConnected.WithLabelValues(s.Transport()).Dec()
		logger.Log.WithField("subscriber", s.ID()).Debug("ws: подписчик отключён")
	}
}

// ClientCount возвращает число зарегистрированных подписчиков.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish сериализует событие и раздаёт его всем текущим подписчикам.
// Ошибки доставки не возвращаются: отстающий подписчик просто отключается.
func (h *Hub) Publish(_ context.Context, kind models.EventKind, data any) error {
	raw, err := EncodeEvent(kind, data)
	if err != nil {
		return err
	}
	h.Deliver(Frame{Type: kind, Payload: raw})
	return nil
}

// Deliver раздаёт уже сериализованный кадр.
func (h *Hub) Deliver(f Frame) {
	metrics.EventsPublishedTotal.WithLabelValues(string(f.Type)).Inc()

	var lagging []Subscriber
	h.mu.RLock()
	for s := range h.subscribers {
		if !s.Enqueue(f) {
			lagging = append(lagging, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range lagging {
		h.drop(s, "buffer_full")
	}
}

func (h *Hub) drop(s Subscriber, reason string) {
	h.Unregister(s)
	metrics.SubscribersDroppedTotal.WithLabelValues(reason).Inc()
	logger.Log.WithFields(logrus.Fields{
		"subscriber": s.ID(),
		"reason":     reason,
	}).WithError(apperror.Transport(errors.New(reason), s.ID())).Debug("ws: подписчик отключён")

	goroutine.SafeGo("ws-drop", s.Close)
}

// EncodeEvent собирает конверт {type, data, timestamp}.
func EncodeEvent(kind models.EventKind, data any) ([]byte, error) {
	raw, err := json.Marshal(models.NewEvent(kind, data))
	if err != nil {
		return nil, fmt.Errorf("ws: не удалось сериализовать событие: %w", err)
	}
	return raw, nil
}
