package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/safetrip-backend/internal/logger"
	"github.com/ignatzorin/safetrip-backend/internal/metrics"
	"github.com/ignatzorin/safetrip-backend/internal/models"
)

// RelayChannel канал Redis, через который экземпляры сервера обмениваются событиями.
const RelayChannel = "safetrip:events"

// RedisRelay публикует события в Redis; каждый экземпляр слушает канал и раздаёт
// полученное своему хабу. Так власти, подключённые к любому экземпляру, видят все тревоги.
type RedisRelay struct {
	client  *redis.Client
	hub     *Hub
	channel string
	// listening true, пока подписка на канал активна.
	listening atomic.Bool
}

func NewRedisRelay(client *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{client: client, hub: hub, channel: RelayChannel}
}

// Listening сообщает, доставляются ли события из Redis в локальный хаб.
func (r *RedisRelay) Listening() bool {
	return r.listening.Load()
}

// Publish отправляет событие в Redis. Если Redis недоступен или подписка этого
// экземпляра не активна, событие раздаётся локально, чтобы свои подписчики его не потеряли.
func (r *RedisRelay) Publish(ctx context.Context, kind models.EventKind, data any) error {
	raw, err := EncodeEvent(kind, data)
	if err != nil {
		return err
	}

	listening := r.listening.Load()
	if err := r.client.Publish(ctx, r.channel, raw).Err(); err != nil {
		logger.Log.WithError(err).WithField("kind", kind).Warn("ws: redis недоступен, рассылаем локально")
		r.hub.Deliver(Frame{Type: kind, Payload: raw})
		return nil
	}
	metrics.RelayMessagesTotal.WithLabelValues("out").Inc()

	if !listening {
		logger.Log.WithField("kind", kind).Warn("ws: подписка relay не активна, рассылаем локально")
		r.hub.Deliver(Frame{Type: kind, Payload: raw})
	}
	return nil
}

// Run держит подписку на канал до отмены ctx, переподключаясь с экспоненциальной задержкой.
func (r *RedisRelay) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	op := func() error {
		err := r.listen(ctx, b.Reset)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errors.New("ws: подписка relay закрыта")
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Log.WithError(err).WithField("retry_in", wait).Warn("ws: relay переподключается к redis")
	}
	_ = backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	logger.Log.Info("ws: relay остановлен")
}

// Listen подписывается на канал и пересылает события в хаб до отмены ctx.
func (r *RedisRelay) Listen(ctx context.Context) error {
	return r.listen(ctx, nil)
}

func (r *RedisRelay) listen(ctx context.Context, onSubscribed func()) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("ws: не удалось подписаться на %s: %w", r.channel, err)
	}
	r.listening.Store(true)
	defer r.listening.Store(false)
	if onSubscribed != nil {
		onSubscribed()
	}
	logger.Log.WithField("channel", r.channel).Info("ws: relay слушает redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			kind, err := peekKind([]byte(msg.Payload))
			if err != nil {
				logger.Log.WithError(err).Warn("ws: отброшено некорректное сообщение relay")
				continue
			}
			metrics.RelayMessagesTotal.WithLabelValues("in").Inc()
			r.hub.Deliver(Frame{Type: kind, Payload: []byte(msg.Payload)})
		}
	}
}

func peekKind(raw []byte) (models.EventKind, error) {
	var head struct {
		Type models.EventKind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("ws: некорректный конверт: %w", err)
	}
	if head.Type == "" {
		return "", fmt.Errorf("ws: конверт без типа")
	}
	return head.Type, nil
}

var (
	_ Publisher = (*Hub)(nil)
	_ Publisher = (*RedisRelay)(nil)
)
