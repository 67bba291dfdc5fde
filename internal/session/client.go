// Package session реализует клиент сессии властей: базовая выборка, подписка на поток
// событий и периодическая сверка со списком тревог на сервере.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/safetrip-backend/internal/dto"
	"github.com/ignatzorin/safetrip-backend/internal/goroutine"
	"github.com/ignatzorin/safetrip-backend/internal/http/middleware"
	"github.com/ignatzorin/safetrip-backend/internal/logger"
	"github.com/ignatzorin/safetrip-backend/internal/metrics"
	"github.com/ignatzorin/safetrip-backend/internal/models"
	"github.com/ignatzorin/safetrip-backend/internal/service"
)

// Причины повторной выборки.
const (
	TriggerBaseline  = "baseline"
	TriggerEvent     = "event"
	TriggerPoll      = "poll"
	TriggerReconnect = "reconnect"
)

const (
	DefaultPollInterval     = 5 * time.Second
	DefaultReconnectInitial = 1 * time.Second
	DefaultReconnectMax     = 5 * time.Second
	DefaultReconnectRetries = 5

	readWait = 90 * time.Second
)

var errUnauthorized = errors.New("session: секрет властей отклонён сервером")

// Snapshot последнее успешно полученное состояние плюс статус соединения.
type Snapshot struct {
	Alerts    []models.Alert
	Reports   []models.Report
	FetchedAt time.Time
	Connected bool
	// LastError ошибка последней выборки; при ошибке предыдущие данные сохраняются.
	LastError error
}

// Options параметры клиента. Нулевые значения заменяются дефолтами.
type Options struct {
	BaseURL             string
	AdminKey            string
	PollInterval        time.Duration
	ReconnectInitial    time.Duration
	ReconnectMax        time.Duration
	ReconnectMaxRetries uint64

	HTTPClient *http.Client
	Dialer     *websocket.Dialer

	// OnUpdate вызывается после каждой успешной выборки.
	OnUpdate func(Snapshot)
}

// Client сессия властей.
type Client struct {
	opts   Options
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer

	mu   sync.RWMutex
	snap Snapshot
}

// New создаёт клиента сессии.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("session: некорректный адрес API %q", opts.BaseURL)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = DefaultReconnectInitial
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = DefaultReconnectMax
	}
	if opts.ReconnectMaxRetries == 0 {
		opts.ReconnectMaxRetries = DefaultReconnectRetries
	}

	c := &Client{opts: opts, base: base, http: opts.HTTPClient, dialer: opts.Dialer}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	return c, nil
}

// Snapshot возвращает копию последнего состояния.
func (c *Client) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.snap
	s.Alerts = append([]models.Alert(nil), c.snap.Alerts...)
	s.Reports = append([]models.Report(nil), c.snap.Reports...)
	return s
}

type dialResult struct {
	conn *websocket.Conn
	err  error
}

// Run выполняет базовую выборку, подключается к потоку и держит сессию до отмены ctx.
// Каждое событие и каждый тик опроса приводят к полной повторной выборке.
func (c *Client) Run(ctx context.Context) error {
	c.refresh(ctx, TriggerBaseline)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	events := make(chan struct{}, 1)
	lost := make(chan *websocket.Conn, 1)
	dialed := make(chan dialResult, 1)

	var conn *websocket.Conn
	connecting := false
	startConnect := func() {
		connecting = true
		goroutine.SafeGo("session-connect", func() {
			cn, err := c.connect(ctx)
			dialed <- dialResult{conn: cn, err: err}
		})
	}

	defer func() {
		// Подключение, начатое до отмены, дожидаемся и закрываем.
		if connecting {
			if r := <-dialed; r.conn != nil {
				_ = r.conn.Close()
			}
		}
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		}
		c.setConnected(false)
	}()

	startConnect()
	for {
		select {
		case <-ctx.Done():
			return nil

		case r := <-dialed:
			connecting = false
			if r.err != nil {
				if ctx.Err() == nil {
					logger.Log.WithError(r.err).Warn("session: поток недоступен, работаем в режиме опроса")
				}
				continue
			}
			if ctx.Err() != nil {
				_ = r.conn.Close()
				continue
			}
			conn = r.conn
			c.setConnected(true)
			logger.Log.Info("session: подключены к потоку событий")
			cn := conn
			goroutine.SafeGo("session-read", func() { c.readLoop(ctx, cn, events, lost) })
			// События, пропущенные во время разрыва, подтягиваются полной выборкой.
			c.refresh(ctx, TriggerReconnect)

		case <-events:
			c.refresh(ctx, TriggerEvent)

		case dropped := <-lost:
			if dropped != conn {
				continue
			}
			_ = conn.Close()
			conn = nil
			c.setConnected(false)
			logger.Log.Warn("session: соединение потеряно, переподключаемся")
			startConnect()

		case <-ticker.C:
			c.refresh(ctx, TriggerPoll)
			if conn == nil && !connecting {
				startConnect()
			}
		}
	}
}

// connect получает токен потока и открывает websocket с экспоненциальной паузой между попытками.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.ReconnectInitial
	b.MaxInterval = c.opts.ReconnectMax
	b.MaxElapsedTime = 0

	var conn *websocket.Conn
	op := func() error {
		token, err := c.fetchToken(ctx)
		if err != nil {
			if errors.Is(err, errUnauthorized) {
				return backoff.Permanent(err)
			}
			return err
		}

		cn, resp, err := c.dialer.DialContext(ctx, c.streamURL(token), nil)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return backoff.Permanent(errUnauthorized)
			}
			return fmt.Errorf("session: подключение к потоку: %w", err)
		}
		conn = cn
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Log.WithFields(logrus.Fields{"retry_in": wait}).Debugf("session: попытка подключения не удалась: %v", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.opts.ReconnectMaxRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, events chan<- struct{}, lost chan<- *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case lost <- conn:
			case <-ctx.Done():
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var env struct {
			Type models.EventKind `json:"type"`
		}
		if err := json.Unmarshal(raw, &env); err == nil {
			logger.Log.WithField("kind", env.Type).Debug("session: получено событие")
		}

		// Несколько событий подряд схлопываются в одну выборку.
		select {
		case events <- struct{}{}:
		default:
		}
	}
}

func (c *Client) refresh(ctx context.Context, trigger string) {
	alerts, reports, err := c.fetch(ctx)

	c.mu.Lock()
	if err != nil {
		c.snap.LastError = err
		c.mu.Unlock()
		if ctx.Err() == nil {
			metrics.SessionRefetchTotal.WithLabelValues(trigger, "error").Inc()
			logger.Log.WithError(err).WithField("trigger", trigger).Warn("session: не удалось обновить данные")
		}
		return
	}
	c.snap.Alerts = alerts
	c.snap.Reports = reports
	c.snap.FetchedAt = time.Now()
	c.snap.LastError = nil
	c.mu.Unlock()

	metrics.SessionRefetchTotal.WithLabelValues(trigger, "ok").Inc()
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(c.Snapshot())
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.snap.Connected = v
	c.mu.Unlock()
}

func (c *Client) fetch(ctx context.Context) ([]models.Alert, []models.Report, error) {
	var alerts dto.AlertsResponse
	if err := c.getJSON(ctx, "/api/alerts", &alerts); err != nil {
		return nil, nil, err
	}
	var reports dto.ReportsResponse
	if err := c.getJSON(ctx, "/api/reports", &reports); err != nil {
		return nil, nil, err
	}
	return alerts.Alerts, reports.Reports, nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	var tok service.StreamToken
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", &tok); err != nil {
		return "", err
	}
	return tok.Token, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), nil)
	if err != nil {
		return fmt.Errorf("session: запрос %s: %w", path, err)
	}
	req.Header.Set(middleware.AdminKeyHeader, c.opts.AdminKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("session: запрос %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("session: %s вернул статус %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("session: разбор ответа %s: %w", path, err)
	}
	return nil
}

func (c *Client) streamURL(token string) string {
	u := c.base.JoinPath("/api/ws")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String()
}
