package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/safetrip-backend/internal/config"
	"github.com/ignatzorin/safetrip-backend/internal/http/handlers"
	"github.com/ignatzorin/safetrip-backend/internal/http/middleware"
	"github.com/ignatzorin/safetrip-backend/internal/models"
	"github.com/ignatzorin/safetrip-backend/internal/repository"
	"github.com/ignatzorin/safetrip-backend/internal/service"
	"github.com/ignatzorin/safetrip-backend/internal/ws"
)

const adminKey = "authority-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	srv   *httptest.Server
	store *repository.MemoryStore
	hub   *ws.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Env:             "test",
		AdminAPIKey:     adminKey,
		JWTSecret:       "test-jwt-secret-test-jwt-secret-0",
		StreamTokenTTL:  time.Minute,
		AllowedOrigins:  []string{"*"},
		RateLimitLimit:  1000,
		RateLimitPeriod: time.Minute,
		IdempotencyTTL:  time.Minute,
		ListLimit:       50,
		WriteTimeout:    5 * time.Second,
	}

	store := repository.NewMemoryStore()
	hub := ws.NewHub()
	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.StreamTokenTTL)
	alerts := service.NewAlertService(store, hub, cfg.WriteTimeout, cfg.ListLimit)

	r := SetupRouter(cfg, Handlers{
		Alerts:  handlers.NewAlertHandler(alerts),
		Reports: handlers.NewReportHandler(alerts),
		Auth:    handlers.NewAuthHandler(tokens),
		Stream:  handlers.NewWSHandler(hub, cfg.AllowedOrigins),
		Health:  handlers.NewHealthHandler(store, hub, config.StoreDriverMemory),
	}, tokens)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	return &testEnv{srv: srv, store: store, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (e *testEnv) streamToken(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/auth/token", nil, map[string]string{middleware.AdminKeyHeader: adminKey})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	before := e.hub.ClientCount()

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws?token=" + e.streamToken(t)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// Регистрация в хабе происходит после ответа на рукопожатие.
	require.Eventually(t, func() bool { return e.hub.ClientCount() == before+1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) (models.EventKind, map[string]any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Type models.EventKind `json:"type"`
		Data map[string]any   `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	return env.Type, env.Data
}

func submitAlert(t *testing.T, e *testEnv) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/alerts", map[string]any{
		"userId":      "u1",
		"location":    map[string]float64{"lat": 12.9, "lng": 77.6},
		"description": "test",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "created", body["status"])
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestAlertLifecycle_EndToEnd(t *testing.T) {
	e := newTestEnv(t)
	conn := e.dial(t)

	id := submitAlert(t, e)

	stored, err := e.store.ListAlerts(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, id, stored[0].ID.String())
	assert.Equal(t, models.AlertStatusActive, stored[0].Status)

	kind, data := readEvent(t, conn)
	assert.Equal(t, models.EventAlertCreated, kind)
	assert.Equal(t, id, data["id"])
	assert.Contains(t, data["message"], "SOS")
	loc, ok := data["location"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 12.9, loc["lat"])
	assert.Equal(t, 77.6, loc["lng"])

	resp, body := e.do(t, http.MethodPatch, "/api/alerts/"+id+"/resolve", nil, map[string]string{middleware.AdminKeyHeader: adminKey})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	alert, ok := body["alert"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "resolved", alert["status"])

	kind, data = readEvent(t, conn)
	assert.Equal(t, models.EventAlertResolved, kind)
	assert.Equal(t, id, data["alertId"])

	// Повторное закрытие возвращает текущую запись и не создаёт второго события.
	resp, body = e.do(t, http.MethodPatch, "/api/alerts/"+id+"/resolve", nil, map[string]string{middleware.AdminKeyHeader: adminKey})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "resolved", body["alert"].(map[string]any)["status"])

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestAlertFanOut_MultipleSessions(t *testing.T) {
	e := newTestEnv(t)
	first := e.dial(t)
	second := e.dial(t)

	id := submitAlert(t, e)

	for _, conn := range []*websocket.Conn{first, second} {
		kind, data := readEvent(t, conn)
		assert.Equal(t, models.EventAlertCreated, kind)
		assert.Equal(t, id, data["id"])
	}
}

func TestAuthorityRoutes_RejectWithoutSecret(t *testing.T) {
	e := newTestEnv(t)
	id := submitAlert(t, e)

	resp, _ := e.do(t, http.MethodGet, "/api/alerts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPatch, "/api/alerts/"+id+"/resolve", nil, map[string]string{middleware.AdminKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	alert, err := e.store.GetAlert(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusActive, alert.Status)

	resp, _ = e.do(t, http.MethodPost, "/api/auth/token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, wsResp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(e.srv.URL, "http")+"/api/ws", nil)
	require.Error(t, err)
	require.NotNil(t, wsResp)
	assert.Equal(t, http.StatusUnauthorized, wsResp.StatusCode)
	assert.Equal(t, 0, e.hub.ClientCount())
}

func TestAuthorityRoutes_Lists(t *testing.T) {
	e := newTestEnv(t)
	id := submitAlert(t, e)

	resp, _ := e.do(t, http.MethodPost, "/api/reports", map[string]any{
		"userId":   "u1",
		"title":    "Road blocked",
		"category": "landslide",
		"location": map[string]float64{"lat": 30.1, "lng": 79.2},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	auth := map[string]string{middleware.AdminKeyHeader: adminKey}

	resp, body := e.do(t, http.MethodGet, "/api/alerts?limit=10", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["alerts"], 1)

	resp, body = e.do(t, http.MethodGet, "/api/reports", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["reports"], 1)

	resp, body = e.do(t, http.MethodGet, "/api/heatmap", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["points"], 2)

	resp, body = e.do(t, http.MethodPost, "/api/alerts/"+id+"/efir", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	efir := body["efir"].(map[string]any)
	assert.Equal(t, id, efir["alertId"])
	assert.Equal(t, "registered", efir["status"])

	resp, _ = e.do(t, http.MethodPost, "/api/alerts/"+uuid.NewString()+"/efir", nil, auth)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPatch, "/api/alerts/not-a-uuid/resolve", nil, auth)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = e.do(t, http.MethodGet, "/api/alerts/user/u1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["alerts"], 1)

	resp, body = e.do(t, http.MethodGet, "/api/reports/user/other", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["reports"], 0)
}

func TestSubmitAlert_InvalidInputNotPersisted(t *testing.T) {
	e := newTestEnv(t)
	conn := e.dial(t)

	resp, body := e.do(t, http.MethodPost, "/api/alerts", map[string]any{"description": "no user"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "userId", body["field"])

	resp, _ = e.do(t, http.MethodPost, "/api/alerts", map[string]any{
		"userId":   "u1",
		"location": map[string]float64{"lat": 123, "lng": 0},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	stored, err := e.store.ListAlerts(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, stored)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestSubmitAlert_UnusualContactEmailAccepted(t *testing.T) {
	e := newTestEnv(t)
	conn := e.dial(t)

	resp, body := e.do(t, http.MethodPost, "/api/alerts", map[string]any{
		"userId":       "u1",
		"contactEmail": "o'brien@example.com",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)

	kind, data := readEvent(t, conn)
	assert.Equal(t, models.EventAlertCreated, kind)
	assert.Equal(t, id, data["id"])
	assert.Equal(t, "o'brien@example.com", data["contactEmail"])
	assert.Equal(t, "Emergency SOS from o'brien@example.com", data["message"])

	stored, err := e.store.ListAlerts(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestSubmitAlert_IdempotencyKey(t *testing.T) {
	e := newTestEnv(t)
	body := map[string]any{"userId": "u1"}
	headers := map[string]string{middleware.IdempotencyHeader: "sos-1"}

	resp, _ := e.do(t, http.MethodPost, "/api/alerts", body, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, decoded := e.do(t, http.MethodPost, "/api/alerts", body, headers)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate request", decoded["error"])

	stored, err := e.store.ListAlerts(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestEventsStream_SSE(t *testing.T) {
	e := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.srv.URL+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.AdminKeyHeader, adminKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	readUntil := func(prefix string) string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, prefix) {
				return strings.TrimSpace(strings.TrimPrefix(line, prefix))
			}
		}
	}

	assert.Equal(t, "ready", readUntil("event:"))
	assert.Equal(t, 1, e.hub.ClientCount())

	id := submitAlert(t, e)
	assert.Equal(t, string(models.EventAlertCreated), readUntil("event:"))
	assert.Contains(t, readUntil("data:"), id)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, err := http.Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
