package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/safetrip-backend/internal/http/middleware"
	"github.com/ignatzorin/safetrip-backend/internal/logger"
	"github.com/ignatzorin/safetrip-backend/internal/ws"
)

const ssePingPeriod = 25 * time.Second

// WSHandler подключает власти к потоку событий: websocket или SSE.
// Авторизация выполняется middleware до апгрейда соединения.
type WSHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер. Origin проверяется по тому же списку, что и CORS.
func NewWSHandler(hub *ws.Hub, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	_, allowAll := allowed["*"]

	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

func subscriberID(c *gin.Context) string {
	return middleware.CurrentSubject(c) + "/" + uuid.NewString()[:8]
}

// Handle обслуживает GET /api/ws?token=...
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту.
		logger.Log.WithError(err).Debug("ws: апгрейд отклонён")
		return
	}

	ws.NewClient(conn, h.hub, subscriberID(c)).Run()
}

// Events обслуживает GET /api/events?token=... (Server-Sent Events).
func (h *WSHandler) Events(c *gin.Context) {
	sub := ws.NewSSESubscriber(subscriberID(c), ws.SendBuffer)
	h.hub.Register(sub)
	defer h.hub.Unregister(sub)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ping := time.NewTicker(ssePingPeriod)
	defer ping.Stop()

	// Первое событие подтверждает подписку, чтобы клиент знал, что поток открыт.
	c.SSEvent("ready", gin.H{"subscriber": sub.ID()})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-sub.Done():
			return false
		case f := <-sub.Frames():
			c.SSEvent(string(f.Type), string(f.Payload))
			return true
		case <-ping.C:
			c.SSEvent("ping", time.Now().UnixMilli())
			return true
		}
	})
}
