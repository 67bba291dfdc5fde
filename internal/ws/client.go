package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ignatzorin/safetrip-backend/internal/goroutine"
	"github.com/ignatzorin/safetrip-backend/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// SendBuffer размер очереди исходящих кадров одного подписчика.
	SendBuffer = 64

	TransportWebsocket = "websocket"
)

// Client представляет одно подключение WebSocket.
type Client struct {
	id        string
	conn      *websocket.Conn
	hub       *Hub
	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient создаёт нового клиента.
func NewClient(conn *websocket.Conn, hub *Hub, id string) *Client {
	return &Client{
		id:   id,
		conn: conn,
		hub:  hub,
		send: make(chan Frame, SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string        { return c.id }
func (c *Client) Transport() string { return TransportWebsocket }

func (c *Client) Enqueue(f Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// Run регистрирует клиента и обслуживает соединение до его закрытия.
func (c *Client) Run() {
	c.hub.Register(c)
	goroutine.SafeGo("ws-write-"+c.id, c.writePump)
	c.readPump()
}

// Close закрывает соединение.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.Unregister(c)
	})
}

// readPump нужен только для pong и обнаружения разрыва: входящие сообщения игнорируются.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.WithField("subscriber", c.id).Debugf("ws: соединение оборвано: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, f.Payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
