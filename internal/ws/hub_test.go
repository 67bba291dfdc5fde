package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/safetrip-backend/internal/models"
)

type fakeSubscriber struct {
	id     string
	mu     sync.Mutex
	frames []Frame
	cap    int
	closed bool
}

func (f *fakeSubscriber) ID() string        { return f.id }
func (f *fakeSubscriber) Transport() string { return "fake" }

func (f *fakeSubscriber) Enqueue(fr Frame) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || (f.cap > 0 && len(f.frames) >= f.cap) {
		return false
	}
	f.frames = append(f.frames, fr)
	return true
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscriber) received() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Frame(nil), f.frames...)
}

func (f *fakeSubscriber) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestHub_PublishReachesOnlyCurrentSubscribers(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	early := &fakeSubscriber{id: "early"}
	hub.Register(early)

	require.NoError(t, hub.Publish(ctx, models.EventAlertCreated, map[string]string{"n": "1"}))

	late := &fakeSubscriber{id: "late"}
	hub.Register(late)
	require.NoError(t, hub.Publish(ctx, models.EventAlertResolved, map[string]string{"n": "2"}))

	assert.Len(t, early.received(), 2)
	require.Len(t, late.received(), 1)
	assert.Equal(t, models.EventAlertResolved, late.received()[0].Type)
}

func TestHub_PreservesPublishOrder(t *testing.T) {
	hub := NewHub()
	sub := &fakeSubscriber{id: "s"}
	hub.Register(sub)

	for i := 0; i < 20; i++ {
		require.NoError(t, hub.Publish(context.Background(), models.EventAlertCreated, i))
	}

	frames := sub.received()
	require.Len(t, frames, 20)
	for i, f := range frames {
		var ev struct {
			Type string `json:"type"`
			Data int    `json:"data"`
		}
		require.NoError(t, json.Unmarshal(f.Payload, &ev))
		assert.Equal(t, "alert-created", ev.Type)
		assert.Equal(t, i, ev.Data)
	}
}

func TestHub_DropsLaggingSubscriber(t *testing.T) {
	hub := NewHub()
	slow := &fakeSubscriber{id: "slow", cap: 1}
	healthy := &fakeSubscriber{id: "healthy"}
	hub.Register(slow)
	hub.Register(healthy)

	require.NoError(t, hub.Publish(context.Background(), models.EventAlertCreated, 1))
	require.NoError(t, hub.Publish(context.Background(), models.EventAlertCreated, 2))

	assert.Equal(t, 1, hub.ClientCount())
	assert.Eventually(t, slow.isClosed, time.Second, 5*time.Millisecond)
	assert.Len(t, healthy.received(), 2)

	require.NoError(t, hub.Publish(context.Background(), models.EventAlertCreated, 3))
	assert.Len(t, healthy.received(), 3)
	assert.Len(t, slow.received(), 1)
}

func TestHub_RunClosesSubscribersOnShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	sub := &fakeSubscriber{id: "s"}
	hub.Register(sub)
	cancel()
	<-done

	assert.True(t, sub.isClosed())
	assert.Zero(t, hub.ClientCount())

	late := &fakeSubscriber{id: "late"}
	hub.Register(late)
	assert.True(t, late.isClosed())
	assert.Zero(t, hub.ClientCount())
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	sub := &fakeSubscriber{id: "s"}
	hub.Register(sub)
	hub.Unregister(sub)
	hub.Unregister(sub)
	assert.Zero(t, hub.ClientCount())
}

func TestEncodeEvent(t *testing.T) {
	raw, err := EncodeEvent(models.EventAlertResolved, models.AlertResolvedPayload{})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "alert-resolved", decoded["type"])
	assert.Contains(t, decoded, "data")
	assert.NotZero(t, decoded["timestamp"])

	kind, err := peekKind(raw)
	require.NoError(t, err)
	assert.Equal(t, models.EventAlertResolved, kind)

	_, err = peekKind([]byte(`{"data":1}`))
	assert.Error(t, err)
}

func TestSSESubscriber(t *testing.T) {
	s := NewSSESubscriber("sse-1", 1)
	assert.True(t, s.Enqueue(Frame{Type: models.EventAlertCreated}))
	assert.False(t, s.Enqueue(Frame{Type: models.EventAlertCreated}))

	f := <-s.Frames()
	assert.Equal(t, models.EventAlertCreated, f.Type)

	s.Close()
	s.Close()
	assert.False(t, s.Enqueue(Frame{}))
	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestClient_WebsocketDelivery(t *testing.T) {
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(conn, hub, "authority").Run()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), models.EventAlertCreated, "first"))
	require.NoError(t, hub.Publish(context.Background(), models.EventAlertResolved, "second"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second models.Event
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, models.EventAlertCreated, first.Type)
	assert.Equal(t, "first", first.Data)
	assert.Equal(t, models.EventAlertResolved, second.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
