package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/store"
)

func dial(t *testing.T, hub *Hub, userID uuid.UUID) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	require.Eventually(t, func() bool { return hub.Connected(userID) }, time.Second, 10*time.Millisecond)
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, ws.ReadJSON(&ev))
	return ev
}

func TestHubSendTargetsUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	alice, bob := uuid.New(), uuid.New()

	wsAlice := dial(t, hub, alice)
	dial(t, hub, bob)

	ev := NewEvent(EventMessageCreated, alice, map[string]string{"content": "hi"})
	assert.Equal(t, 1, hub.Send(alice, ev))

	got := readEvent(t, wsAlice)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, EventMessageCreated, got.Type)
	assert.Equal(t, alice, got.UserID)
}

func TestHubSendWithoutConnections(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	assert.Equal(t, 0, hub.Send(uuid.New(), NewEvent(EventMessageStatus, uuid.Nil, nil)))
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := dial(t, hub, uuid.New())
	b := dial(t, hub, uuid.New())

	assert.Equal(t, 2, hub.Dispatch(NewEvent(EventConversationUpdated, uuid.Nil, nil)))
	assert.Equal(t, EventConversationUpdated, readEvent(t, a).Type)
	assert.Equal(t, EventConversationUpdated, readEvent(t, b).Type)
}

func TestHubDropsClosedConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	user := uuid.New()
	ws := dial(t, hub, user)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return !hub.Connected(user) }, 2*time.Second, 10*time.Millisecond)
}

func TestNewEventIDsAreUnique(t *testing.T) {
	a := NewEvent(EventMessageCreated, uuid.Nil, nil)
	b := NewEvent(EventMessageCreated, uuid.Nil, nil)
	assert.Len(t, a.ID, 26)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestLocalPublisher(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	user := uuid.New()
	ws := dial(t, hub, user)

	require.NoError(t, NewLocalPublisher(hub).Publish(context.Background(), NewEvent(EventMessageStatus, user, nil)))
	assert.Equal(t, EventMessageStatus, readEvent(t, ws).Type)
}

func TestRedisRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	rs := store.NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	hub := NewHub(zerolog.Nop())
	user := uuid.New()
	ws := dial(t, hub, user)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Relay(ctx, rs, hub, zerolog.Nop())

	// Wait for the subscription before publishing.
	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("")) > 0
	}, time.Second, 10*time.Millisecond)

	ev := NewEvent(EventConversationUpdated, user, map[string]any{"unread_count": 2})
	require.NoError(t, NewRedisPublisher(rs).Publish(ctx, ev))

	got := readEvent(t, ws)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, float64(2), got.Data.(map[string]any)["unread_count"])
}
