// Package realtime pushes conversation events to connected dashboards over
// websockets.
package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/crypto"
	"github.com/rukayathamzat/Airhost2402-sub001/internal/metrics"
)

// Event types.
const (
	EventConversationUpdated = "conversation.updated"
	EventMessageCreated      = "message.created"
	EventMessageStatus       = "message.status"
	EventNotification        = "notification"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	maxReadLen = 512
)

// Event is a single realtime update. A nil UserID targets every connection.
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	UserID uuid.UUID `json:"user_id"`
	Data   any       `json:"data,omitempty"`
}

// NewEvent stamps a new event with a sortable ID.
func NewEvent(eventType string, userID uuid.UUID, data any) Event {
	return Event{
		ID:     crypto.NewEventID(),
		Type:   eventType,
		UserID: userID,
		Data:   data,
	}
}

// conn serializes writes to one websocket.
type conn struct {
	ws     *websocket.Conn
	userID uuid.UUID

	mu       sync.Mutex
	lastSeen time.Time
}

func (c *conn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

func (c *conn) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *conn) idle() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastSeen)
}

// Hub tracks websocket connections per user.
type Hub struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]map[*conn]struct{}
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		conns: make(map[uuid.UUID]map[*conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth happens on the bearer token, not the origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) add(ws *websocket.Conn, userID uuid.UUID) *conn {
	c := &conn{ws: ws, userID: userID, lastSeen: time.Now()}

	h.mu.Lock()
	if _, ok := h.conns[userID]; !ok {
		h.conns[userID] = make(map[*conn]struct{})
	}
	h.conns[userID][c] = struct{}{}
	total := len(h.conns[userID])
	h.mu.Unlock()

	metrics.RealtimeConnections.Inc()
	h.logger.Debug().Str("user_id", userID.String()).Int("connections", total).Msg("ws connected")
	return c
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	conns, ok := h.conns[c.userID]
	if ok {
		if _, present := conns[c]; !present {
			ok = false
		} else {
			delete(conns, c)
			if len(conns) == 0 {
				delete(h.conns, c.userID)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		metrics.RealtimeConnections.Dec()
		h.logger.Debug().Str("user_id", c.userID.String()).Msg("ws disconnected")
	}
	_ = c.ws.Close()
}

// snapshot copies the target connections so writes happen without the lock.
func (h *Hub) snapshot(userID uuid.UUID) []*conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*conn
	if userID == uuid.Nil {
		for _, conns := range h.conns {
			for c := range conns {
				out = append(out, c)
			}
		}
		return out
	}
	for c := range h.conns[userID] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) deliver(targets []*conn, ev Event) int {
	sent := 0
	for _, c := range targets {
		if err := c.write(ev); err != nil {
			h.logger.Warn().Err(err).Str("user_id", c.userID.String()).Msg("ws send failed")
			h.remove(c)
			continue
		}
		sent++
	}
	return sent
}

// Send writes the event to every connection of one user and returns how many
// connections received it.
func (h *Hub) Send(userID uuid.UUID, ev Event) int {
	return h.deliver(h.snapshot(userID), ev)
}

// Broadcast writes the event to every connection.
func (h *Hub) Broadcast(ev Event) int {
	return h.deliver(h.snapshot(uuid.Nil), ev)
}

// Dispatch routes an event by its UserID.
func (h *Hub) Dispatch(ev Event) int {
	if ev.UserID == uuid.Nil {
		return h.Broadcast(ev)
	}
	return h.Send(ev.UserID, ev)
}

// Connected reports whether the user has at least one open connection.
func (h *Hub) Connected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// Heartbeat pings every connection at the interval and drops the ones that
// stopped answering. It returns when done is closed.
func (h *Hub) Heartbeat(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, c := range h.snapshot(uuid.Nil) {
				if c.idle() > 2*interval {
					h.remove(c)
					continue
				}
				if err := c.ping(); err != nil {
					h.remove(c)
				}
			}
		}
	}
}

// ServeWS upgrades the request and keeps the connection registered until the
// client goes away. The caller has already authenticated userID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	c := h.add(ws, userID)
	defer h.remove(c)

	ws.SetReadLimit(maxReadLen)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		c.touch()
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only send pongs; anything else is read and dropped.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		c.touch()
	}
}
