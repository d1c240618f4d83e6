package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"harbor-server/internal/auth"
	"harbor-server/internal/channel"
	"harbor-server/internal/logger"
	"harbor-server/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16384
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	Conn      *websocket.Conn
	UserID    string
	Send      chan []byte
	Connected bool

	// channel ids this socket has a live filter on
	channels map[string]bool

	mu sync.RWMutex
}

func newClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		Conn:      conn,
		UserID:    userID,
		Send:      make(chan []byte, 32),
		Connected: true,
		channels:  make(map[string]bool),
	}
}

// close marks the client dead and closes its send queue. Idempotent.
// The write lock excludes any in-flight trySend, so the queue is never
// written after it closes.
func (c *Client) close() {
	c.mu.Lock()
	if c.Connected {
		c.Connected = false
		close(c.Send)
	}
	c.mu.Unlock()
}

func (c *Client) connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Connected
}

// trySend queues a frame for the write pump. Frames to a closed client
// are dropped. Returns false only when a live client's queue is full.
func (c *Client) trySend(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.Connected {
		return true
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) isSubscribed(channelID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channelID]
}

func (c *Client) subscribe(channelID string) {
	c.mu.Lock()
	c.channels[channelID] = true
	c.mu.Unlock()
}

func (c *Client) unsubscribe(channelID string) {
	c.mu.Lock()
	delete(c.channels, channelID)
	c.mu.Unlock()
}

type subscribeFrame struct {
	ChannelID string `json:"channel_id"`
}

func decodeSubscribeFrame(data interface{}) (subscribeFrame, bool) {
	raw, err := json.Marshal(data)
	if err != nil {
		return subscribeFrame{}, false
	}
	var frame subscribeFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.ChannelID == "" {
		return subscribeFrame{}, false
	}
	return frame, true
}

func (c *Client) readPump(hub *Hub) {
	defer func() {
		// Only unregister if this client is still the active one for its user
		hub.mu.RLock()
		current, exists := hub.userClients[c.UserID]
		isCurrent := exists && current == c
		hub.mu.RUnlock()

		if isCurrent {
			hub.unregister <- c
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if !c.connected() {
			break
		}

		messageType, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warnf("socket error for user %s: %v", c.UserID, err)
			}
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Warnf("bad frame from %s: %v", c.UserID, err)
			continue
		}

		switch msg.Type {
		case "subscribe":
			frame, ok := decodeSubscribeFrame(msg.Data)
			if !ok {
				continue
			}
			// Message reads are member-only, so a filter only goes
			// live when a membership row exists for this user.
			if _, err := channel.GetMember(frame.ChannelID, c.UserID); err != nil {
				logger.Warnf("subscribe to channel %s refused for user %s", frame.ChannelID, c.UserID)
				continue
			}
			c.subscribe(frame.ChannelID)

		case "unsubscribe":
			frame, ok := decodeSubscribeFrame(msg.Data)
			if !ok {
				continue
			}
			c.unsubscribe(frame.ChannelID)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Warnf("write to %s failed: %v", c.UserID, err)
				return
			}
			metrics.AddWebSocketOut(int64(len(frame)))

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.connected() {
				return
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warnf("ping to %s failed: %v", c.UserID, err)
				return
			}
		}
	}
}

// HandleWebSocket upgrades an authenticated request into a push
// connection. The bearer token travels in the Authorization header or
// a token query parameter (browser WebSocket API cannot set headers).
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	u, err := auth.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid or expired session", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	client := newClient(conn, u.ID)
	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	GlobalHub.HandleWebSocket(w, r)
}
