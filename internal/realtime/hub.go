package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"harbor-server/internal/logger"
	"harbor-server/internal/user"
)

// Message is the envelope for every frame pushed over the socket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MessageEvent is the payload delivered once per inserted message row.
// The author projection is a placeholder; subscribers resolve the real
// profile asynchronously.
type MessageEvent struct {
	ID        string       `json:"id"`
	ChannelID string       `json:"channel_id"`
	UserID    string       `json:"user_id"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
	User      user.Profile `json:"user"`
}

// Subscription is an in-process handle on one channel's insert feed.
// Unsubscribe is idempotent.
type Subscription struct {
	hub       *Hub
	channelID string
	onMessage func(MessageEvent)
	once      sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		subs := s.hub.channelSubs[s.channelID]
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.hub.channelSubs, s.channelID)
		}
	})
}

type Hub struct {
	clients     map[*Client]bool
	userClients map[string]*Client
	register    chan *Client
	unregister  chan *Client
	broadcast   chan []byte

	// channel id -> in-process subscribers
	channelSubs map[string]map[*Subscription]struct{}

	mu sync.RWMutex
}

var GlobalHub = NewHub()

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan []byte, 512),
		channelSubs: make(map[string]map[*Subscription]struct{}),
	}
}

func (h *Hub) Run() {
	go h.broadcastLoop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if existing, ok := h.userClients[client.UserID]; ok {
				logger.Infof("user %s already connected, closing previous connection", client.UserID)
				if _, tracked := h.clients[existing]; tracked {
					delete(h.clients, existing)
					delete(h.userClients, client.UserID)
					existing.close()
					existing.Conn.Close()
				}
			}
			h.clients[client] = true
			h.userClients[client.UserID] = client
			h.mu.Unlock()
			logger.Infof("user %s connected", client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				delete(h.userClients, client.UserID)
				client.close()
			}
			h.mu.Unlock()
			logger.Infof("user %s disconnected", client.UserID)
		}
	}
}

func (h *Hub) broadcastLoop() {
	for frame := range h.broadcast {
		h.mu.RLock()
		clients := make([]*Client, 0, len(h.clients))
		for client := range h.clients {
			clients = append(clients, client)
		}
		h.mu.RUnlock()

		for _, client := range clients {
			if !client.trySend(frame) {
				logger.Warnf("send queue full for user %s, disconnecting", client.UserID)
				h.unregister <- client
			}
		}
	}
}

// SubscribeChannel registers an in-process callback invoked once per
// message inserted into the channel, in commit order.
func (h *Hub) SubscribeChannel(channelID string, onMessage func(MessageEvent)) *Subscription {
	sub := &Subscription{hub: h, channelID: channelID, onMessage: onMessage}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channelSubs[channelID] == nil {
		h.channelSubs[channelID] = make(map[*Subscription]struct{})
	}
	h.channelSubs[channelID][sub] = struct{}{}
	return sub
}

// PublishMessageInsert fans one inserted row out to the channel's
// in-process subscribers and to socket clients subscribed to the
// channel filter.
func (h *Hub) PublishMessageInsert(event MessageEvent) {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.channelSubs[event.ChannelID]))
	for sub := range h.channelSubs[event.ChannelID] {
		subs = append(subs, sub)
	}
	targets := make([]*Client, 0)
	for client := range h.clients {
		if client.isSubscribed(event.ChannelID) {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.onMessage(event)
	}

	if len(targets) == 0 {
		return
	}

	frame, err := json.Marshal(Message{Type: "message_insert", Data: event})
	if err != nil {
		logger.Errorf("marshal message event: %v", err)
		return
	}
	for _, client := range targets {
		if !client.trySend(frame) {
			logger.Warnf("send queue full for user %s, disconnecting", client.UserID)
			h.unregister <- client
		}
	}
}

// DropChannelFilter clears a user's socket filter on a channel. Called
// when the user's membership in the channel is revoked, so push stops
// the moment read access does.
func (h *Hub) DropChannelFilter(userID, channelID string) {
	h.mu.RLock()
	client, ok := h.userClients[userID]
	h.mu.RUnlock()
	if ok {
		client.unsubscribe(channelID)
	}
}

// Broadcast pushes a typed frame to every connected client, used for
// channel lifecycle events.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	frame, err := json.Marshal(Message{Type: messageType, Data: data})
	if err != nil {
		logger.Errorf("marshal broadcast %s: %v", messageType, err)
		return
	}

	select {
	case h.broadcast <- frame:
	default:
		logger.Warnf("broadcast queue full, dropping %s", messageType)
	}
}

// SendToUser pushes a typed frame to one user's connection, if any.
func (h *Hub) SendToUser(userID, messageType string, data interface{}) {
	h.mu.RLock()
	client, ok := h.userClients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	frame, err := json.Marshal(Message{Type: messageType, Data: data})
	if err != nil {
		logger.Errorf("marshal message to user %s: %v", userID, err)
		return
	}

	if !client.trySend(frame) {
		logger.Warnf("send queue full for user %s, disconnecting", userID)
		h.unregister <- client
	}
}

func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.userClients[userID]
	return ok && client.connected()
}

func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
