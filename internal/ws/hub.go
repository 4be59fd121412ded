package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/feed"
)

// Hub tracks stream connections and their per-user subscriptions.
type Hub struct {
	relay      string
	clients    map[*Client]bool
	users      map[feed.UserID]map[*Client]bool // user -> subscribers
	register   chan *Client
	unregister chan *Client
	broadcast  chan *userMessage
	mu         sync.RWMutex
	logger     *zap.Logger
}

// userMessage is one frame addressed to every subscriber of a user.
type userMessage struct {
	user    feed.UserID
	payload []byte
}

// NewHub creates a Hub for the named relay.
func NewHub(relay string, logger *zap.Logger) *Hub {
	return &Hub{
		relay:      relay,
		clients:    make(map[*Client]bool),
		users:      make(map[feed.UserID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *userMessage, 256),
		logger:     logger,
	}
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down", zap.String("relay", h.relay))
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered",
				zap.String("relay", h.relay),
				zap.String("connID", client.connID),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				// Remove from all subscriber sets
				for user := range client.users {
					if subs, ok := h.users[user]; ok {
						delete(subs, client)
						if len(subs) == 0 {
							delete(h.users, user)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered",
				zap.String("relay", h.relay),
				zap.String("connID", client.connID),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if subs, ok := h.users[msg.user]; ok {
				for client := range subs {
					select {
					case client.send <- msg.payload:
					default:
						// Buffer full, schedule disconnect
						go func(c *Client) {
							h.unregister <- c
						}(client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// shutdown gracefully closes all client connections.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.users = make(map[feed.UserID]map[*Client]bool)
}

// Subscribe adds a client to a user's subscriber set.
func (h *Hub) Subscribe(client *Client, user feed.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.users[user] == nil {
		h.users[user] = make(map[*Client]bool)
	}
	h.users[user][client] = true
	client.users[user] = true

	h.logger.Debug("client subscribed",
		zap.String("relay", h.relay),
		zap.String("connID", client.connID),
		zap.String("user", string(user)),
	)
}

// Unsubscribe removes a client from a user's subscriber set.
func (h *Hub) Unsubscribe(client *Client, user feed.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.users[user]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.users, user)
		}
	}
	delete(client.users, user)

	h.logger.Debug("client unsubscribed",
		zap.String("relay", h.relay),
		zap.String("connID", client.connID),
		zap.String("user", string(user)),
	)
}

// ActiveUsers returns the users with at least one subscriber.
func (h *Hub) ActiveUsers() []feed.UserID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var users []feed.UserID
	for user, subs := range h.users {
		if len(subs) > 0 {
			users = append(users, user)
		}
	}
	return users
}

// BroadcastItem announces a newly stored item to the user's subscribers.
func (h *Hub) BroadcastItem(user feed.UserID, ref feed.ItemRef) {
	h.broadcast <- &userMessage{user: user, payload: BuildItemFrame(user, ref)}
}
