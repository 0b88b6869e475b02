package websocket

// Central hub managing all connections.
// Each WebSocket connection runs in its own goroutines but all shared
// state lives in the hub's Run loop and is reached through channels,
// so the clients map needs no lock.

import (
	"context"
	"log/slog"

	"linkup/internal/microservices/presence"
	"linkup/internal/shared"
)

// TokenValidator checks a bearer token presented over the channel.
// Implemented by the auth service.
type TokenValidator interface {
	ParseClaims(tokenString string) (*shared.AuthClaims, error)
}

type authRequest struct {
	client *Client
	token  string
}

type directMessage struct {
	userID string
	msg    *Message
}

type Hub struct {
	register     chan *Client
	unregister   chan *Client
	authenticate chan authRequest
	broadcast    chan *Message
	direct       chan directMessage

	clients map[string]*Client // connection ID -> client, owned by Run
	done    chan struct{}      // closed when Run returns; unblocks senders

	registry    presence.Registry
	broadcaster *presence.Broadcaster
	validator   TokenValidator
	logger      *slog.Logger
}

// constructor for Hub
func NewHub(registry presence.Registry, validator TokenValidator) *Hub {
	return &Hub{
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		authenticate: make(chan authRequest),
		broadcast:    make(chan *Message, 16),
		direct:       make(chan directMessage, 16),
		clients:      make(map[string]*Client),
		done:         make(chan struct{}),
		registry:     registry,
		validator:    validator,
		logger:       slog.Default(),
	}
}

// SetBroadcaster wires the presence broadcaster in after construction
// (hub and broadcaster reference each other).
func (h *Hub) SetBroadcaster(b *presence.Broadcaster) {
	h.broadcaster = b
}

// Register hands a new connection to the hub loop.
// All senders select against done so a pump finishing after shutdown
// (nobody drains the channels anymore) cannot block forever.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a connection; duplicate calls are absorbed.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Authenticate upgrades an anonymous connection with a bearer token.
func (h *Hub) Authenticate(c *Client, token string) {
	select {
	case h.authenticate <- authRequest{client: c, token: token}:
	case <-h.done:
	}
}

// Broadcast sends an event to every connected client.
// Satisfies presence.SnapshotPublisher.
func (h *Hub) Broadcast(event string, payload any) {
	msg, err := NewMessage(MessageType(event), payload)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// SendToUser delivers an event to every live connection of one user.
func (h *Hub) SendToUser(userID, event string, payload any) {
	msg, err := NewMessage(MessageType(event), payload)
	if err != nil {
		return
	}
	select {
	case h.direct <- directMessage{userID: userID, msg: msg}:
	case <-h.done:
	}
}

// Run owns the clients map until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.clients[client.ID] = client
			h.logger.Info("connection_established", "connection_id", client.ID)
			if client.UserID != "" {
				// authenticated at upgrade time
				h.associate(client)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client.ID]; !ok {
				continue // duplicate disconnect event
			}
			delete(h.clients, client.ID)
			close(client.SendChannel)
			h.logger.Info("connection_closed", "connection_id", client.ID)

			if _, wentOffline := h.registry.Disassociate(client.ID); wentOffline {
				h.triggerPresence()
			}

		case req := <-h.authenticate:
			claims, err := h.validator.ParseClaims(req.token)
			if err != nil {
				h.logger.Warn("channel_auth_rejected", "connection_id", req.client.ID, "error", err.Error())
				req.client.SendMessage(NewErrorMessage("invalid token"))
				continue
			}
			req.client.UserID = claims.UserID
			req.client.UserName = claims.Username
			h.associate(req.client)

		case msg := <-h.broadcast:
			data, err := msg.ToJSON()
			if err != nil {
				continue
			}
			for id, client := range h.clients {
				select {
				case client.SendChannel <- data:
				default:
					// slow client, drop the message rather than stall the loop
					h.logger.Warn("broadcast_dropped", "connection_id", id)
				}
			}

		case dm := <-h.direct:
			data, err := dm.msg.ToJSON()
			if err != nil {
				continue
			}
			for _, connID := range h.registry.ConnectionIDs(dm.userID) {
				client, ok := h.clients[connID]
				if !ok {
					continue
				}
				select {
				case client.SendChannel <- data:
				default:
					h.logger.Warn("direct_send_dropped", "connection_id", connID, "user_id", dm.userID)
				}
			}
		}
	}
}

// associate registers the authenticated connection with presence
func (h *Hub) associate(client *Client) {
	h.logger.Info("connection_authenticated", "connection_id", client.ID, "user_id", client.UserID)
	if wentOnline := h.registry.Associate(client.ID, client.UserID); wentOnline {
		h.triggerPresence()
	}
}

func (h *Hub) triggerPresence() {
	if h.broadcaster != nil {
		h.broadcaster.Trigger()
	}
}

func (h *Hub) closeAll() {
	for id, client := range h.clients {
		close(client.SendChannel)
		h.registry.Disassociate(id)
		delete(h.clients, id)
	}
}
