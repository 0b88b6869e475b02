package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Individual client connection handler.
// Each connection runs a read pump and a write pump in their own
// goroutines; everything else goes through the hub's channels.

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer => no pong = no connection
	PingPeriod     = (PongWait * 9) / 10 // send ping before pong wait expires, 10% slack for network jitter
	MaxMessageSize = 512                 // maximum message size allowed from peer
)

var ErrSendBufferFull = errors.New("client send buffer full")

type Client struct {
	ID          string          // unique connection ID
	UserID      string          // empty until the client authenticates
	UserName    string          // display name from auth claims
	Conn        *websocket.Conn // WebSocket connection
	SendChannel chan []byte     // channel for outbound(chan <-) messages
	Hub         *Hub            // reference to the central Hub
	CreatedAt   time.Time
}

// constructor new client
func NewClient(id, userID, userName string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:          id,
		UserID:      userID,
		UserName:    userName,
		Conn:        conn,
		SendChannel: make(chan []byte, MaxMessageSize/2), // buffered outbound queue
		Hub:         hub,
		CreatedAt:   time.Now().UTC(),
	}
}

// ReadPump: reads client messages until the connection drops, then
// unregisters. The only client-initiated message the server acts on is
// the in-channel auth.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "client_id", c.ID, "error", err)
			}
			return
		}

		msg, err := MessageFromJSON(data)
		if err != nil {
			c.SendMessage(NewErrorMessage("malformed message"))
			continue
		}

		switch msg.Type {
		case TypeAuth:
			var payload AuthPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				c.SendMessage(NewErrorMessage("malformed auth payload"))
				continue
			}
			c.Hub.Authenticate(c, payload.Token)
		default:
			// clients do not publish anything else over this channel
			c.SendMessage(NewErrorMessage("unsupported message type"))
		}
	}
}

// WritePump: drains the send channel to the peer and keeps the heartbeat
// going. Closing SendChannel makes it send a close frame and return.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.SendChannel:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				// hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage: queues a message for the write pump without blocking.
// A full buffer means the client is too slow; the message is dropped.
func (c *Client) SendMessage(msg *Message) error {
	data, err := msg.ToJSON()
	if err != nil {
		return err
	}
	select {
	case c.SendChannel <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}
