package websocket

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Message protocol definitions

// Message types and structures
type MessageType string

const ( //trigger when +
	TypeAuth         MessageType = "auth"         // client authenticates over the channel
	TypeOnlineUsers  MessageType = "online_users" // presence snapshot (full replacement list)
	TypeNotification MessageType = "notification" // in-app notification delivery
	TypeSystem       MessageType = "system"       // system message
	TypeError        MessageType = "error"        // server rejects a client message
)

// Message structure for WebSocket communication
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"` // time in UTC format
}

// AuthPayload is the body of a TypeAuth message
type AuthPayload struct {
	Token string `json:"token"`
}

// constructor new message, payload marshaled in place
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal message payload", "type", msgType, "error", err)
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewErrorMessage builds a TypeError message with a reason string
func NewErrorMessage(reason string) *Message {
	msg, _ := NewMessage(TypeError, map[string]string{"reason": reason})
	return msg
}

// ToJSON: marshal Message struct to JSON
func (m *Message) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("Failed to marshal message to JSON", "error", err)
		return nil, err
	}
	return data, nil
}

// MessageFromJSON: unmarshal JSON data to Message struct
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	err := json.Unmarshal(data, &msg)
	if err != nil {
		slog.Error("Failed to unmarshal message from JSON", "error", err)
		return nil, err
	}
	return &msg, nil
}
