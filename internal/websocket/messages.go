package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/chatgate/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeChat  MessageType = "chat"
	MessageTypeChunk MessageType = "chunk"
	MessageTypeDone  MessageType = "done"
	MessageTypePing  MessageType = "ping"
	MessageTypePong  MessageType = "pong"
	MessageTypeError MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// ChatMessage is one user turn sent by the client
type ChatMessage struct {
	BaseMessage
	Message   string             `json:"message"`
	SessionID string             `json:"session_id"`
	History   []entities.Message `json:"history,omitempty"`
}

// ChunkMessage carries one piece of the assistant reply
type ChunkMessage struct {
	BaseMessage
	SessionID string `json:"session_id"`
	Chunk     string `json:"chunk"`
}

// DoneMessage marks the end of a reply
type DoneMessage struct {
	BaseMessage
	SessionID string `json:"session_id"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeChat:
		var msg ChatMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid chat message: %w", err)
		}
		if err := v.validateChat(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message missing type field")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateChat checks the history the client supplies; the message text is checked by the chat service
func (v *MessageValidator) validateChat(msg *ChatMessage) error {
	for i, m := range msg.History {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("history[%d]: %w", i, err)
		}
	}
	return nil
}

func newBase(t MessageType, messageID string) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: messageID,
	}
}

// CreateChunkMessage creates a reply chunk for the chat identified by messageID
func CreateChunkMessage(messageID, sessionID, chunk string) *ChunkMessage {
	return &ChunkMessage{
		BaseMessage: newBase(MessageTypeChunk, messageID),
		SessionID:   sessionID,
		Chunk:       chunk,
	}
}

// CreateDoneMessage creates the completion message for the chat identified by messageID
func CreateDoneMessage(messageID, sessionID string) *DoneMessage {
	return &DoneMessage{
		BaseMessage: newBase(MessageTypeDone, messageID),
		SessionID:   sessionID,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(messageID, code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError, messageID),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(messageID, data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong, messageID),
		Data:        data,
	}
}
