package model

import "time"

// RoomID identifies a chat channel. Valid ids are positive.
type RoomID int64

// Valid reports whether the id can be used to join or post to a room.
func (id RoomID) Valid() bool {
	return id > 0
}

// ChatMessage is a message received from or posted to a room.
type ChatMessage struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Image       string `json:"image"`
	Message     string `json:"message"`
	// Timestamp is in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Time converts Timestamp to a time.Time.
func (m ChatMessage) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// EventType tags a ChatEvent.
type EventType string

const (
	EventConnected EventType = "connected"
	EventMessage   EventType = "message"
)

// ChatEvent is one record of the chat stream. Data is only set for EventMessage.
type ChatEvent struct {
	Type EventType    `json:"type"`
	Data *ChatMessage `json:"data,omitempty"`
}

// Message returns the carried message when the event is a message event with a payload.
func (e ChatEvent) Message() (ChatMessage, bool) {
	if e.Type != EventMessage || e.Data == nil {
		return ChatMessage{}, false
	}
	return *e.Data, true
}

// SendMessageRequest is the body of a chat post.
type SendMessageRequest struct {
	RoomID  RoomID `json:"roomId"`
	Message string `json:"message"`
}

// SendMessageResponse is returned after posting to a room.
type SendMessageResponse struct {
	Success bool `json:"success"`
}
