package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	msg := &Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
	}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	msg.Payload = data
	return msg, nil
}

func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorPayload{Code: code, Message: message})
}

// Server → Client message types.
const (
	TypeTimerState        = "timer.state"
	TypeTimerNotification = "timer.notification"
	TypePermissionRequest = "notification.requestPermission"
	TypeError             = "error"
)

// Client → Server message types.
const (
	TypePermission   = "notification.permission"
	TypeTimerCommand = "timer.command"
)

// Timer command actions.
const (
	ActionStart = "start"
	ActionPause = "pause"
	ActionReset = "reset"
	ActionSkip  = "skip"
)

// Error codes.
const (
	ErrInvalidMessage = "INVALID_MESSAGE"
	ErrCommandFailed  = "COMMAND_FAILED"
)

type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PermissionPayload struct {
	Granted bool `json:"granted"`
}

type TimerCommandPayload struct {
	Action string `json:"action"`
}
