package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ParseClientMessage decodes raw and checks that it is a known client
// message with a well formed payload.
func ParseClientMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch msg.Type {
	case TypePermission:
		var payload PermissionPayload
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return nil, err
		}
	case TypeTimerCommand:
		var payload TimerCommandPayload
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return nil, err
		}
		if !IsTimerAction(payload.Action) {
			return nil, fmt.Errorf("unknown timer action %q", payload.Action)
		}
	case "":
		return nil, errors.New("missing message type")
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return &msg, nil
}

func IsTimerAction(action string) bool {
	switch action {
	case ActionStart, ActionPause, ActionReset, ActionSkip:
		return true
	}
	return false
}

func decodePayload(raw json.RawMessage, dest interface{}) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
