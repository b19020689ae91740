package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMessage(t *testing.T) {
	valid := map[string]string{
		"permission granted": `{"type":"notification.permission","payload":{"granted":true}}`,
		"permission denied":  `{"type":"notification.permission","payload":{"granted":false}}`,
		"start":              `{"type":"timer.command","payload":{"action":"start"}}`,
		"skip":               `{"type":"timer.command","payload":{"action":"skip"}}`,
	}
	for name, raw := range valid {
		t.Run(name, func(t *testing.T) {
			msg, err := ParseClientMessage([]byte(raw))
			require.NoError(t, err)
			assert.NotEmpty(t, msg.Type)
		})
	}

	invalid := map[string]string{
		"not json":         `{"type":`,
		"missing type":     `{"payload":{}}`,
		"server only type": `{"type":"timer.state","payload":{}}`,
		"missing payload":  `{"type":"timer.command"}`,
		"unknown action":   `{"type":"timer.command","payload":{"action":"rewind"}}`,
		"bad payload":      `{"type":"notification.permission","payload":{"granted":"yes"}}`,
	}
	for name, raw := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParseClientMessage([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TypeTimerNotification, NotificationPayload{Title: "Break over!", Body: "Ready to focus again?"})
	require.NoError(t, err)
	assert.Equal(t, TypeTimerNotification, msg.Type)
	assert.JSONEq(t, `{"title":"Break over!","body":"Ready to focus again?"}`, string(msg.Payload))
	assert.False(t, msg.Timestamp.IsZero())

	empty, err := NewMessage(TypePermissionRequest, nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Payload)
}
