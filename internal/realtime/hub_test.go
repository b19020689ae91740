package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusflow/backend/internal/protocol"
)

const testOrigin = "http://localhost:5173"

type fakeController struct {
	mu       sync.Mutex
	commands []string
	err      error
}

func (f *fakeController) Command(_ context.Context, userID, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, userID+":"+action)
	return f.err
}

func (f *fakeController) Snapshot(_ context.Context, userID string) (interface{}, error) {
	return map[string]string{"user": userID, "status": "idle"}, nil
}

func (f *fakeController) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func newTestHub(t *testing.T) (*Hub, *fakeController, *httptest.Server) {
	t.Helper()
	hub := NewHub([]string{testOrigin}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	controller := &fakeController{}
	hub.SetController(controller)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, controller, server
}

func dial(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=" + userID
	header := http.Header{"Origin": []string{testOrigin}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	msg := readMessage(t, conn)
	require.Equal(t, protocol.TypeTimerState, msg.Type, "snapshot is sent first")
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg protocol.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	msg, err := protocol.NewMessage(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func waitForClients(t *testing.T, hub *Hub, userID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount(userID) == n }, 2*time.Second, 5*time.Millisecond)
}

func TestSnapshotOnConnect(t *testing.T) {
	_, _, server := newTestHub(t)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=u1"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{testOrigin}})
	require.NoError(t, err)
	defer conn.Close()

	msg := readMessage(t, conn)
	assert.Equal(t, protocol.TypeTimerState, msg.Type)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "u1", payload["user"])
}

func TestPublishReachesOnlyThatUser(t *testing.T) {
	hub, _, server := newTestHub(t)
	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")
	waitForClients(t, hub, "alice", 1)
	waitForClients(t, hub, "bob", 1)

	assert.Equal(t, 1, hub.Publish("alice", protocol.TypeTimerState, map[string]int{"timeRemaining": 42}))

	msg := readMessage(t, alice)
	assert.Equal(t, protocol.TypeTimerState, msg.Type)
	assert.JSONEq(t, `{"timeRemaining":42}`, string(msg.Payload))

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "bob must not receive alice's state")
}

func TestPermissionFlow(t *testing.T) {
	hub, _, server := newTestHub(t)
	conn := dial(t, server, "u1")
	waitForClients(t, hub, "u1", 1)
	notifier := hub.Notifier("u1")
	ctx := context.Background()

	assert.Equal(t, PermissionDefault, hub.Permission("u1"))
	assert.ErrorIs(t, notifier.Notify(ctx, "Break over!", "Ready to focus again?"), ErrPermissionNotGranted)

	require.NoError(t, notifier.RequestPermission(ctx))
	assert.Equal(t, protocol.TypePermissionRequest, readMessage(t, conn).Type)

	send(t, conn, protocol.TypePermission, protocol.PermissionPayload{Granted: true})
	require.Eventually(t, func() bool { return hub.Permission("u1") == PermissionGranted }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, notifier.RequestPermission(ctx), "answered request is not repeated")
	require.NoError(t, notifier.Notify(ctx, "Work session complete!", "Time for a short break!"))

	msg := readMessage(t, conn)
	require.Equal(t, protocol.TypeTimerNotification, msg.Type)
	var payload protocol.NotificationPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, protocol.NotificationPayload{Title: "Work session complete!", Body: "Time for a short break!"}, payload)
}

func TestPermissionDenied(t *testing.T) {
	hub, _, server := newTestHub(t)
	conn := dial(t, server, "u1")

	send(t, conn, protocol.TypePermission, protocol.PermissionPayload{Granted: false})
	require.Eventually(t, func() bool { return hub.Permission("u1") == PermissionDenied }, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, hub.Notifier("u1").Notify(context.Background(), "t", "b"), ErrPermissionNotGranted)
}

func TestNotifierWithoutClients(t *testing.T) {
	hub := NewHub(nil, nil)
	assert.ErrorIs(t, hub.Notifier("nobody").RequestPermission(context.Background()), ErrNoClients)
	hub.setPermission("nobody", PermissionGranted)
	assert.ErrorIs(t, hub.Notifier("nobody").Notify(context.Background(), "t", "b"), ErrNoClients)
}

func TestTimerCommand(t *testing.T) {
	_, controller, server := newTestHub(t)
	conn := dial(t, server, "u1")

	send(t, conn, protocol.TypeTimerCommand, protocol.TimerCommandPayload{Action: protocol.ActionStart})
	require.Eventually(t, func() bool { return len(controller.received()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"u1:start"}, controller.received())

	send(t, conn, protocol.TypeTimerCommand, protocol.TimerCommandPayload{Action: "rewind"})
	msg := readMessage(t, conn)
	require.Equal(t, protocol.TypeError, msg.Type)
	var payload protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, protocol.ErrInvalidMessage, payload.Code)
	assert.Len(t, controller.received(), 1)
}

func TestTimerCommandFailure(t *testing.T) {
	_, controller, server := newTestHub(t)
	controller.err = errors.New("store offline")
	conn := dial(t, server, "u1")

	send(t, conn, protocol.TypeTimerCommand, protocol.TimerCommandPayload{Action: protocol.ActionPause})
	msg := readMessage(t, conn)
	require.Equal(t, protocol.TypeError, msg.Type)
	var payload protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, protocol.ErrCommandFailed, payload.Code)
	assert.Equal(t, "store offline", payload.Message)
}

func TestRejectsUnknownOrigin(t *testing.T) {
	_, _, server := newTestHub(t)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=u1"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDisconnectRemovesClient(t *testing.T) {
	hub, _, server := newTestHub(t)
	conn := dial(t, server, "u1")
	waitForClients(t, hub, "u1", 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, "u1", 0)
	assert.Zero(t, hub.Publish("u1", protocol.TypeTimerState, nil))
}

func TestCloseRejectsNewConnections(t *testing.T) {
	hub, _, server := newTestHub(t)
	conn := dial(t, server, "u1")
	waitForClients(t, hub, "u1", 1)

	hub.Close()
	waitForClients(t, hub, "u1", 0)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=u1"
	_, _, err = websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{testOrigin}})
	assert.Error(t, err)
}
