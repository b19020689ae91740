package realtime

import (
	"context"
	"errors"

	"focusflow/backend/internal/protocol"
	"focusflow/backend/internal/timer"
)

// Permission mirrors the browser Notification.permission values.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

var (
	ErrPermissionNotGranted = errors.New("notification permission not granted")
	ErrNoClients            = errors.New("no connected clients")
)

// Permission returns what userID's clients last reported.
func (h *Hub) Permission(userID string) Permission {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if p, ok := h.permissions[userID]; ok {
		return p
	}
	return PermissionDefault
}

func (h *Hub) setPermission(userID string, permission Permission) {
	h.mu.Lock()
	h.permissions[userID] = permission
	h.mu.Unlock()
	h.logger.Debug("notification permission", "user_id", userID, "permission", permission)
}

// Notifier returns the timer.Notifier that reaches userID's connections.
func (h *Hub) Notifier(userID string) timer.Notifier {
	return &userNotifier{hub: h, userID: userID}
}

type userNotifier struct {
	hub    *Hub
	userID string
}

// RequestPermission asks the clients once; a recorded answer is final.
func (n *userNotifier) RequestPermission(context.Context) error {
	if n.hub.Permission(n.userID) != PermissionDefault {
		return nil
	}
	if n.hub.Publish(n.userID, protocol.TypePermissionRequest, nil) == 0 {
		return ErrNoClients
	}
	return nil
}

func (n *userNotifier) Notify(_ context.Context, title, body string) error {
	if n.hub.Permission(n.userID) != PermissionGranted {
		return ErrPermissionNotGranted
	}
	payload := protocol.NotificationPayload{Title: title, Body: body}
	if n.hub.Publish(n.userID, protocol.TypeTimerNotification, payload) == 0 {
		return ErrNoClients
	}
	return nil
}
