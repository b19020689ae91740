package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "focusflow/backend/internal/errors"
	"focusflow/backend/internal/middleware"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/realtime"
	"focusflow/backend/internal/service"
)

type TimerHandler struct {
	timerService *service.TimerService
	hub          *realtime.Hub
}

type importSessionRequest struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	Type        string    `json:"type"`
	Duration    int       `json:"duration"`
}

func NewTimerHandler(timerService *service.TimerService, hub *realtime.Hub) *TimerHandler {
	return &TimerHandler{timerService: timerService, hub: hub}
}

func (h *TimerHandler) GetState(c *gin.Context) {
	state, apiErr := h.timerService.GetState(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TimerHandler) Start(c *gin.Context) {
	h.transition(c, h.timerService.Start)
}

func (h *TimerHandler) Pause(c *gin.Context) {
	h.transition(c, h.timerService.Pause)
}

func (h *TimerHandler) Reset(c *gin.Context) {
	h.transition(c, h.timerService.Reset)
}

func (h *TimerHandler) Skip(c *gin.Context) {
	h.transition(c, h.timerService.Skip)
}

func (h *TimerHandler) ListSessions(c *gin.Context) {
	from, err := parseDateParam(c.Query("from"))
	if err != nil {
		writeError(c, apperrors.Validation("invalid date range", map[string]string{"from": "must be RFC3339 or YYYY-MM-DD"}))
		return
	}
	to, err := parseDateParam(c.Query("to"))
	if err != nil {
		writeError(c, apperrors.Validation("invalid date range", map[string]string{"to": "must be RFC3339 or YYYY-MM-DD"}))
		return
	}

	sessions, apiErr := h.timerService.ListSessions(c.Request.Context(), middleware.UserID(c), model.DateRange{From: from, To: to})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *TimerHandler) ImportSession(c *gin.Context) {
	var req importSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidBody(c)
		return
	}

	session, apiErr := h.timerService.ImportSession(c.Request.Context(), middleware.UserID(c), service.ImportSessionInput{
		ID:          req.ID,
		StartedAt:   req.StartedAt,
		CompletedAt: req.CompletedAt,
		Type:        req.Type,
		Duration:    req.Duration,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

func (h *TimerHandler) Summary(c *gin.Context) {
	days := service.DefaultSummaryDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(c, apperrors.Validation("invalid days", map[string]string{"days": "must be a positive integer"}))
			return
		}
		days = parsed
	}

	summary, apiErr := h.timerService.Summary(c.Request.Context(), middleware.UserID(c), days)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// WebSocket upgrades the connection; gin must not write a response after a
// successful upgrade.
func (h *TimerHandler) WebSocket(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request, middleware.UserID(c)); err != nil {
		if !c.Writer.Written() {
			writeError(c, apperrors.BadRequest("websocket_upgrade_failed", err.Error()))
		}
		return
	}
}

func (h *TimerHandler) transition(
	c *gin.Context,
	op func(context.Context, string) (*service.StateView, *apperrors.APIError),
) {
	state, apiErr := op(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// parseDateParam accepts RFC3339 timestamps or bare UTC dates. Empty means
// an open bound.
func parseDateParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}
